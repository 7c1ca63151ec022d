package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/thrylos-labs/posseal/consensus/sealer"
	"github.com/thrylos-labs/posseal/node"
)

var sealCount int

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Seal blocks on the configured chain and print them",
	Long: `Seal blocks from the pending pool against the chain in dataDir.

Without a dataDir the chain lives in memory and starts from genesis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		n, err := node.NewNode(cfg, node.WithLogger(logger))
		if err != nil {
			return err
		}
		defer n.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "    ")
		for i := 0; i < sealCount; i++ {
			b, err := n.SealNext()
			if errors.Is(err, sealer.ErrNoEligibleValidator) {
				fmt.Fprintln(cmd.ErrOrStderr(), "No validator found. Skipping block generation.")
				continue
			}
			if err != nil {
				return err
			}
			if err := enc.Encode(b); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	sealCmd.Flags().IntVarP(&sealCount, "count", "n", 1, "number of blocks to seal")
}
