package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/thrylos-labs/posseal/bench"
	"go.uber.org/zap"
)

var (
	benchCSVPath string
	benchRounds  int
	benchQuiet   bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run every configured strategy on a fresh chain and export timers as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if benchRounds > 0 {
			cfg.Rounds = benchRounds
		}
		if benchCSVPath != "" {
			cfg.CSVPath = benchCSVPath
		}

		var out io.Writer = cmd.OutOrStdout()
		if benchQuiet {
			out = io.Discard
		}
		h, err := bench.NewHarness(cfg, out, logger)
		if err != nil {
			return err
		}
		results, err := h.Run()
		if err != nil {
			return err
		}

		f, err := os.Create(cfg.CSVPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := bench.WriteCSV(f, results); err != nil {
			return fmt.Errorf("failed to write %s: %w", cfg.CSVPath, err)
		}
		logger.Info("timers written", zap.String("path", cfg.CSVPath))
		fmt.Fprintf(cmd.OutOrStdout(), "\nAll timers written to %s\n", cfg.CSVPath)
		return nil
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchCSVPath, "csv", "", "CSV output path (overrides csvPath)")
	benchCmd.Flags().IntVar(&benchRounds, "rounds", 0, "blocks to seal per strategy (overrides rounds)")
	benchCmd.Flags().BoolVarP(&benchQuiet, "quiet", "q", false, "do not print progress, balances or the chain")
}
