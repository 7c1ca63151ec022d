package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thrylos-labs/posseal/consensus/sealer"
	"github.com/thrylos-labs/posseal/network"
	"github.com/thrylos-labs/posseal/node"
	"github.com/thrylos-labs/posseal/utils"
	"go.uber.org/zap"
)

var sealInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, optionally sealing a block on a fixed interval",
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

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if sealInterval > 0 {
			go produceBlocks(ctx, n, logger)
		}

		server := &http.Server{
			Addr:              cfg.Listen,
			Handler:           network.NewRouter(n, logger.Named("http")).Handler(cfg.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		logger.Info("starting server", zap.String("listen", cfg.Listen))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

// produceBlocks seals on every tick until ctx is done. Rounds without an
// eligible validator are skipped.
func produceBlocks(ctx context.Context, n *node.Node, logger *zap.Logger) {
	ticker := time.NewTicker(sealInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := n.SealNext(); err != nil && !errors.Is(err, sealer.ErrNoEligibleValidator) {
				utils.LogError(logger, "block production", err)
			}
		}
	}
}

func init() {
	serveCmd.Flags().DurationVar(&sealInterval, "seal-interval", 0, "seal a block every interval (0 disables)")
}
