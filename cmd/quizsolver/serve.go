package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/logging"
	"github.com/mohammad-safakhou/quizsolver/internal/pipeline"
	"github.com/mohammad-safakhou/quizsolver/internal/server"
	"github.com/mohammad-safakhou/quizsolver/internal/telemetry"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP quiz endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			logger, err := logging.New(cfg.General)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metrics := telemetry.New()
			p, store, err := pipeline.Build(ctx, cfg, metrics, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warn("session store close", zap.Error(err))
				}
			}()

			return server.New(cfg.Server, p, store, metrics, logger).Run(ctx)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return serve
}
