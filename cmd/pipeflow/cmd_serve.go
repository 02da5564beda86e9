package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nomis52/pipeflow/logging"
	"github.com/nomis52/pipeflow/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP and run it on its schedule",
		Long: `Serve the pipeline's activation state, workflow plan and run history over HTTP.
Switch selections and enable flags are changed through the API (POST /api/select,
POST /api/enable) rather than with --select and --disable.

Examples:
  pipeflow -c pipeflow.yaml serve --listen :8080
  pipeflow -c pipeflow.yaml serve --state-dir /var/lib/pipeflow --tls-cert tls.crt --tls-key tls.key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Close()

			listen, _ := cmd.Flags().GetString("listen")
			stateDir, _ := cmd.Flags().GetString("state-dir")
			certFile, _ := cmd.Flags().GetString("tls-cert")
			keyFile, _ := cmd.Flags().GetString("tls-key")
			name, _ := cmd.Flags().GetString("pipeline")
			if (certFile == "") != (keyFile == "") {
				return fmt.Errorf("--tls-cert and --tls-key must be given together")
			}

			opts := []server.Option{
				server.WithLogger(logger.Logger),
				server.WithListenAddr(listen),
				server.WithPipeline(name),
			}
			if stateDir != "" {
				opts = append(opts, server.WithStateDir(stateDir))
			}
			if certFile != "" {
				opts = append(opts, server.WithTLS(certFile, keyFile))
			}

			srv, err := server.New(path, opts...)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			go func() {
				select {
				case sig := <-sigCh:
					logger.Info("received signal, shutting down", "signal", sig)
					cancel()
				case <-ctx.Done():
				}
			}()

			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("listen", ":8080", "Address to listen on")
	cmd.Flags().String("state-dir", "", "Directory to persist run history in (default: in memory)")
	cmd.Flags().String("tls-cert", "", "TLS certificate file")
	cmd.Flags().String("tls-key", "", "TLS key file")
	return cmd
}
