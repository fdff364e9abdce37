package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/bpmnchat"
	"github.com/aretw0/bpmnchat/internal/cli"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [diagram.bpmn]",
		Short: "Start the HTTP chat API",
		Long: `Serves the chat API: sessions, messages, the process graph,
the room inventory and, with --metrics, Prometheus metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			logger := cli.NewLogger(cfg.LogLevel, false)

			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()

			st, err := cli.NewStack(sigCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			handler := cli.NewHTTPHandler(st, cfg.MaxInputSize, strings.TrimSpace(bpmnchat.Version))
			if err := cli.Serve(sigCtx, fmt.Sprintf(":%d", cfg.Port), handler, st); err != nil {
				return err
			}
			if sig := sigCtx.Signal(); sig != nil {
				logger.Info("server stopped", "signal", sig.String())
			}
			return nil
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	return cmd
}
