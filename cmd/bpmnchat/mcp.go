package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/aretw0/bpmnchat"
	"github.com/aretw0/bpmnchat/internal/cli"
	"github.com/aretw0/bpmnchat/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp [diagram.bpmn]",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the chatbot as MCP tools so an agent can hold the conversation.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			transport, _ := cmd.Flags().GetString("transport")

			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger := cli.NewLogger(cfg.LogLevel, false)

			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()

			st, err := cli.NewStack(sigCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			opts := []mcp.Option{
				mcp.WithVersion(strings.TrimSpace(bpmnchat.Version)),
				mcp.WithLogger(logger),
			}
			if cfg.MaxInputSize > 0 {
				opts = append(opts, mcp.WithMaxInputSize(cfg.MaxInputSize))
			}
			srv := mcp.NewServer(st.Manager, opts...)

			switch transport {
			case "stdio":
				logger.Info("starting MCP server (stdio)", "process", st.Engine.Name)
				return srv.ServeStdio()
			case "sse":
				if err := srv.ServeSSE(sigCtx, cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				logger.Info("MCP server stopped gracefully")
				return nil
			default:
				return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
			}
		},
	}

	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on (only for SSE)")
	return cmd
}
