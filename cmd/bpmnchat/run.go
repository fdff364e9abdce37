package main

import (
	"github.com/aretw0/bpmnchat/internal/cli"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [diagram.bpmn]",
		Short: "Chat with the process in the terminal",
		Long: `Starts a conversation on the terminal. Type /salir, /fin or /exit to end it.

With --session the conversation is stored and resumed on the next run
(use a redis store to keep it across processes).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			jsonMode, _ := cmd.Flags().GetBool("json")
			opts := cli.RunOptions{
				JSON: jsonMode,
				In:   cmd.InOrStdin(),
				Out:  cmd.OutOrStdout(),
			}
			opts.SessionID, _ = cmd.Flags().GetString("session")
			opts.Fresh, _ = cmd.Flags().GetBool("fresh")
			opts.NoBanner, _ = cmd.Flags().GetBool("no-banner")
			opts.Trace, _ = cmd.Flags().GetString("trace")

			// Logs go to stderr; keep them quiet unless asked so the dialogue stays readable.
			logger := cli.NewLogger(cfg.LogLevel, !cmd.Flags().Changed("log-level"))

			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()

			st, err := cli.NewStack(sigCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			return cli.HandleExecutionError(cli.RunChat(sigCtx, st, opts))
		},
	}

	cmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	cmd.Flags().String("session", "", "Session id to create or resume (default: random)")
	cmd.Flags().Bool("fresh", false, "Discard the stored session before starting")
	cmd.Flags().Bool("no-banner", false, "Do not print the banner")
	cmd.Flags().String("trace", "", "Write the Mermaid diagram of the visited path to this file")
	cmd.Flags().Duration("pacing", 0, "Delay between automatic steps")
	return cmd
}
