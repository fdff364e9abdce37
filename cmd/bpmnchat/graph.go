package main

import (
	"fmt"

	"github.com/aretw0/bpmnchat/internal/cli"
	"github.com/aretw0/bpmnchat/internal/presentation/graph"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [diagram.bpmn]",
		Short: "Print the process as a Mermaid flowchart",
		Long: `Prints the process graph as a Mermaid flowchart.

With --session the stored conversation is overlaid: visited nodes and the
current node are highlighted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			st, err := cli.NewStack(cmd.Context(), cfg, cli.NewLogger(cfg.LogLevel, true))
			if err != nil {
				return err
			}
			defer st.Close()

			var overlay *graph.GraphOverlay
			if id, _ := cmd.Flags().GetString("session"); id != "" {
				state, err := st.Manager.Load(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("failed to load session %s: %w", id, err)
				}
				overlay = graph.OverlayFromSession(state)
			}

			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(st.Engine.Graph(), overlay))
			return nil
		},
	}

	cmd.Flags().String("session", "", "Overlay the state of this stored session")
	return cmd
}
