package main

import (
	"fmt"
	"io"

	"github.com/aretw0/bpmnchat"
	"github.com/aretw0/bpmnchat/internal/cli"
	"github.com/aretw0/bpmnchat/pkg/adapters/memory"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/reservation"
	"github.com/aretw0/bpmnchat/pkg/routing"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [diagram.bpmn]",
		Short: "Load the diagram and dialogue and report problems",
		Long: `Loads the diagram the same way run and serve do, checks the dialogue
routes against it and verifies that every hook binding names a handler.
No backend is contacted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if cfg.Process == "" {
				return cli.ErrNoProcess
			}

			opts := []bpmnchat.Option{
				bpmnchat.WithLogger(cli.NewLogger(cfg.LogLevel, false)),
				bpmnchat.WithInventory(memory.NewInventory(reservation.DemoItems()...)),
			}
			if cfg.StrictFlows {
				opts = append(opts, bpmnchat.WithStrictFlows())
			}
			if cfg.Dialogue != "" {
				d, err := routing.LoadFile(cfg.Dialogue)
				if err != nil {
					return err
				}
				opts = append(opts, bpmnchat.WithDialogue(d))
			}

			eng, err := bpmnchat.Load(cfg.Process, opts...)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			printSummary(cmd.OutOrStdout(), eng)
			return nil
		},
	}
}

func printSummary(w io.Writer, eng *bpmnchat.Engine) {
	g := eng.Graph()
	flows := 0
	for _, n := range g.Nodes() {
		flows += len(n.Outgoing)
	}

	fmt.Fprintf(w, "✓ %s is valid\n", eng.Name)
	fmt.Fprintf(w, "  nodes: %d\n", g.Len())
	fmt.Fprintf(w, "  flows: %d\n", flows)
	fmt.Fprintf(w, "  hooks: %d\n", len(eng.Hooks()))
	if len(g.ByType(domain.NodeStartEvent)) == 0 {
		fmt.Fprintln(w, "  warning: no start event, sessions cannot start")
	}
}
