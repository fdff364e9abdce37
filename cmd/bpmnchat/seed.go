package main

import (
	"fmt"

	"github.com/aretw0/bpmnchat/internal/cli"
	"github.com/aretw0/bpmnchat/pkg/reservation"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo rooms into the inventory backend",
		Long: `Replaces the contents of the configured inventory (redis or postgres)
with the demo rooms. The postgres table is created when missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			client, err := cli.RedisClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if client != nil {
				defer client.Close()
			}

			inv, closeInv, err := cli.NewInventory(cmd.Context(), cfg, client)
			if err != nil {
				return err
			}
			if closeInv != nil {
				defer closeInv()
			}

			items := reservation.DemoItems()
			if err := cli.Seed(cmd.Context(), inv, items); err != nil {
				return fmt.Errorf("failed to seed %s inventory: %w", cfg.Inventory, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d rooms into %s inventory\n", len(items), cfg.Inventory)
			return nil
		},
	}
}
