package main

import (
	"fmt"
	"os"

	"github.com/aretw0/bpmnchat/internal/config"
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bpmnchat",
		Short: "bpmnchat turns a BPMN process diagram into a chatbot",
		Long: `bpmnchat walks a BPMN 2.0 process diagram as a conversation: tasks announce
themselves and run their hooks, gateways and catch events wait for the user's reply.

Settings come from the environment (BPMNCHAT_*) and an optional .env file;
flags override them.`,
		SilenceUsage: true,
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("env-file", ".env", "Dotenv file to load before reading the environment")
	flags.String("dialogue", "", "Dialogue YAML with routes and hook bindings")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("strict-flows", false, "Reject sequence flows whose endpoints are missing")
	flags.String("store", config.StoreMemory, "Session store: memory, file or redis")
	flags.String("inventory", config.InventoryMemory, "Inventory backend: memory, redis, postgres or http")

	rootCmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newMCPCmd(),
		newGraphCmd(),
		newValidateCmd(),
		newSeedCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the flags the user set.
// The first positional argument, when present, is the diagram path.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Process = args[0]
	}

	flags := cmd.Flags()
	if flags.Changed("dialogue") {
		cfg.Dialogue, _ = flags.GetString("dialogue")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("strict-flows") {
		cfg.StrictFlows, _ = flags.GetBool("strict-flows")
	}
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("inventory") {
		cfg.Inventory, _ = flags.GetString("inventory")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Lookup("pacing") != nil && flags.Changed("pacing") {
		cfg.Pacing, _ = flags.GetDuration("pacing")
	}
	if flags.Lookup("metrics") != nil && flags.Changed("metrics") {
		cfg.Metrics, _ = flags.GetBool("metrics")
	}
	return cfg, nil
}
