package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/bpmnchat"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bpmnchat",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bpmnchat version %s\n", strings.TrimSpace(bpmnchat.Version))
		},
	}
}
