package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [model]",
	Short: "List the scenarios of a model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListScenarios(cmd.Context(), commonOptions(cmd), modelArg(args))
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
