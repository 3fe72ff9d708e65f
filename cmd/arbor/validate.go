package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [model...]",
	Short: "Check models for structural and probability errors",
	Long: `Parses every expression, checks node placement and verifies that branch
probabilities sum to one. Without arguments every model in the workspace is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(cmd.Context(), commonOptions(cmd), args...)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
