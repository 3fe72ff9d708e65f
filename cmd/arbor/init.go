package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a workspace with a sample Markov model",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if len(args) > 0 {
			dir = args[0]
		}
		return cli.Init(cmd.Context(), cmd.OutOrStdout(), dir)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
