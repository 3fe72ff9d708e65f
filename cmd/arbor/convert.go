package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:     "convert <in> <out>",
	Short:   "Convert a model file between JSON, YAML and HCL",
	Example: "  arbor convert models/cohort.json models/cohort.hcl",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Convert(cmd.OutOrStdout(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
