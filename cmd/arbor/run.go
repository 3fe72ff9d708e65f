package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [model]",
	Short: "Evaluate a model and report expected values",
	Long: `Validates and evaluates the model once. The model is a name in the
workspace or a path to a model file; when omitted, the only model in the
workspace (or the one named after the directory) is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, _ := cmd.Flags().GetString("scenario")
		watchMode, _ := cmd.Flags().GetBool("watch")

		return cli.Execute(cmd.Context(), cli.RunOptions{
			Options:  commonOptions(cmd),
			Model:    modelArg(args),
			Scenario: scenario,
			Watch:    watchMode,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("scenario", "s", "", "Run a named scenario instead of the base case")
	runCmd.Flags().BoolP("watch", "w", false, "Re-run whenever a model or scenario changes")
}
