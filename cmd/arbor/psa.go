package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var psaCmd = &cobra.Command{
	Use:   "psa [model]",
	Short: "Run a probabilistic sensitivity analysis",
	Long: `Samples every unlocked parameter from its distribution for each iteration
and summarizes each strategy with its mean and 95% interval.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		iterations, _ := cmd.Flags().GetInt("iterations")
		seed, _ := cmd.Flags().GetInt64("seed")
		crn, _ := cmd.Flags().GetBool("crn")
		workers, _ := cmd.Flags().GetInt("workers")
		results, _ := cmd.Flags().GetString("results")

		return cli.RunPSA(cmd.Context(), cli.PSAOptions{
			Options:    commonOptions(cmd),
			Model:      modelArg(args),
			Iterations: iterations,
			Seed:       seed,
			CRN:        crn || cmd.Flags().Changed("seed"),
			Workers:    workers,
			Results:    results,
		})
	},
}

func init() {
	rootCmd.AddCommand(psaCmd)

	psaCmd.Flags().IntP("iterations", "n", 1000, "Number of iterations")
	psaCmd.Flags().Int64("seed", 0, "Seed for common random numbers (implies --crn)")
	psaCmd.Flags().Bool("crn", false, "Reseed each iteration so runs are reproducible")
	psaCmd.Flags().Int("workers", 1, "Iterations evaluated in parallel")
	psaCmd.Flags().String("results", "", "SQLite file that receives every iteration")
}
