package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [model]",
	Short: "Export the model tree as a Mermaid diagram",
	Long:  `Outputs a Mermaid diagram (graph LR) of the tree. With --results, nodes carry their expected values and chosen strategies are highlighted.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, _ := cmd.Flags().GetBool("results")
		return cli.Graph(cmd.Context(), cli.GraphOptions{
			Options: commonOptions(cmd),
			Model:   modelArg(args),
			Results: results,
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("results", false, "Annotate nodes with expected values")
}
