package main

import (
	"fmt"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of arbor",
	Run: func(cmd *cobra.Command, args []string) {
		banner, _ := cmd.Flags().GetBool("banner")
		if banner {
			tui.PrintBanner(cmd.OutOrStdout(), arbor.Version)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "arbor version %s\n", arbor.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("banner", false, "Print the banner")
}
