package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor evaluates decision trees and Markov cohort models",
	Long: `Arbor rolls back decision trees and Markov cohort models, ranks strategies
by expected value or ICER and runs probabilistic sensitivity analyses.

A workspace directory holds models/ (JSON, YAML or HCL) and scenarios/
(Markdown with front matter).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	sigCtx := cli.NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	err := rootCmd.ExecuteContext(sigCtx)
	if sig := sigCtx.Signal(); sig != nil {
		fmt.Fprintf(os.Stderr, "\nInterrupted (%v).\n", sig)
		os.Exit(130)
	}
	if err != nil {
		if !errors.Is(err, cli.ErrInvalidModel) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Workspace directory (models/ and scenarios/)")
	rootCmd.PersistentFlags().String("log-level", "off", "Log level written to stderr: debug, info, warn, error or off")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")
}

// commonOptions reads the persistent flags.
func commonOptions(cmd *cobra.Command) cli.Options {
	dir, _ := cmd.Flags().GetString("dir")
	level, _ := cmd.Flags().GetString("log-level")
	jsonMode, _ := cmd.Flags().GetBool("json")
	return cli.Options{Dir: dir, LogLevel: level, JSON: jsonMode, Out: cmd.OutOrStdout()}
}

// modelArg returns the optional model argument.
func modelArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
