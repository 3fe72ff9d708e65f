package main

import (
	"github.com/aretw0/arbor/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the workspace over a JSON API with model editing, undo/redo,
evaluation, PSA progress over WebSocket and Prometheus metrics.
The OpenAPI document is at /openapi.yaml and Swagger UI at /swagger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		redisPassword, _ := cmd.Flags().GetString("redis-password")
		redisDB, _ := cmd.Flags().GetInt("redis-db")
		results, _ := cmd.Flags().GetString("results")

		return cli.Serve(cmd.Context(), cli.ServeOptions{
			Options:       commonOptions(cmd),
			Addr:          ":" + port,
			RedisAddr:     redisAddr,
			RedisPassword: redisPassword,
			RedisDB:       redisDB,
			Results:       results,
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for models and edit locks (default: workspace files)")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database")
	serveCmd.Flags().String("results", "", "SQLite file that stores PSA iterations")
}
