// Command finitelife runs the Finite Life API server and a small terminal client.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "finitelife",
	Short:        "Finite Life - your 4000 weeks and what you do with them",
	SilenceUsage: true,
}

var (
	apiAddr  string
	apiToken string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", envOr("FINITELIFE_API", "http://localhost:8080"), "API address for client commands")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("FINITELIFE_TOKEN"), "session token for client commands")
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
