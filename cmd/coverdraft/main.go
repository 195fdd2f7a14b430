package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/coverdraft/internal/cli"
	"github.com/cloo-solutions/coverdraft/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "coverdraft",
		Short: "Coverdraft CLI - weighted context for cover letters",
		Long: `Coverdraft CLI uploads your CVs, cover letters and profiles and asks the
server for weighted context or a generated cover letter.

Environment variables:
  COVERDRAFT_API_TOKEN   API token (optional when the server runs without one)
  COVERDRAFT_API_URL     API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-token", "", "API token (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.WeightCmd())
	rootCmd.AddCommand(client.ReindexCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.StyleCmd())
	rootCmd.AddCommand(client.ContextCmd())
	rootCmd.AddCommand(client.GenerateCmd())
	rootCmd.AddCommand(client.BatchCmd())
	rootCmd.AddCommand(client.LettersCmd())
	rootCmd.AddCommand(client.ExperienceCmd())
	rootCmd.AddCommand(client.ProvidersCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
