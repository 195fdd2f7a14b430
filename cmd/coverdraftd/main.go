package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/coverdraft/internal/cli"
	"github.com/cloo-solutions/coverdraft/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "coverdraftd",
		Short: "Coverdraft daemon and admin CLI",
		Long:  "Coverdraft daemon for running the API server and managing the document store directly",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.DocumentsCmd())
	rootCmd.AddCommand(admin.StyleCmd())
	rootCmd.AddCommand(admin.RetrieveCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
