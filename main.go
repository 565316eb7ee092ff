package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the eventhub version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("eventhub version %s\n", version)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and realtime hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	importCmd = &cobra.Command{
		Use:       "import <players|food|committee> <file.json>",
		Short:     "Bulk import registrations from a JSON array",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"players", "food", "committee"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), args[0], args[1])
		},
	}

	rootCmd = &cobra.Command{
		Use:   "eventhub",
		Short: "Event registration, approvals and tournament backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, importCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
