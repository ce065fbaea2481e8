package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "taxengine",
		Short: "Batch federal and state income tax computation engine",
		Long: `taxengine ingests NDJSON household records, computes realized capital
gains (FIFO lot matching), EWMA income, deductions and final federal/state
tax liability, and exports the results. All state lives in a local SQLite
database.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		migrateCmd(),
		ingestCmd(),
		processCmd(),
		exportCmd(),
		runCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
