package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/cmd/finq/commands"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/logger"
)

var rootCmd = &cobra.Command{
	Use:   "finq",
	Short: "FINQ - financial data ingestion and natural-language queries",
	Long: `FINQ - financial data ingestion and natural-language queries.

FINQ normalizes accounting and finance-platform exports into one fact
table and answers questions about it in plain language.

Available commands:
  ingest    - Load an export file or a manifest into a dataset
  records   - List or export stored financial records
  datasets  - List or remove datasets
  ask       - Ask a single question
  converse  - Ask follow-up questions in an interactive session
  forecast  - Project a metric's monthly trend
  usage     - Show language model usage
  serve     - Start the HTTP and WebSocket server
  db        - Database statistics
  am        - Show and validate configuration ("I am")

Examples:
  finq ingest acme exports/acme_qb_2024.json
  finq records --dataset acme --metric revenue
  finq ask "What was total revenue in Q1 2024?"
  finq serve --port 8000`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(false, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output results as JSON")

	commands.Register(rootCmd)
}

func main() {
	// A .env file in the working directory is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		os.Exit(1)
	}
}
