package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/FINQ/ai/openrouter"
	"github.com/teranos/FINQ/ai/provider"
	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/display"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/logger"
	"github.com/teranos/FINQ/nlquery"
)

// AskCmd answers one question
var AskCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question about the stored financial data",
	Long: `Ask a question in plain language. FINQ asks the configured model for a
SQL query, runs it read-only against the fact table and summarizes the rows.

Examples:
  finq ask "What was total revenue in Q1 2024?"
  finq ask which month had the highest expenses --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// ConverseCmd answers follow-up questions in one session
var ConverseCmd = &cobra.Command{
	Use:   "converse",
	Short: "Ask follow-up questions in an interactive session",
	Long: `Start an interactive session. Recent questions and answers are sent along
with each new question so follow-ups like "and in Q2?" work.

Type exit or quit, or press Ctrl+D, to leave.`,
	Args: cobra.NoArgs,
	RunE: runConverse,
}

var (
	askShowSQL      bool
	converseShowSQL bool
)

func init() {
	AskCmd.Flags().BoolVar(&askShowSQL, "sql", true, "Show the generated SQL")
	ConverseCmd.Flags().BoolVar(&converseShowSQL, "sql", false, "Show the generated SQL")
}

// newEngine builds the question engine over store. A missing model
// configuration is reported before any question is sent.
func newEngine(cfg *am.Config, store *facts.Store, operation string) (*nlquery.Engine, error) {
	client := provider.NewAIClient(cfg, provider.ClientConfig{
		DB:            store.DB(),
		Logger:        logger.Logger,
		OperationType: operation,
	})
	if orc, ok := client.(*openrouter.Client); ok && !orc.IsConfigured() {
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrServiceUnavailable, "no language model configured"),
			"set OPENROUTER_API_KEY, or enable local_inference in am.toml")
	}

	return nlquery.NewEngine(client, store, nlquery.Options{
		RequestsPerMinute: cfg.NLQuery.RequestsPerMinute,
		MaxResultRows:     cfg.NLQuery.MaxResultRows,
		Logger:            logger.Logger,
	}), nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	engine, err := newEngine(cfg, store, "nl-query")
	if err != nil {
		return err
	}

	jsonOut := display.ShouldOutputJSON(cmd)
	var spinner *pterm.SpinnerPrinter
	if !jsonOut {
		spinner, _ = pterm.DefaultSpinner.Start("Thinking...")
	}

	ans, err := engine.Answer(cmd.Context(), question, "")
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return display.WriteJSON(cmd.OutOrStdout(), ans)
	}
	printAnswer(cmd.OutOrStdout(), ans, askShowSQL)
	return nil
}

func runConverse(cmd *cobra.Command, args []string) error {
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.DB().Close()

	engine, err := newEngine(cfg, store, "nl-converse")
	if err != nil {
		return err
	}

	session := nlquery.NewSession(uuid.NewString(), cfg.NLQuery.HistoryTurns)
	ctx := logger.WithSessionID(cmd.Context(), session.ID)
	return converse(ctx, cmd, session, engine)
}

// converse reads questions line by line until EOF or exit
func converse(ctx context.Context, cmd *cobra.Command, session *nlquery.Session, engine nlquery.Answerer) error {
	out := cmd.OutOrStdout()
	jsonOut := display.ShouldOutputJSON(cmd)
	if !jsonOut {
		fmt.Fprintln(out, pterm.Bold.Sprint("FINQ conversation"))
		fmt.Fprintln(out, "Ask about your financial data. Type exit to leave.")
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if !jsonOut {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		ans, err := session.Ask(ctx, engine, question)
		if err != nil {
			if jsonOut {
				_ = display.WriteJSON(out, map[string]string{"error": err.Error()})
			} else {
				fmt.Fprintln(out, FormatError(err))
			}
			continue
		}

		if jsonOut {
			if err := display.WriteJSON(out, ans); err != nil {
				return err
			}
			continue
		}
		printAnswer(out, ans, converseShowSQL)
	}
	return errors.Wrap(scanner.Err(), "read question")
}

func printAnswer(w io.Writer, ans *nlquery.Answer, showSQL bool) {
	if showSQL {
		fmt.Fprintln(w, pterm.Gray(ans.SQL))
	}
	fmt.Fprintln(w, ans.Answer)
	if ans.Truncated {
		fmt.Fprintln(w, pterm.Yellow(fmt.Sprintf("(summary based on the first %d rows)", ans.Rows)))
	}
}
