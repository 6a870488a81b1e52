// Package nlquery answers natural-language questions about the fact table.
//
// An Engine asks the language model for one SQL statement, runs it through
// the read-only query primitive of facts.Store, then asks the model for a
// short narrative of the result rows. Sessions add bounded conversation
// history on top.
package nlquery

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/FINQ/ai/openrouter"
	"github.com/teranos/FINQ/ai/provider"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/facts"
	"github.com/teranos/FINQ/logger"
)

// DefaultMaxResultRows caps the rows passed to the narrative prompt
const DefaultMaxResultRows = 200

var systemPrompt = `You are a financial analyst assistant. The user will ask questions about a
company's financial data stored in a relational table called financial_records.

` + facts.Schema + `

Write a single read-only SQL query (SELECT or WITH) that returns the exact rows
needed to answer the question. Do not use any column that does not exist. Do
not add LIMIT unless the question asks for it. Dates are text in YYYY-MM-DD
form, so compare them as strings. Return only the SQL statement wrapped in
triple backticks. If the data cannot answer the question, return
` + "```sql\nSELECT NULL;\n```" + ` and explain why below it.`

const answerPrompt = `Based on the result of the previous SQL query, write a concise (1-2 sentences)
natural-language answer. Include the most important numbers and, if helpful,
mention the rows that contributed to the answer.

If you need additional calculations (e.g. percentages), do them in your
answer. Do not issue a second SQL query.`

const answerSystemPrompt = "You are a concise financial analyst."

var sqlBlock = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)\\s*```")

// Querier runs read-only SQL against the fact table
type Querier interface {
	Query(ctx context.Context, query string, maxRows int) (*facts.ResultSet, error)
}

// Answerer produces an Answer for a question plus optional context.
// *Engine is the production implementation.
type Answerer interface {
	Answer(ctx context.Context, question, extraContext string) (*Answer, error)
}

// Answer is the outcome of one question
type Answer struct {
	Question  string `json:"question"`
	SQL       string `json:"sql"`
	Answer    string `json:"answer"`
	Rows      int    `json:"rows"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Options tunes an Engine
type Options struct {
	RequestsPerMinute int // 0 = unlimited
	MaxResultRows     int // 0 = DefaultMaxResultRows
	Logger            *zap.SugaredLogger
}

// Engine implements the two-step question flow
type Engine struct {
	client  provider.AIClient
	store   Querier
	limiter *rate.Limiter
	maxRows int
	logger  *zap.SugaredLogger
}

// NewEngine creates an Engine over client and store
func NewEngine(client provider.AIClient, store Querier, opts Options) *Engine {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), opts.RequestsPerMinute)
	}

	maxRows := opts.MaxResultRows
	if maxRows <= 0 {
		maxRows = DefaultMaxResultRows
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Engine{
		client:  client,
		store:   store,
		limiter: limiter,
		maxRows: maxRows,
		logger:  log,
	}
}

// Answer turns question into SQL, executes it and summarizes the rows.
// extraContext is appended to the question prompt verbatim.
func (e *Engine) Answer(ctx context.Context, question, extraContext string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.NewInvalidRequestError("question is empty")
	}
	log := logger.LoggerFromContext(ctx, e.logger)

	reply, err := e.chat(ctx, openrouter.ChatRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   "User question: " + question + "\n\n" + extraContext,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate SQL")
	}
	log.Debugw("LLM raw SQL response", "content", reply)

	query, err := ExtractSQL(reply)
	if err != nil {
		return nil, err
	}
	log.Infow("Generated SQL", logger.FieldSQL, query)

	rs, err := e.store.Query(ctx, query, e.maxRows)
	if err != nil {
		log.Warnw("Generated SQL failed", logger.FieldSQL, query, logger.FieldError, err)
		return nil, errors.WithHint(
			errors.Wrap(err, "generated SQL raised an error"),
			"rephrase the question or name the metric explicitly")
	}

	data, err := json.MarshalIndent(rs.Rows, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode result rows")
	}

	narrative, err := e.chat(ctx, openrouter.ChatRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   answerPrompt + "\n\nResult set:\n```json\n" + string(data) + "\n```",
	})
	if err != nil {
		return nil, errors.Wrap(err, "summarize result")
	}

	return &Answer{
		Question:  question,
		SQL:       query,
		Answer:    strings.TrimSpace(narrative),
		Rows:      len(rs.Rows),
		Truncated: rs.Truncated,
	}, nil
}

func (e *Engine) chat(ctx context.Context, req openrouter.ChatRequest) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "rate limit")
	}

	temperature := 0.0
	req.Temperature = &temperature

	resp, err := e.client.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ExtractSQL returns the body of the first fenced code block in reply.
// The block may carry an sql language tag in any case.
func ExtractSQL(reply string) (string, error) {
	m := sqlBlock.FindStringSubmatch(reply)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", errors.WithHint(errors.ErrNoSQL, "the model reply had no fenced SQL block")
	}
	return strings.TrimSpace(m[1]), nil
}
