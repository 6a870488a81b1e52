package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/FINQ/ai/openrouter"
	"github.com/teranos/FINQ/ai/tracker"
	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/errors"
	"github.com/teranos/FINQ/internal/httpclient"
)

const (
	defaultLocalTemperature = 0.2
	defaultLocalMaxTokens   = 1024
)

// LocalProvider talks to a local inference server.
// Supports Ollama, LocalAI, or any OpenAI-compatible local endpoint.
type LocalProvider struct {
	baseURL       string
	model         string
	contextSize   int
	httpClient    *http.Client
	usageTracker  *tracker.UsageTracker
	logger        *zap.SugaredLogger
	operationType string
}

// NewLocalProvider creates a provider for local inference
func NewLocalProvider(cfg am.LocalInferenceConfig, clientCfg ClientConfig) *LocalProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	logger := clientCfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	lp := &LocalProvider{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		model:         cfg.Model,
		contextSize:   cfg.ContextSize,
		httpClient:    httpclient.New(timeout, httpclient.Options{AllowPrivate: true}),
		logger:        logger,
		operationType: clientCfg.OperationType,
	}
	if clientCfg.DB != nil {
		lp.usageTracker = tracker.NewUsageTracker(clientCfg.DB)
	}
	return lp
}

type localRequest struct {
	Model    string          `json:"model"`
	Messages []localMessage  `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *completionOpts `json:"options,omitempty"` // Ollama-specific options
}

type localMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionOpts struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"num_predict,omitempty"` // Ollama uses num_predict
	NumCtx      int     `json:"num_ctx,omitempty"`     // 0 = model default
}

type localResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      localMessage `json:"message"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Usage *openrouter.Usage `json:"usage,omitempty"`
}

// Chat sends the system and user prompts to the local server's
// /v1/chat/completions endpoint
func (lp *LocalProvider) Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	model := lp.model
	if req.Model != nil && *req.Model != "" {
		model = *req.Model
	}
	temperature := defaultLocalTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultLocalMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	messages := []localMessage{{Role: "user", Content: req.UserPrompt}}
	if req.SystemPrompt != "" {
		messages = append([]localMessage{{Role: "system", Content: req.SystemPrompt}}, messages...)
	}

	body, err := json.Marshal(localRequest{
		Model:    model,
		Messages: messages,
		Options: &completionOpts{
			Temperature: temperature,
			MaxTokens:   maxTokens,
			NumCtx:      lp.contextSize,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	requestTime := time.Now()
	resp, err := lp.send(ctx, body)
	if err != nil {
		lp.track(requestTime, model, nil, err)
		return nil, err
	}
	if len(resp.Choices) == 0 {
		err := errors.New("no completion choices returned")
		lp.track(requestTime, model, nil, err)
		return nil, err
	}

	var usage openrouter.Usage
	if resp.Usage != nil {
		usage = *resp.Usage
	}
	lp.track(requestTime, model, &usage, nil)

	lp.logger.Debugw("Local inference response",
		"model", model,
		"content_length", len(resp.Choices[0].Message.Content),
		"duration", time.Since(requestTime),
	)

	return &openrouter.ChatResponse{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:   model,
		Usage:   usage,
	}, nil
}

func (lp *LocalProvider) send(ctx context.Context, body []byte) (*localResponse, error) {
	endpoint := lp.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := lp.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "local inference request to %s failed", lp.baseURL),
			"is the inference server running? check local_inference.base_url")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Newf("local inference returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var completion localResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, errors.Wrap(err, "failed to decode response")
	}
	return &completion, nil
}

// track records the call with zero cost; local inference has no API price
func (lp *LocalProvider) track(requestTime time.Time, model string, usage *openrouter.Usage, callErr error) {
	if lp.usageTracker == nil {
		return
	}

	responseTime := time.Now()
	opType := lp.operationType
	if opType == "" {
		opType = "chat"
	}

	record := &tracker.ModelUsage{
		OperationType:     opType,
		ModelName:         model,
		ModelProvider:     string(ProviderLocal),
		RequestTimestamp:  requestTime,
		ResponseTimestamp: &responseTime,
		Success:           callErr == nil,
	}
	if callErr != nil {
		msg := callErr.Error()
		record.ErrorMessage = &msg
	} else {
		cost := 0.0
		prompt, completion := usage.PromptTokens, usage.CompletionTokens
		record.PromptTokens, record.CompletionTokens, record.Cost = &prompt, &completion, &cost
	}

	if err := lp.usageTracker.TrackUsage(record); err != nil {
		lp.logger.Warnw("Failed to track usage", "error", err, "model", model)
	}
}

// Model returns the configured local model name
func (lp *LocalProvider) Model() string {
	return lp.model
}
