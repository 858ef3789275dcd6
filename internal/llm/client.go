package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/draftmill/internal/domain"
	"github.com/yourorg/draftmill/internal/observability/metrics"
	"github.com/yourorg/draftmill/internal/reliability/circuitbreaker"
	"github.com/yourorg/draftmill/internal/reliability/retry"
)

// Client talks to the hosted LLM completion API. Calls go through a retry
// loop and a circuit breaker so a degraded provider fails fast instead of
// stalling every pipeline advance.
type Client struct {
	apiURL    string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
	breaker   *circuitbreaker.CircuitBreaker
	retryCfg  *retry.Config
	logger    *slog.Logger
}

// NewClient creates an LLM client
func NewClient(apiURL, apiKey, model string, maxTokens int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	breaker := circuitbreaker.New(5, 2, 30*time.Second)
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("llm circuit breaker state change",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &Client{
		apiURL:    apiURL,
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		http: &http.Client{
			Timeout:   90 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker:  breaker,
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

type generateRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends a completion request and returns the generated text.
// maxTokens <= 0 uses the client default.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if !c.breaker.Allow() {
		metrics.ObserveLLMRequest("circuit_open", 0)
		return "", fmt.Errorf("%w: llm provider unavailable", domain.ErrUnavailable)
	}

	start := time.Now()
	text, err := retry.Do(ctx, c.retryCfg, c.logger, "llm_generate", func(ctx context.Context) (string, error) {
		return c.generateOnce(ctx, systemPrompt, userPrompt, maxTokens)
	})
	dur := time.Since(start)

	if err != nil {
		c.breaker.RecordFailure()
		metrics.ObserveLLMRequest("error", dur)
		return "", fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	c.breaker.RecordSuccess()
	metrics.ObserveLLMRequest("success", dur)
	return text, nil
}

func (c *Client) generateOnce(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read llm response: %w", err)
	}

	// 4xx responses are caller mistakes and will not get better on retry.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return "", &retry.Permanent{Err: fmt.Errorf("llm request rejected: status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm request failed: status %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode llm response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm error %s: %s", decoded.Error.Type, decoded.Error.Message)
	}

	for _, block := range decoded.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("llm response contained no text content")
}
