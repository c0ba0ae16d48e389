// Package translator converts SAP HANA artifacts to Snowflake SQL through an
// OpenAI-compatible chat completions API.
package translator

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"golang.org/x/time/rate"
)

var logger = loggo.GetLogger("hanamigration.translator")

const ErrEmptyCompletion = errors.ConstError("translator returned no choices")

type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64
}

type Client struct {
	model   string
	http    *resty.Client
	limiter *rate.Limiter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
		})

	return &Client{
		model:   cfg.Model,
		http:    http,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *Client) TranslateView(ctx context.Context, content []byte) (string, error) {
	raw, err := c.complete(ctx, viewPrompt(content))
	if err != nil {
		return "", errors.Trace(err)
	}
	return ExtractJSONEnvelope(raw)
}

func (c *Client) TranslateSchema(ctx context.Context, content []byte) (string, error) {
	raw, err := c.complete(ctx, schemaPrompt(content))
	if err != nil {
		return "", errors.Trace(err)
	}
	sql, err := ExtractJSONEnvelope(raw)
	if err != nil {
		return "", err
	}
	return RewriteTimestampTypes(sql), nil
}

func (c *Client) TranslateFunction(ctx context.Context, content []byte) (string, error) {
	raw, err := c.complete(ctx, functionPrompt(content))
	if err != nil {
		return "", errors.Trace(err)
	}
	return ExtractMarkerEnvelope(raw)
}

func (c *Client) complete(ctx context.Context, p prompt) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", errors.Annotate(err, "wait for translator rate limit")
	}

	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: p.system},
				{Role: "user", Content: p.user},
			},
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", errors.Annotate(err, "call translator")
	}
	if resp.IsError() {
		return "", errors.Errorf("translator returned %s: %s", resp.Status(), abbreviate(resp.String(), 500))
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	logger.Debugf("translator response (%d bytes): %s", len(content), abbreviate(content, 200))
	return content, nil
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
