// Package completion sends a question and its grounding context to a
// language-model endpoint and returns the generated answer.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/metrics"
)

const (
	// DefaultSystemPrompt asks the model to answer and cite what it used.
	DefaultSystemPrompt = "You are a helpful assistant. Answer the question and give links to the sites you used to answer it."
	// NoResponse stands in for an empty model output.
	NoResponse = "No response from AI."

	sourcesPreamble = "\n\nConsider the following sources:\n\n"
)

// Request is one model call.
type Request struct {
	Model     string
	System    string
	User      string
	MaxTokens int
}

// Provider performs the remote call. Implementations must not retry.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config holds the per-call settings shared by every request.
type Config struct {
	Model        string
	SystemPrompt string
	MaxTokens    int
	// Timeout bounds a single call. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// Client builds prompts and delegates to a Provider.
type Client struct {
	provider Provider
	cfg      Config
	logger   *zap.Logger
}

// NewClient wraps provider.
func NewClient(provider Provider, cfg Config, logger *zap.Logger) (*Client, error) {
	if provider == nil {
		return nil, errors.New("completion provider is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("completion model is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{provider: provider, cfg: cfg, logger: logger}, nil
}

// UserMessage appends the grounding context to question when there is any.
func UserMessage(question, groundingContext string) string {
	if groundingContext == "" {
		return question
	}
	return question + sourcesPreamble + groundingContext
}

// Complete asks the model to answer question using groundingContext. Errors
// from the provider are returned as-is, wrapped with the model name.
func (c *Client) Complete(ctx context.Context, question, groundingContext string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := Request{
		Model:     c.cfg.Model,
		System:    c.cfg.SystemPrompt,
		User:      UserMessage(question, groundingContext),
		MaxTokens: c.cfg.MaxTokens,
	}

	start := time.Now()
	answer, err := c.provider.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveCompletion("error", elapsed)
		c.logger.Error("completion failed",
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return "", fmt.Errorf("model %s: %w", c.cfg.Model, err)
	}
	metrics.ObserveCompletion("ok", elapsed)

	if strings.TrimSpace(answer) == "" {
		c.logger.Warn("model returned no content", zap.String("model", c.cfg.Model))
		return NoResponse, nil
	}
	c.logger.Debug("completion finished",
		zap.String("model", c.cfg.Model),
		zap.Duration("duration", elapsed),
		zap.Int("answer_len", len(answer)),
	)
	return answer, nil
}
