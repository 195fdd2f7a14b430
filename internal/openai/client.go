// Package openai adapts go-openai to the embedding and generation
// interfaces used by the indexing and generation services.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultEmbeddingModel      = openai.SmallEmbedding3
	DefaultEmbeddingDimensions = 1536
	EmbedderName               = "openai"

	// MaxInputChars keeps a long job description under the 8191 token input
	// limit of the embedding models.
	MaxInputChars = 24000

	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

var (
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI is the slice of the go-openai client the embedder calls.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	Attempts            int
	Backoff             time.Duration
}

// Client turns chunk text and queries into fixed-length vectors. Rate limit
// and server errors are retried with exponential backoff; everything else
// fails the call at once.
type Client struct {
	api        EmbeddingAPI
	model      openai.EmbeddingModel
	dimensions int
	attempts   int
	backoff    time.Duration
}

func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

func NewClientWithConfig(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newClient(openai.NewClientWithConfig(oc), cfg)
}

func newClient(api EmbeddingAPI, cfg Config) *Client {
	c := &Client{
		api:        api,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.EmbeddingDimensions,
		attempts:   cfg.Attempts,
		backoff:    cfg.Backoff,
	}
	if c.model == "" {
		c.model = DefaultEmbeddingModel
	}
	if c.dimensions <= 0 {
		c.dimensions = DefaultEmbeddingDimensions
	}
	if c.attempts <= 0 {
		c.attempts = defaultAttempts
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	return c
}

func (c *Client) Dimension() int {
	return c.dimensions
}

// GenerateEmbedding embeds text, truncated to MaxInputChars.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if len(text) > MaxInputChars {
		text = truncateRunes(text, MaxInputChars)
	}

	req := openai.EmbeddingRequest{Input: []string{text}, Model: c.model}
	// ada-002 has a fixed size and rejects the dimensions parameter
	if c.model != openai.AdaEmbeddingV2 {
		req.Dimensions = c.dimensions
	}

	var (
		resp openai.EmbeddingResponse
		err  error
	)
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if werr := sleepCtx(ctx, c.backoff<<(attempt-1)); werr != nil {
				return nil, werr
			}
		}
		resp, err = c.api.CreateEmbeddings(ctx, req)
		if err == nil || !retryable(err) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("failed to create embedding: no embedding data returned")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embedding))
	}
	return embedding, nil
}

func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
