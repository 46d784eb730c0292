// Package embedding computes chunk vectors against an OpenAI-compatible endpoint
// or an Azure-style deployment of the same model.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/ragdesk/internal/core"
)

const (
	defaultBatchSize   = 256
	defaultParallelism = 4
)

// Client implements core.EmbeddingProvider.
type Client struct {
	httpClient  *http.Client
	batchSize   int
	parallelism int
}

// Option configures a Client.
type Option func(*Client)

// WithBatchSize caps the number of inputs per provider request.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithParallelism bounds concurrent sub-batch requests.
func WithParallelism(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithHTTPClient sets the transport used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
		batchSize:   defaultBatchSize,
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbedBatch returns one vector per text, out[i] for texts[i]. A failed
// sub-batch fails the whole call; no partial result is returned.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, cfg core.EmbeddingConfig) ([][]float32, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("%w: no embedding api key configured for %q", core.ErrMissingCredentials, cfg.Provider)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	llm, err := c.newLLM(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := llm.CreateEmbedding(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("inputs %d..%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("inputs %d..%d: got %d vectors for %d inputs", start, end-1, len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
	}

	if cfg.Dimensions > 0 {
		for i, v := range out {
			if len(v) != cfg.Dimensions {
				return nil, fmt.Errorf("%w: vector %d has %d dimensions, %s declares %d",
					core.ErrEmbeddingFailed, i, len(v), cfg.Tag(), cfg.Dimensions)
			}
		}
	}
	return out, nil
}

func (c *Client) newLLM(cfg core.EmbeddingConfig) (*openai.LLM, error) {
	if az := cfg.Azure; az != nil {
		return openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(az.Endpoint),
			openai.WithAPIVersion(az.APIVersion),
			openai.WithEmbeddingModel(az.Deployment),
			openai.WithToken(az.APIKey),
			openai.WithHTTPClient(c.httpClient),
		)
	}
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(c.httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}
