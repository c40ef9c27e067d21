// Package indexer is a GraphQL client for a Uniswap-V3 style subgraph. All
// requests share one rate limiter and are retried with exponential backoff.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"lpsim/internal/apperr"
)

// ErrBlockPinUnsupported means the indexer rejected the block argument.
// It is never retried.
var ErrBlockPinUnsupported = errors.New("indexer does not support block-pinned queries")

var blockPinPattern = regexp.MustCompile(`(?i)(unknown|unexpected|unsupported|invalid)\s+argument\s+["']?block["']?|block_height`)

const (
	defaultMaxAttempts = 4
	defaultBackoff     = 250 * time.Millisecond
	defaultMinInterval = 200 * time.Millisecond
	defaultTimeout     = 20 * time.Second
	maxErrorBody       = 512
)

// Client talks to a tick subgraph and, optionally, a blocks subgraph.
type Client struct {
	endpoint       string
	blocksEndpoint string
	httpClient     *http.Client
	limiter        *RateLimiter
	maxAttempts    int
	backoff        time.Duration
	logger         *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMaxAttempts sets how many times a request is tried.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the first retry delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithMinInterval sets the minimum interval between requests.
func WithMinInterval(d time.Duration) Option {
	return func(c *Client) {
		c.limiter = NewRateLimiter(d)
	}
}

// WithRateLimiter shares a limiter between clients.
func WithRateLimiter(l *RateLimiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithBlocksEndpoint sets the blocks subgraph used by BlockMetas.
func WithBlocksEndpoint(url string) Option {
	return func(c *Client) {
		c.blocksEndpoint = strings.TrimSpace(url)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the subgraph at endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("subgraph url is required")
	}
	c := &Client{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		limiter:     NewRateLimiter(defaultMinInterval),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query runs a GraphQL query with retries and decodes data into out.
func (c *Client) query(ctx context.Context, endpoint, op, query string, vars map[string]any, out any) error {
	err := withRetry(ctx, c.maxAttempts, c.backoff, c.logger, op, func(ctx context.Context) error {
		return c.do(ctx, endpoint, query, vars, out)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBlockPinUnsupported) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &apperr.ExternalFetchError{Op: op, Err: err}
}

func (c *Client) do(ctx context.Context, endpoint, query string, vars map[string]any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return permanent(err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return permanent(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		// some graph nodes answer schema errors with 400 and a GraphQL body
		var gr graphQLResponse
		if json.Unmarshal(snippet, &gr) == nil && len(gr.Errors) > 0 {
			return graphQLErrors(gr.Errors)
		}
		return fmt.Errorf("http status %d", resp.StatusCode)
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return graphQLErrors(gr.Errors)
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("empty data")
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func graphQLErrors(errs []graphQLError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if isBlockPinError(e.Message) {
			return permanent(fmt.Errorf("%w: %s", ErrBlockPinUnsupported, e.Message))
		}
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
}

func isBlockPinError(msg string) bool {
	return blockPinPattern.MatchString(msg)
}
