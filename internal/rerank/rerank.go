// Package rerank provides the optional cross-encoder reranking
// collaborator. A Reranker scores a fused candidate set jointly with the
// query for more accurate relevance than the bi-encoder similarity used
// during retrieval, at higher per-candidate cost. Its absence means
// hybrid-only (RRF) ranking.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gikerrors "github.com/guided-indexing/gik/internal/errors"
)

// Result is one document's rerank outcome, in the same order semantics
// as the input slice: Index refers back to the caller's original
// candidate position.
type Result struct {
	Index    int
	Score    float64
	Document string
}

// Reranker scores and reorders documents by relevance to a query.
// Implementations must return results sorted by score descending.
// Ties in the fused candidate set that a Reranker leaves untouched keep
// their original fused rank.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)
	Available(ctx context.Context) bool
	Close() error
}

// NoOp is the default reranker: it returns documents in their original
// (fused) order with strictly decreasing scores, so downstream code can
// treat "no reranker configured" and "reranker ran and agreed with
// fusion" uniformly.
type NoOp struct{}

func (NoOp) Rerank(_ context.Context, _ string, documents []string, topK int) ([]Result, error) {
	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{Index: i, Score: 1.0 - float64(i)*0.01, Document: doc}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (NoOp) Available(context.Context) bool { return true }
func (NoOp) Close() error                   { return nil }

var _ Reranker = NoOp{}

// Default endpoint/model/timeout for the HTTP cross-encoder backend,
// mirroring the local-server conventions already used by the embedding
// package's Ollama client.
const (
	DefaultEndpoint = "http://localhost:11434"
	DefaultModel    = "reranker-small"
	DefaultTimeout  = 30 * time.Second
	DefaultPoolSize = 50
)

// Config configures an HTTPReranker.
type Config struct {
	Endpoint        string
	Model           string
	Timeout         time.Duration
	PoolSize        int
	SkipHealthCheck bool
	Instruction     string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
		PoolSize: DefaultPoolSize,
	}
}

// HTTPReranker implements cross-encoder reranking against a local HTTP
// server exposing /health and /rerank, the same shape as the embedding
// package's local model server.
type HTTPReranker struct {
	client   *http.Client
	config   Config
	mu       sync.RWMutex
	closed   bool
	endpoint string
	breaker  *gikerrors.CircuitBreaker
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker client against cfg.Endpoint, probing
// /health unless SkipHealthCheck is set.
func NewHTTPReranker(ctx context.Context, cfg Config) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r := &HTTPReranker{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
		breaker:  gikerrors.NewCircuitBreaker("reranker:" + cfg.Endpoint),
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("reranker health check failed: %w", err)
		}
	}

	slog.Debug("reranker_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return r, nil
}

func (r *HTTPReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to reranker server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reranker server unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type rerankRequest struct {
	Query       string   `json:"query"`
	Documents   []string `json:"documents"`
	Model       string   `json:"model,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index    int     `json:"index"`
		Score    float64 `json:"score"`
		Document string  `json:"document"`
	} `json:"results"`
}

// Rerank scores documents against query via the configured HTTP backend.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("reranker is closed")
	}

	if len(documents) == 0 {
		return []Result{}, nil
	}

	reqBody := rerankRequest{Query: query, Documents: documents, Model: r.config.Model, Instruction: r.config.Instruction}
	if topK > 0 {
		reqBody.TopK = topK
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	// A reranker that has been failing is skipped fast via the circuit
	// breaker instead of letting every query pay the full request timeout;
	// callers fall back to NoOp-equivalent fused ordering on ErrCircuitOpen.
	return gikerrors.CircuitExecuteWithResult(r.breaker, func() ([]Result, error) {
		return r.doRerank(ctx, payload)
	}, func() ([]Result, error) {
		return nil, fmt.Errorf("reranker %q unavailable: %w", r.endpoint, gikerrors.ErrCircuitOpen)
	})
}

func (r *HTTPReranker) doRerank(ctx context.Context, payload []byte) ([]Result, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]Result, len(decoded.Results))
	for i, d := range decoded.Results {
		results[i] = Result{Index: d.Index, Score: d.Score, Document: d.Document}
	}
	return results, nil
}

// Available checks whether the reranker backend is reachable.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.healthCheck(checkCtx) == nil
}

// Close releases the underlying HTTP transport's idle connections.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
