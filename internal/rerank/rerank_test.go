package rerank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOp_PreservesOrderWithDecreasingScores(t *testing.T) {
	r := NoOp{}
	documents := []string{"doc1", "doc2", "doc3"}

	results, err := r.Rerank(context.Background(), "query", documents, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Index)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.InDelta(t, 0.99, results[1].Score, 0.001)
	assert.InDelta(t, 0.98, results[2].Score, 0.001)
}

func TestNoOp_RespectsTopK(t *testing.T) {
	r := NoOp{}
	documents := []string{"doc1", "doc2", "doc3", "doc4"}

	results, err := r.Rerank(context.Background(), "query", documents, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNoOp_AvailableAlwaysTrue(t *testing.T) {
	r := NoOp{}
	assert.True(t, r.Available(context.Background()))
	assert.NoError(t, r.Close())
}

func TestHTTPReranker_RerankCallsBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/rerank":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"results":[{"index":1,"score":0.9,"document":"doc2"},{"index":0,"score":0.1,"document":"doc1"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	r, err := NewHTTPReranker(context.Background(), Config{Endpoint: server.URL})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	results, err := r.Rerank(context.Background(), "query", []string{"doc1", "doc2"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.InDelta(t, 0.9, results[0].Score, 0.001)
}

func TestHTTPReranker_AvailableReflectsHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	r, err := NewHTTPReranker(context.Background(), Config{Endpoint: server.URL})
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	assert.True(t, r.Available(context.Background()))
}

func TestHTTPReranker_NewFailsWhenHealthCheckFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPReranker(context.Background(), Config{Endpoint: server.URL})
	assert.Error(t, err)
}

func TestHTTPReranker_RerankAfterCloseFails(t *testing.T) {
	r, err := NewHTTPReranker(context.Background(), Config{Endpoint: "http://unused", SkipHealthCheck: true})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	_, err = r.Rerank(context.Background(), "query", []string{"doc1"}, 0)
	assert.Error(t, err)
}
