package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
)

type stubMatcher struct {
	result *knowledgebase.MatchResult
	err    error
	got    []knowledgebase.MatchRequest
}

func (s *stubMatcher) Match(_ context.Context, req knowledgebase.MatchRequest) (*knowledgebase.MatchResult, error) {
	s.got = append(s.got, req)
	if s.err != nil {
		return nil, s.err
	}
	if req.Issue == "" {
		return nil, knowledgebase.ErrEmptyIssue
	}
	return s.result, nil
}

type stubHealth struct{ status int }

func (s stubHealth) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(s.status)
	}
}

func newTestGateway(m Matcher, h HealthReporter) *Gateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGateway(DefaultGatewayConfig(), m, h, logger)
}

func postChat(t *testing.T, g *Gateway, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	m := &stubMatcher{result: &knowledgebase.MatchResult{
		ArticleID: "KB001",
		KBUsed:    "Run `a`. Then `b`.",
		Commands:  []string{"a", "b"},
	}}
	g := newTestGateway(m, nil)

	rec := postChat(t, g, `{"issue":"service down"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Run `a`. Then `b`.", body["kb_used"])
	assert.Equal(t, "a\nb", body["commands"])
	assert.Len(t, body, 2)

	require.Len(t, m.got, 1)
	assert.Equal(t, "service down", m.got[0].Issue)
	assert.True(t, m.got[0].DryRun)
}

func TestChatDryRunFalse(t *testing.T) {
	m := &stubMatcher{result: &knowledgebase.MatchResult{KBUsed: "text", Commands: []string{}}}
	g := newTestGateway(m, nil)

	rec := postChat(t, g, `{"issue":"x","dry_run":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, m.got[0].DryRun)
	assert.JSONEq(t, `{"kb_used":"text","commands":""}`, rec.Body.String())
}

func TestChatNoMatch(t *testing.T) {
	g := newTestGateway(&stubMatcher{err: fmt.Errorf("query: %w", knowledgebase.ErrNoMatch)}, nil)

	rec := postChat(t, g, `{"issue":"anything"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No KB match found"}`, rec.Body.String())
}

func TestChatMissingIssue(t *testing.T) {
	g := newTestGateway(&stubMatcher{}, nil)

	rec := postChat(t, g, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"issue is required"}`, rec.Body.String())
}

func TestChatInvalidBody(t *testing.T) {
	m := &stubMatcher{}
	g := newTestGateway(m, nil)

	rec := postChat(t, g, `{"issue":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, rec.Body.String())
	assert.Empty(t, m.got)
}

func TestChatBodyTooLarge(t *testing.T) {
	m := &stubMatcher{}
	cfg := DefaultGatewayConfig()
	cfg.MaxRequestSize = 16
	g := NewGateway(cfg, m, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := postChat(t, g, `{"issue":"`+strings.Repeat("a", 64)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, m.got)
}

func TestChatDependencyFailure(t *testing.T) {
	g := newTestGateway(&stubMatcher{err: errors.New("embedding provider unavailable")}, nil)

	rec := postChat(t, g, `{"issue":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

// blockingMatcher waits for its context, like a dependency that never answers.
type blockingMatcher struct{}

func (blockingMatcher) Match(ctx context.Context, _ knowledgebase.MatchRequest) (*knowledgebase.MatchResult, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("query index: %w", ctx.Err())
}

func TestChatRequestTimeout(t *testing.T) {
	cfg := DefaultGatewayConfig()
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)

	cfg.RequestTimeout = 20 * time.Millisecond
	g := NewGateway(cfg, blockingMatcher{}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	start := time.Now()
	rec := postChat(t, g, `{"issue":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChatWhitespaceIssueReachesMatcher(t *testing.T) {
	m := &stubMatcher{err: knowledgebase.ErrNoMatch}
	g := newTestGateway(m, nil)

	rec := postChat(t, g, `{"issue":"   "}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, m.got, 1)
	assert.Equal(t, "   ", m.got[0].Issue)
}

func TestChatMethodNotAllowed(t *testing.T) {
	g := newTestGateway(&stubMatcher{}, nil)

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthDelegates(t *testing.T) {
	g := newTestGateway(&stubMatcher{}, stubHealth{status: http.StatusServiceUnavailable})

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	g = newTestGateway(&stubMatcher{}, nil)
	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsCountRequests(t *testing.T) {
	m := &stubMatcher{result: &knowledgebase.MatchResult{KBUsed: "k"}}
	g := newTestGateway(m, nil)

	postChat(t, g, `{"issue":"x"}`)
	postChat(t, g, `{"issue":""}`)

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RequestsTotal    int64            `json:"requests_total"`
		RequestsByStatus map[string]int64 `json:"requests_by_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(2), body.RequestsTotal)
	assert.Equal(t, int64(1), body.RequestsByStatus["200"])
	assert.Equal(t, int64(1), body.RequestsByStatus["400"])
}

func TestCORSPreflight(t *testing.T) {
	g := newTestGateway(&stubMatcher{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
