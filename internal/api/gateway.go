// Package api exposes the knowledge base over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/ewfx/gaipl-booleans/internal/knowledgebase"
	"github.com/ewfx/gaipl-booleans/pkg/models"
)

// Matcher resolves an issue to a KB article.
type Matcher interface {
	Match(ctx context.Context, req knowledgebase.MatchRequest) (*knowledgebase.MatchResult, error)
}

// HealthReporter serves the health endpoint.
type HealthReporter interface {
	HTTPHandler() http.HandlerFunc
}

// Gateway represents the API gateway
type Gateway struct {
	server  *http.Server
	router  *mux.Router
	matcher Matcher
	health  HealthReporter
	config  GatewayConfig
	logger  *slog.Logger
	metrics *GatewayMetrics
}

// GatewayConfig represents gateway configuration
type GatewayConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	EnableCORS     bool          `yaml:"enable_cors"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	AllowedMethods []string      `yaml:"allowed_methods"`
	AllowedHeaders []string      `yaml:"allowed_headers"`
	EnableMetrics  bool          `yaml:"enable_metrics"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size"`
}

// DefaultGatewayConfig returns default gateway configuration
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:           "0.0.0.0",
		Port:           5000,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		EnableMetrics:  true,
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 1 << 20, // 1MB
	}
}

// GatewayMetrics represents gateway metrics
type GatewayMetrics struct {
	mu               sync.Mutex
	RequestsTotal    int64            `json:"requests_total"`
	RequestsActive   int64            `json:"requests_active"`
	RequestsFailed   int64            `json:"requests_failed"`
	AverageLatency   time.Duration    `json:"average_latency"`
	RequestsByPath   map[string]int64 `json:"requests_by_path"`
	RequestsByMethod map[string]int64 `json:"requests_by_method"`
	RequestsByStatus map[int]int64    `json:"requests_by_status"`
	LastRequest      time.Time        `json:"last_request"`
}

// NewGateway creates a new API gateway. health may be nil.
func NewGateway(config GatewayConfig, matcher Matcher, health HealthReporter, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	gateway := &Gateway{
		router:  mux.NewRouter(),
		matcher: matcher,
		health:  health,
		config:  config,
		logger:  logger,
		metrics: &GatewayMetrics{
			RequestsByPath:   make(map[string]int64),
			RequestsByMethod: make(map[string]int64),
			RequestsByStatus: make(map[int]int64),
		},
	}

	gateway.setupRoutes()
	gateway.setupMiddleware()

	var handler http.Handler = gateway.router
	if config.EnableCORS {
		handler = cors.New(cors.Options{
			AllowedOrigins: config.AllowedOrigins,
			AllowedMethods: config.AllowedMethods,
			AllowedHeaders: config.AllowedHeaders,
		}).Handler(handler)
	}

	gateway.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return gateway
}

func (g *Gateway) setupRoutes() {
	g.router.HandleFunc("/chat", g.handleChat).Methods(http.MethodPost)
	g.router.HandleFunc("/health", g.handleHealth).Methods(http.MethodGet)
	if g.config.EnableMetrics {
		g.router.HandleFunc("/metrics", g.handleMetrics).Methods(http.MethodGet)
	}
}

func (g *Gateway) setupMiddleware() {
	g.router.Use(g.requestIDMiddleware)
	g.router.Use(g.loggingMiddleware)
	// Metrics middleware (last, so it sees the final status)
	g.router.Use(g.metricsMiddleware)
}

// Handler returns the root handler, CORS included.
func (g *Gateway) Handler() http.Handler {
	return g.server.Handler
}

// Start starts the API gateway
func (g *Gateway) Start() error {
	g.logger.Info("starting API gateway", "addr", g.server.Addr)
	return g.server.ListenAndServe()
}

// Stop stops the API gateway
func (g *Gateway) Stop(ctx context.Context) error {
	g.logger.Info("stopping API gateway")
	return g.server.Shutdown(ctx)
}

// Helper functions

func writeJSONResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	writeJSONResponse(w, status, models.ErrorResponse{Error: message})
}

// Middleware implementations

type requestIDKey struct{}

// RequestID returns the id assigned to the request by the gateway.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (g *Gateway) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (g *Gateway) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		g.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"request_id", RequestID(r.Context()),
		)
	})
}

func (g *Gateway) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		g.metrics.mu.Lock()
		g.metrics.RequestsActive++
		g.metrics.mu.Unlock()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		g.updateMetrics(r, wrapped.statusCode, time.Since(start))
	})
}

func (g *Gateway) updateMetrics(r *http.Request, statusCode int, duration time.Duration) {
	g.metrics.mu.Lock()
	defer g.metrics.mu.Unlock()

	g.metrics.RequestsActive--
	g.metrics.RequestsTotal++
	if statusCode >= http.StatusInternalServerError {
		g.metrics.RequestsFailed++
	}
	g.metrics.RequestsByPath[r.URL.Path]++
	g.metrics.RequestsByMethod[r.Method]++
	g.metrics.RequestsByStatus[statusCode]++
	g.metrics.LastRequest = time.Now()

	// Update average latency
	if g.metrics.AverageLatency == 0 {
		g.metrics.AverageLatency = duration
	} else {
		g.metrics.AverageLatency = (g.metrics.AverageLatency + duration) / 2
	}
}

// snapshot copies the metrics under the lock.
func (m *GatewayMetrics) snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPath := make(map[string]int64, len(m.RequestsByPath))
	for k, v := range m.RequestsByPath {
		byPath[k] = v
	}
	byMethod := make(map[string]int64, len(m.RequestsByMethod))
	for k, v := range m.RequestsByMethod {
		byMethod[k] = v
	}
	byStatus := make(map[string]int64, len(m.RequestsByStatus))
	for k, v := range m.RequestsByStatus {
		byStatus[fmt.Sprint(k)] = v
	}

	return map[string]any{
		"requests_total":     m.RequestsTotal,
		"requests_active":    m.RequestsActive,
		"requests_failed":    m.RequestsFailed,
		"average_latency_ms": float64(m.AverageLatency) / float64(time.Millisecond),
		"requests_by_path":   byPath,
		"requests_by_method": byMethod,
		"requests_by_status": byStatus,
		"last_request":       m.LastRequest,
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
