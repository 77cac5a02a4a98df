package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"smartq/internal/config"
	"smartq/internal/database"
	"smartq/internal/metrics"
	"smartq/internal/ml"
	"smartq/internal/queue"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the queue and prediction operations over HTTP JSON.
type HTTPServer struct {
	cfg     *config.Config
	db      *database.DB
	engine  *queue.Engine
	client  *ml.Client
	scanner *ml.Scanner
	logger  *zerolog.Logger
	server  *http.Server
	limiter *clientLimiter
	now     func() time.Time
}

func NewHTTPServer(
	cfg *config.Config,
	db *database.DB,
	engine *queue.Engine,
	client *ml.Client,
	scanner *ml.Scanner,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		db:      db,
		engine:  engine,
		client:  client,
		scanner: scanner,
		logger:  logger,
		limiter: newClientLimiter(cfg.RateLimit),
		now:     time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)

	mux.HandleFunc("/api/queue/join", srv.handleJoin)
	mux.HandleFunc("/api/queue/export", srv.handleExport)
	mux.HandleFunc("/api/queue/", srv.handleQueueEntry)
	mux.HandleFunc("/api/queue", srv.handleQueueList)

	mux.HandleFunc("/api/events", srv.handleEvents)

	mux.HandleFunc("/api/ml/predict/waiting-time", srv.handlePredictWaitingTime)
	mux.HandleFunc("/api/ml/predict/queue-length", srv.handlePredictQueueLength)
	mux.HandleFunc("/api/ml/predict/no-show", srv.handlePredictNoShow)
	mux.HandleFunc("/api/ml/predict/peak-hours", srv.handlePredictPeakHours)
	mux.HandleFunc("/api/ml/suggest/best-time", srv.handleSuggestBestTime)
	mux.HandleFunc("/api/ml/train", srv.handleTrain)
	mux.HandleFunc("/api/ml/status", srv.handleStatus)

	handler := srv.loggingMiddleware(srv.limiter.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler. Used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// clientLimiter applies a per-client token bucket keyed by remote host.
type clientLimiter struct {
	cfg      config.RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	return &clientLimiter{cfg: cfg}
}

func (l *clientLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.RPS <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !l.getLimiter(clientKey(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (l *clientLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) count(endpoint string) {
	metrics.IncHTTP(endpoint)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
