// internal/api/server.go

// Package api is the HTTP surface of the bridge.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tamzrod/modbus-bridge/internal/bridge"
	"github.com/tamzrod/modbus-bridge/internal/metrics"
	"github.com/tamzrod/modbus-bridge/internal/status"
)

// Bridge is the command surface served by /read-modbus and /set-modbus.
type Bridge interface {
	Get(ctx context.Context, cmd bridge.Command) (bridge.Command, error)
	Set(ctx context.Context, cmd bridge.Command) (bridge.Command, error)
}

type Config struct {
	Version     string
	ScratchSize int
	RateRPS     float64 // 0 disables limiting
	RateBurst   int
}

type Server struct {
	cfg     Config
	bridge  Bridge
	store   *status.Store
	metrics *metrics.Registry
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func New(cfg Config, b Bridge, store *status.Store, m *metrics.Registry, logger zerolog.Logger) *Server {
	if cfg.ScratchSize <= 0 {
		cfg.ScratchSize = 10240
	}

	s := &Server{
		cfg:     cfg,
		bridge:  b,
		store:   store,
		metrics: m,
		logger:  logger.With().Str("component", "api").Logger(),
	}
	if cfg.RateRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst)
	}
	return s
}

// Handler returns the routed handler with request ids and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("POST /read-modbus", s.limit(s.handleRead))
	mux.HandleFunc("POST /set-modbus", s.limit(s.handleSet))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.withRequestID(mux)
}

// limit applies the bus token bucket.
func (s *Server) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("rate limited")
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		begin := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(begin)).
			Msg("request")
	})
}
