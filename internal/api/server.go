// Package api exposes the match pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/seanblong/resumematch/internal/auth"
	"github.com/seanblong/resumematch/internal/ingest"
	"github.com/seanblong/resumematch/pkg/models"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// DefaultMaxUploadBytes bounds the resume file size.
const DefaultMaxUploadBytes = 10 << 20

// Matcher runs one match. *match.Service implements it.
type Matcher interface {
	Match(ctx context.Context, jd string, data []byte, format ingest.Format) (models.MatchResult, error)
}

type Options struct {
	MaxUploadBytes int64
	CORSOrigins    []string
	Auth           *auth.Authenticator
	// Health, if set, is consulted by /healthz.
	Health func(ctx context.Context) error
}

type Server struct {
	matcher Matcher
	logger  zerolog.Logger
	opts    Options
}

func NewServer(m Matcher, logger zerolog.Logger, opts Options) *Server {
	if opts.MaxUploadBytes < 1 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{matcher: m, logger: logger, opts: opts}
}

// Handler returns the routed handler wrapped in logging, request id and
// CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /auth/status", s.opts.Auth.StatusHandler)

	matchHandler := s.opts.Auth.OptionalAuthMiddleware(http.HandlerFunc(s.handleMatch))
	mux.Handle("POST /match", matchHandler)
	mux.Handle("POST /api/v1/match", matchHandler)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: !containsWildcard(s.opts.CORSOrigins),
	})

	return hlog.NewHandler(s.logger)(
		requestID(
			hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
				hlog.FromRequest(r).Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
			})(c.Handler(mux)),
		),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.opts.Health(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// requestID reuses a well-formed incoming X-Request-ID or mints a UUID,
// echoes it, and adds it to the request logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		logger := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("failed to write response")
	}
}
