package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/chat"
	"github.com/JakeFAU/sourcechat/internal/logging"
	"github.com/JakeFAU/sourcechat/internal/metrics"
)

// Error bodies returned by the chat route.
const (
	msgInvalidJSON    = "Invalid JSON body."
	msgBodyTooLarge   = "Request body too large."
	msgCompletionFail = "Failed to fetch AI response."
	msgInternal       = "Internal Server Error"
)

// Answerer runs a chat request end to end.
type Answerer interface {
	Answer(ctx context.Context, req chat.Request) (chat.Response, error)
}

// IDGenerator produces request IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Config holds the HTTP settings.
type Config struct {
	APIPrefix      string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server wires HTTP handlers to the chat service.
type Server struct {
	router chi.Router
	chat   Answerer
	ids    IDGenerator
	checks []ReadinessCheck
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. admission guards
// every route under cfg.APIPrefix and may be nil.
func NewServer(
	answerer Answerer,
	admission func(http.Handler) http.Handler,
	ids IDGenerator,
	cfg Config,
	logger *zap.Logger,
	checks ...ReadinessCheck,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	cfg.APIPrefix = "/" + strings.Trim(cfg.APIPrefix, "/")
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		chat:   answerer,
		ids:    ids,
		checks: checks,
		cfg:    cfg,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		if admission != nil {
			r.Use(admission)
		}
		if cfg.RequestTimeout > 0 {
			r.Use(timeoutMiddleware(cfg.RequestTimeout))
		}
		r.Post("/chat", s.postChat)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range s.checks {
		if err := check(ctx); err != nil {
			logging.FromContext(r.Context(), s.logger).Warn("readiness check failed", zap.Error(err))
			writeJSON(w, s.logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context(), s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, logger, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeError(w, logger, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	req, err := chat.ParseRequest(body)
	if err != nil {
		s.writeChatError(w, logger, err)
		return
	}

	resp, err := s.chat.Answer(r.Context(), req)
	if err != nil {
		s.writeChatError(w, logger, err)
		return
	}
	writeJSON(w, logger, http.StatusOK, resp)
}

func (s *Server) writeChatError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, logger, http.StatusBadRequest, verr.Message)
	case errors.Is(err, chat.ErrMalformedBody):
		writeError(w, logger, http.StatusBadRequest, msgInvalidJSON)
	case errors.Is(err, chat.ErrCompletion):
		writeError(w, logger, http.StatusInternalServerError, msgCompletionFail)
	default:
		logger.Error("chat request failed unexpectedly", zap.Error(err))
		writeError(w, logger, http.StatusInternalServerError, msgInternal)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	writeJSON(w, logger, status, map[string]string{"error": msg})
}
