package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sourcechat/internal/id/uuid"
	"github.com/JakeFAU/sourcechat/internal/logging"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the ID assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware reuses a well-formed inbound X-Request-ID or mints one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if !uuid.Valid(reqID) {
			reqID = ""
			if s.ids != nil {
				if id, err := s.ids.NewID(); err == nil {
					reqID = id
				} else {
					s.logger.Warn("request id generation failed", zap.Error(err))
				}
			}
		}
		ctx := r.Context()
		if reqID != "" {
			w.Header().Set(requestIDHeader, reqID)
			ctx = context.WithValue(ctx, requestIDKey{}, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware stores a request-scoped logger in the context and logs
// one line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger
		if id := RequestID(r.Context()); id != "" {
			logger = logger.With(zap.String("request_id", id))
		}
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), logger)))
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger := logging.FromContext(r.Context(), s.logger)
				logger.Error("panic recovered", zap.Any("panic", rec), zap.Stack("stack"))
				writeError(w, logger, http.StatusInternalServerError, msgInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds the request context. The handler still writes the
// response, so an expired budget surfaces through the normal JSON error paths.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
