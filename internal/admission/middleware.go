package admission

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UnknownIdentity is the shared bucket for clients with no usable address.
const UnknownIdentity = "unknown"

// IdentityFunc derives the client identity from a request.
type IdentityFunc func(r *http.Request) string

// ClientIdentity returns an IdentityFunc that uses the connection address,
// then the first X-Forwarded-For entry, then UnknownIdentity. With
// preferForwarded set (the service sits behind a trusted proxy) the
// forwarded address is consulted first.
func ClientIdentity(preferForwarded bool) IdentityFunc {
	return func(r *http.Request) string {
		if preferForwarded {
			if ip := forwardedFor(r); ip != "" {
				return ip
			}
		}
		if ip := remoteHost(r); ip != "" {
			return ip
		}
		if ip := forwardedFor(r); ip != "" {
			return ip
		}
		return UnknownIdentity
	}
}

func forwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

type rejection struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Middleware admits or rejects each request through gate before calling next.
// Denied requests get 429 with the quota message. Store failures either pass
// through (fail open) or get 503 (fail closed).
func Middleware(gate *Gate, identity IdentityFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	if identity == nil {
		identity = ClientIdentity(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity(r)
			decision, err := gate.Admit(r.Context(), id)
			if err != nil {
				writeRejection(w, logger, http.StatusServiceUnavailable, rejection{
					Error:   "Rate limiter unavailable.",
					Message: "Please try again later.",
				})
				return
			}
			if !decision.Allowed {
				if secs := retryAfterSeconds(decision.RetryAfter); secs > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
				writeRejection(w, logger, http.StatusTooManyRequests, rejection{
					Error:   "Too many requests.",
					Message: decision.Reason,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up so a client that waits the advertised time
// lands after the window ends.
func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func writeRejection(w http.ResponseWriter, logger *zap.Logger, status int, body rejection) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("write rejection failed", zap.Error(err))
	}
}
