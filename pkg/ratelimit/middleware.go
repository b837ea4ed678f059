package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config holds per-IP rate limiting settings for public endpoints.
type Config struct {
	// PerIPMax is the maximum number of requests per IP within PerIPWindow
	PerIPMax int
	// PerIPWindow is the trailing window requests are counted over
	PerIPWindow time.Duration
	// IncludeHeaders controls whether X-RateLimit headers are set on responses
	IncludeHeaders bool
}

// DefaultConfig returns sensible defaults: 60 requests per minute per IP.
func DefaultConfig() *Config {
	return &Config{
		PerIPMax:       60,
		PerIPWindow:    time.Minute,
		IncludeHeaders: true,
	}
}

// Middleware applies per-IP sliding-window limits to HTTP requests.
type Middleware struct {
	config  *Config
	limiter Limiter
}

// NewMiddleware creates rate limiting middleware backed by the given limiter.
func NewMiddleware(config *Config, limiter Limiter) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	return &Middleware{
		config:  config,
		limiter: limiter,
	}
}

type rateLimitResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	ResetAt string `json:"reset_at"`
}

// Handler returns the per-IP rate limiting handler. If the limiter backend
// fails the request is allowed through: availability is preferred over strict
// limiting for public endpoints, and the failure is logged for visibility.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		res, err := m.limiter.CheckAndRecord(r.Context(), "ip:"+ip, m.config.PerIPWindow, m.config.PerIPMax)
		if err != nil {
			slog.Error("Rate limiter backend unavailable, failing open", "ip", ip, "err", err)
			next.ServeHTTP(w, r)
			return
		}

		if m.config.IncludeHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.config.PerIPMax))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}

		if !res.Allowed {
			m.rateLimitExceeded(w, r, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, res Result) {
	slog.Warn("Rate limit exceeded",
		"ip", ClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
		"reset_at", res.ResetAt,
	)

	retryAfter := time.Until(res.ResetAt).Seconds()
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(rateLimitResponse{
		Error:   "rate_limit_exceeded",
		Message: "Too many requests. Please try again later.",
		ResetAt: res.ResetAt.UTC().Format(time.RFC3339),
	})
}

// ClientIP extracts the client IP address from the request.
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is in format "IP:port", we only want the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}

	return addr
}
