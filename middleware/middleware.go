// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/danielhkuo/quickpoll/models"
)

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// FailureResponse writes {success:false, message} with the given status.
// requiresPassword is only included when set.
func FailureResponse(w http.ResponseWriter, statusCode int, message string, requiresPassword bool) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Success:          false,
		Message:          message,
		RequiresPassword: requiresPassword,
	})
}

// DefaultMaxBodyBytes caps bodies read by ParseJSONBody
const DefaultMaxBodyBytes = 1 << 20

// ParseJSONBody parses at most DefaultMaxBodyBytes of the request body into
// the given struct
func ParseJSONBody(r *http.Request, v interface{}) error {
	return ParseLimitedJSONBody(nil, r, v, DefaultMaxBodyBytes)
}

// ParseLimitedJSONBody parses at most limit bytes of the request body.
// Larger bodies fail with an error for which IsBodyTooLarge is true. w may
// be nil; when set, the server closes the connection after the response.
func ParseLimitedJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// IsBodyTooLarge reports whether err came from reading past the body limit
func IsBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// CORS middleware allows cross-origin requests from any frontend
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP address.
// Forwarding headers are read only when the direct peer is a trusted proxy:
// Client-IP, the first hop of X-Forwarded-For, then X-Real-IP. Otherwise,
// and when none is set, RemoteAddr without its port is used. An empty
// trusted list trusts loopback and private peers.
func GetClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r)
	if !trustsPeer(peer, trusted) {
		return peer
	}

	if ip := strings.TrimSpace(r.Header.Get("Client-IP")); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func trustsPeer(peer string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	if len(trusted) == 0 {
		return addr.IsLoopback() || addr.IsPrivate()
	}
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// BaseURL returns the public origin used to build absolute links.
// A configured value wins; otherwise it is derived from the request, with
// localhost always served over http.
func BaseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}

	host := r.Host
	scheme := "http"
	switch {
	case strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1"):
	case r.TLS != nil:
		scheme = "https"
	case r.Header.Get("X-Forwarded-Proto") == "https":
		scheme = "https"
	case r.Header.Get("X-Forwarded-Ssl") == "on":
		scheme = "https"
	}
	return scheme + "://" + host
}
