package middleware

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
)

// NewRequestLogger creates a middleware that logs each request with its
// response code and duration.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			var ip string
			if ok {
				ip = reqMeta.IP
			}

			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Info("handled",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("ip", ip),
				slog.Int("status", m.Code),
				slog.Duration("duration", m.Duration),
			)
		})
	}
}
