package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ImedBousakhria/fluffy-lamp/pkg/config"
)

// IPConnectionCounter reports how many live connections an address holds.
type IPConnectionCounter func(ipAddr string) int

// NewConnectionLimiter caps concurrent WebSocket connections per client IP.
// Authentication happens in-band after the upgrade, so the IP is the only
// identity available at this point in the chain.
func NewConnectionLimiter(
	logger *slog.Logger,
	counter IPConnectionCounter,
	cfg config.ConnectionLimitConfig,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MaxPerIP <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			count := counter(reqMeta.IP)
			if count >= cfg.MaxPerIP {
				logger.Warn("IP connection limit reached",
					slog.String("ip", reqMeta.IP),
					slog.Int("count", count),
				)
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
