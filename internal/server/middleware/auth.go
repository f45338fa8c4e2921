package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer token and returns the principal.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware guards REST routes with bearer-token authentication.
// The handshake on the WebSocket side uses the same verifier; here the
// token travels in the Authorization header instead of an AUTH frame.
func NewAuthMiddleware(logger *slog.Logger, verifier TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				// metadata middleware missing from the chain
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Warn("missing bearer token", slog.String("ip", reqMeta.IP))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				logger.Warn("invalid bearer token",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.UserID = principal
			next.ServeHTTP(w, r)
		})
	}
}
