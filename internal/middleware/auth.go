package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/account-ledger/internal/auth"
	"github.com/josh-kwaku/account-ledger/internal/handler"
	"github.com/josh-kwaku/account-ledger/internal/logging"
)

// Auth requires a bearer service token on every request outside /health.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rejected service token", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithCaller(r.Context(), claims.Service)
			ctx = logging.With(ctx, "caller", claims.Service)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublic(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/docs" || strings.HasPrefix(path, "/docs/")
}
