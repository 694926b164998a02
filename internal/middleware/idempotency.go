package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/josh-kwaku/account-ledger/internal/handler"
	"github.com/josh-kwaku/account-ledger/internal/logging"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// IdempotencyKey checks the optional Idempotency-Key header on writes and
// hands it to handlers through the context. Replay detection itself happens
// in the ledger, inside the same transaction as the debit.
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		values := r.Header.Values(idempotencyHeader)
		if len(values) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		key := strings.TrimSpace(values[0])
		if len(values) > 1 || !validIdempotencyKey(key) {
			handler.RespondAppError(w, handler.ErrInvalidIdempotency, nil)
			return
		}

		ctx := handler.ContextWithIdempotencyKey(r.Context(), key)
		ctx = logging.With(ctx, "idempotency_key", key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validIdempotencyKey(key string) bool {
	if key == "" || len(key) > maxIdempotencyKeyLen {
		return false
	}
	for _, c := range key {
		if c > unicode.MaxASCII || !unicode.IsPrint(c) {
			return false
		}
	}
	return true
}
