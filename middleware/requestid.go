package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in and out, and on to the backend.
const RequestIDHeader = "X-Request-Id"

// A private key for context that only this package can access.
var requestIDCtxKey = &contextKey{"request-id"}

type contextKey struct {
	name string
}

// RequestID reuses an incoming X-Request-Id or mints a new one, packs it into
// the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)

		// put it in context
		ctx := WithRequestID(r.Context(), id)

		// and call the next with our new context
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// ForContext finds the request ID from the context. Empty unless RequestID has run.
func ForContext(ctx context.Context) string {
	raw, _ := ctx.Value(requestIDCtxKey).(string)
	return raw
}
