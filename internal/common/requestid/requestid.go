package requestid

import (
	"context"
	"net/http"

	"github.com/renstrom/shortuuid"
)

// Request IDs are embedded in HTTP headers using this key.
// This is the standard key used for request Ids. For example, opentelemetry uses the same one.
const HeaderKey = "X-Request-Id"

type contextKey struct{}

// FromContext returns the request Id stored in ctx, if one is available.
// The second return value is true if the operation was successful.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}

// FromContextOrMissing returns the request Id stored in ctx. If none is available, the string "missing" is returned.
func FromContextOrMissing(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id
	}
	return "missing"
}

// AddToContext returns a new context derived from ctx that is annotated with id.
func AddToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware annotates incoming requests with an Id, taken from the X-Request-Id header if present
// and generated using github.com/renstrom/shortuuid otherwise. The Id is echoed in the response headers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderKey)
		if id == "" {
			id = shortuuid.New()
		}
		w.Header().Set(HeaderKey, id)
		next.ServeHTTP(w, r.WithContext(AddToContext(r.Context(), id)))
	})
}
