package middleware

import (
	"net/http"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api"
)

// MaxBodyBytes caps request body size. Ingestion posts whole documents,
// so the cap is the only guard against unbounded uploads. A declared
// Content-Length over the cap is rejected up front; chunked bodies are
// cut off by MaxBytesReader mid-read.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
