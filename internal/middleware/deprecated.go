package middleware

import (
	"fmt"
	"net/http"
)

// NewDeprecatedMiddleware は非推奨バージョンのAPIであることをヘッダーで通知する。
// リクエストはそのまま処理する。
func NewDeprecatedMiddleware(successorPath string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Deprecation", "true")
			if successorPath != "" {
				w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"successor-version\"", successorPath))
			}
			next.ServeHTTP(w, r)
		})
	}
}
