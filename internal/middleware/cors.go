package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// OriginChecker はオリジンが登録済みドメインかを判定する。
type OriginChecker interface {
	AllowedOrigin(ctx context.Context, origin string) (bool, error)
}

// CORSRecorder はオリジン判定の結果を記録する。
type CORSRecorder interface {
	RecordCORSDecision(allowed bool)
}

// NewDomainCORSMiddleware は登録済みドメインからのリクエストにのみ
// CORSヘッダーを付与するミドルウェアを返す。
// 許可する場合はリクエストのOriginをそのまま返し、credentialsを許可する。
// 未登録のオリジンにはヘッダーを付けずに後続へ渡す（同一オリジンのみ有効）。
// 判定はリクエストごとに行い、キャッシュしない。
func NewDomainCORSMiddleware(checker OriginChecker, recorder CORSRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			allowed, err := checker.AllowedOrigin(r.Context(), origin)
			if err != nil {
				slog.Error("failed to check origin",
					slog.String("origin", origin),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if origin != "" && recorder != nil {
				recorder.RecordCORSDecision(allowed)
			}

			if !allowed {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			// OPTIONSプリフライトリクエストには204で応答
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				reqHeaders := r.Header.Get("Access-Control-Request-Headers")
				if reqHeaders == "" {
					reqHeaders = "Content-Type, Authorization"
				}
				w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
