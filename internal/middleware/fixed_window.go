package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/nodebird/internal/model"
)

// FixedWindowConfig は固定ウィンドウ方式のレート制限設定。
type FixedWindowConfig struct {
	Limit  int64         // ウィンドウあたりの最大リクエスト数
	Window time.Duration // ウィンドウの長さ
	Route  string        // カウンターとメトリクスを区別するルート名
}

// RateLimitRecorder はレート制限超過を記録する。
type RateLimitRecorder interface {
	RecordRateLimited(route string)
}

// NewFixedWindowMiddleware は呼び出し元ごとに固定ウィンドウでリクエスト数を制限する
// ミドルウェアを返す。
// 呼び出し元はトークンのユーザーID、トークン検証前であればクライアントIPで識別する。
// 上限超過時は429とRetry-After（現在のウィンドウの残り秒数）を返す。
// カウンターストアの障害時はリクエストを通す。
func NewFixedWindowMiddleware(store WindowStore, config FixedWindowConfig, recorder RateLimitRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := callerKey(r)
			key := config.Route + ":" + caller

			count, resetIn, err := store.Incr(r.Context(), key, config.Window)
			if err != nil {
				slog.Error("rate limit store failed, allowing request",
					slog.String("route", config.Route),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			remaining := config.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(config.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > config.Limit {
				if recorder != nil {
					recorder.RecordRateLimited(config.Route)
				}
				slog.Warn("rate limit exceeded",
					slog.String("caller", caller),
					slog.String("route", config.Route),
					slog.Int64("count", count),
				)
				writeRateLimitResponse(w, resetIn)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// callerKey はレート制限の対象を識別するキーを返す。
func callerKey(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}
	return "ip:" + clientIP(r)
}

// clientIP はRemoteAddrからホスト部分を取り出す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, retryAfter time.Duration) {
	setRetryAfter(w, retryAfter)
	WriteErrorResponse(w, model.NewRateLimitedError())
}

// setRetryAfter はRetry-Afterヘッダーに再試行可能になるまでの秒数（最低1秒）を設定する。
func setRetryAfter(w http.ResponseWriter, retryAfter time.Duration) {
	retryAfterSec := int(math.Ceil(retryAfter.Seconds()))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
}
