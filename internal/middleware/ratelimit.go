package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/nodebird/internal/model"
)

// RateLimiterConfig はトークンバケット方式のレート制限の設定を保持する。
type RateLimiterConfig struct {
	DomainRegRate   rate.Limit    // ドメイン登録のレート（req/sec）。10/60
	DomainRegBurst  int           // ドメイン登録のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// ドメイン登録 10 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return DomainRegConfig(10)
}

// DomainRegConfig は1分あたりの登録数からレート制限設定を生成する。
func DomainRegConfig(perMinute int) RateLimiterConfig {
	if perMinute < 1 {
		perMinute = 1
	}
	return RateLimiterConfig{
		DomainRegRate:   rate.Limit(float64(perMinute) / 60.0),
		DomainRegBurst:  perMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はファーストパーティ画面のユーザーごとのレート制限を管理する。
// セッションで識別されたユーザーのドメイン登録を制限する。
type RateLimiter struct {
	config RateLimiterConfig

	domainRegMu       sync.RWMutex
	domainRegLimiters map[int64]*userLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:            config,
		domainRegLimiters: make(map[int64]*userLimiter),
		stopCh:            make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// DomainRegistrationMiddleware はドメイン登録専用のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（SessionMiddlewareの後に配置）。
// 拒否レスポンスはonErrorで書き込む（nilならJSON）。
func (rl *RateLimiter) DomainRegistrationMiddleware(onError ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				onError.write(w, r, model.NewLoginRequiredError())
				return
			}

			limiter := rl.getOrCreateDomainRegLimiter(userID)

			if !limiter.Allow() {
				setRetryAfter(w, refillInterval(rl.config.DomainRegRate))
				onError.write(w, r, model.NewRateLimitedError())
				slog.Warn("rate limit exceeded",
					slog.Int64("user_id", userID),
					slog.String("limit_type", "domain_registration"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// DomainRegLimiterCount は現在管理されているドメイン登録リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) DomainRegLimiterCount() int {
	rl.domainRegMu.RLock()
	defer rl.domainRegMu.RUnlock()
	return len(rl.domainRegLimiters)
}

// getOrCreateDomainRegLimiter はユーザーのドメイン登録リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateDomainRegLimiter(userID int64) *rate.Limiter {
	rl.domainRegMu.RLock()
	ul, exists := rl.domainRegLimiters[userID]
	rl.domainRegMu.RUnlock()

	if exists {
		rl.domainRegMu.Lock()
		ul.lastAccess = time.Now()
		rl.domainRegMu.Unlock()
		return ul.limiter
	}

	rl.domainRegMu.Lock()
	defer rl.domainRegMu.Unlock()

	// ダブルチェック
	if ul, exists := rl.domainRegLimiters[userID]; exists {
		ul.lastAccess = time.Now()
		return ul.limiter
	}

	limiter := rate.NewLimiter(rl.config.DomainRegRate, rl.config.DomainRegBurst)
	rl.domainRegLimiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.domainRegMu.Lock()
	for userID, ul := range rl.domainRegLimiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.domainRegLimiters, userID)
		}
	}
	rl.domainRegMu.Unlock()
}

// refillInterval は1トークンが補充されるまでの時間を返す。
func refillInterval(r rate.Limit) time.Duration {
	if r <= 0 {
		return time.Minute
	}
	return time.Duration(math.Ceil(float64(time.Second) / float64(r)))
}
