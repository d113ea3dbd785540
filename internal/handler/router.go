package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/nodebird/internal/metrics"
	"github.com/hitoshi/nodebird/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
	HealthChecker  HealthChecker
	Production     bool

	// ファーストパーティ画面
	SessionFinder middleware.SessionFinder
	CSRFConfig    middleware.CSRFConfig
	RateLimiter   *middleware.RateLimiter
	AuthService   AuthServiceInterface
	AuthConfig    AuthHandlerConfig
	DomainService DomainServiceInterface

	// 外部API
	OriginChecker    middleware.OriginChecker
	TokenVerifier    middleware.TokenVerifier
	TokenIssuer      TokenIssuerInterface
	TokenTTLV1       time.Duration
	TokenTTLV2       time.Duration
	RateLimitStore   middleware.WindowStore
	APIRateLimit     int64
	APIRateWindow    time.Duration
	PostService      PostServiceInterface
	GuestbookService GuestbookServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアスタックの実行順序:
//
//	Logging → Recovery → Metrics → SecurityHeaders
//
// /v2 のルートは DomainCORS → [RateLimit(/token)] → TokenAuth → [RateLimit] の順に通過する。
// /v1 はCORSとレート制限を持たず、非推奨ヘッダーを付与する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	common := []middleware.Middleware{
		middleware.NewLoggingMiddleware(logger),
		middleware.NewRecoveryMiddleware(),
	}
	if deps.Metrics != nil {
		common = append(common, middleware.NewMetricsMiddleware(deps.Metrics))
	}
	common = append(common, middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.Chain(common...))

	renderer := NewPageRenderer(deps.Production)
	pageHandler := NewPageHandler(deps.AuthService, deps.DomainService, renderer)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, renderer)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// サブルーターより先に設定し、/v1 と /v2 にも引き継がせる
	r.NotFound(pageHandler.NotFound)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- ファーストパーティ画面 ---
	// ミドルウェアスタック: OptionalSession → CSRF
	// 拒否レスポンスはJSONではなくエラーページで返す
	r.Group(func(r chi.Router) {
		csrfConfig := deps.CSRFConfig
		csrfConfig.OnError = renderer.writeAPIError

		r.Use(middleware.NewOptionalSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		r.With(middleware.NewNoStoreMiddleware()).Get("/", pageHandler.Index)
		r.With(
			middleware.NewSessionMiddleware(deps.SessionFinder, renderer.writeAPIError),
			deps.RateLimiter.DomainRegistrationMiddleware(renderer.writeAPIError),
		).Post("/domain", pageHandler.RegisterDomain)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/join", authHandler.Join)
			r.Post("/login", authHandler.Login)
			r.Get("/logout", authHandler.Logout)
		})
	})

	tokenAuth := middleware.NewTokenAuthMiddleware(deps.TokenVerifier, deps.Metrics)

	// --- 外部API v1（非推奨） ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.NewDeprecatedMiddleware("/v2"), middleware.NewNoStoreMiddleware())

		api := NewAPIHandler(deps.TokenIssuer, deps.PostService, deps.Metrics, APIHandlerConfig{
			Version:  "v1",
			TokenTTL: deps.TokenTTLV1,
		})

		r.Post("/token", api.CreateToken)
		r.With(tokenAuth).Get("/test", api.Test)
		r.With(tokenAuth).Get("/posts/my", api.MyPosts)
		r.With(tokenAuth).Get("/posts/hashtag/{title}", api.PostsByHashtag)
	})

	// --- 外部API v2 ---
	r.Route("/v2", func(r chi.Router) {
		r.Use(middleware.NewDomainCORSMiddleware(deps.OriginChecker, deps.Metrics), middleware.NewNoStoreMiddleware())

		limit := func(route string) middleware.Middleware {
			return middleware.NewFixedWindowMiddleware(deps.RateLimitStore, middleware.FixedWindowConfig{
				Limit:  deps.APIRateLimit,
				Window: deps.APIRateWindow,
				Route:  route,
			}, deps.Metrics)
		}

		api := NewAPIHandler(deps.TokenIssuer, deps.PostService, deps.Metrics, APIHandlerConfig{
			Version:  "v2",
			TokenTTL: deps.TokenTTLV2,
		})
		guestbook := NewGuestbookHandler(deps.GuestbookService)

		r.With(limit("v2_token")).Post("/token", api.CreateToken)
		r.With(tokenAuth, limit("v2_test")).Get("/test", api.Test)
		r.With(tokenAuth).Get("/posts/my", api.MyPosts)
		r.With(tokenAuth, limit("v2_posts_hashtag")).Get("/posts/hashtag/{title}", api.PostsByHashtag)
		r.With(tokenAuth, limit("v2_guestbook_my")).Get("/guestbook/my", guestbook.ListAll)

		r.Group(func(r chi.Router) {
			r.Use(tokenAuth)
			r.Get("/guestbooks/delete/{id}", guestbook.Delete)
			r.Get("/guestbooks/update/{id}", guestbook.Get)
			r.Post("/guestbooks/create", guestbook.Create)
			r.Post("/guestbooks/update", guestbook.Update)
		})
	})

	return r
}
