package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/nodebird/internal/auth"
	"github.com/hitoshi/nodebird/internal/config"
	"github.com/hitoshi/nodebird/internal/database"
	"github.com/hitoshi/nodebird/internal/guestbook"
	"github.com/hitoshi/nodebird/internal/handler"
	"github.com/hitoshi/nodebird/internal/logger"
	"github.com/hitoshi/nodebird/internal/metrics"
	"github.com/hitoshi/nodebird/internal/middleware"
	"github.com/hitoshi/nodebird/internal/registry"
	"github.com/hitoshi/nodebird/internal/repository"
	"github.com/hitoshi/nodebird/internal/security"
	"github.com/hitoshi/nodebird/internal/token"
	"github.com/hitoshi/nodebird/internal/worker/cleanup"
)

const (
	// defaultPort は SERVER_PORT 未設定時の待受ポート。
	defaultPort = "8002"

	// redisKeyPrefix はレート制限カウンターのRedisキー接頭辞。
	redisKeyPrefix = "nodebird:ratelimit:"

	// redisTimeout はレート制限1回あたりのRedis呼び出しのタイムアウト。
	redisTimeout = 500 * time.Millisecond

	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envがあれば環境変数に取り込む
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = defaultPort
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("env", cfg.Env),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. レート制限カウンターの初期化
	store, closeStore, err := newWindowStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. 依存関係のワイヤリング
	deps := wire(cfg, db, store, prometheus.NewRegistry())
	defer deps.rateLimiter.Stop()

	// 4. 期限切れセッションの定期削除
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := cleanup.NewSessionSweeper(repository.NewPostgresSessionRepo(db), slog.Default())
	go sweeper.Start(sweepCtx, cleanup.DefaultInterval)

	// 5. サーバーの構築
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      deps.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// dependencies はwireの組み立て結果。
// rateLimiterはシャットダウン時に停止する必要がある。
type dependencies struct {
	router      http.Handler
	rateLimiter *middleware.RateLimiter
}

// wire はリポジトリからルーターまでの全依存関係をワイヤリングする。
func wire(cfg *config.Config, db *sql.DB, store middleware.WindowStore, reg *prometheus.Registry) *dependencies {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	domainRepo := repository.NewPostgresDomainRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	guestbookRepo := repository.NewPostgresGuestbookRepo(db)

	// 2. ドメインサービスの初期化
	signer := token.NewSigner(cfg.JWTSecret, cfg.TokenIssuer)
	issuer := token.NewIssuer(domainRepo, signer)
	registryService := registry.NewService(domainRepo)
	guestbookService := guestbook.NewService(guestbookRepo, security.NewMarkupGuard())
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})

	// 3. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.DomainRegConfig(cfg.DomainRegRate))

	deps := &handler.RouterDeps{
		Logger:         slog.Default(),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
		HealthChecker:  db,
		Production:     cfg.IsProduction(),

		SessionFinder: sessionRepo,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			Secret:       []byte(cfg.SessionSecret),
		},
		RateLimiter: rateLimiter,
		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		DomainService: registryService,

		OriginChecker:    registryService,
		TokenVerifier:    signer,
		TokenIssuer:      issuer,
		TokenTTLV1:       cfg.TokenTTLV1,
		TokenTTLV2:       cfg.TokenTTLV2,
		RateLimitStore:   store,
		APIRateLimit:     cfg.APIRateLimit,
		APIRateWindow:    cfg.APIRateWindow,
		PostService:      handler.NewPostServiceAdapter(postRepo),
		GuestbookService: guestbookService,
	}

	return &dependencies{
		router:      handler.NewRouter(deps),
		rateLimiter: rateLimiter,
	}
}

// newWindowStore はレート制限カウンターのストアを生成する。
// REDIS_URLが設定されていればRedis、なければプロセス内メモリを使用する。
func newWindowStore(ctx context.Context, cfg *config.Config) (middleware.WindowStore, func(), error) {
	if cfg.RedisURL == "" {
		store := middleware.NewMemoryStore(cfg.APIRateWindow)
		slog.Info("rate limit counters are kept in memory")
		return store, store.Stop, nil
	}

	client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("rate limit counters are kept in redis",
		slog.String("redis_url", maskURL(cfg.RedisURL)),
	)
	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	return middleware.NewRedisStore(client, redisKeyPrefix, redisTimeout), closeFn, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskURL は接続URLのパスワードをマスクする。
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
