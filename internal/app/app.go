package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/panchsetu/internal/auth"
	"github.com/hitoshi/panchsetu/internal/config"
	"github.com/hitoshi/panchsetu/internal/database"
	"github.com/hitoshi/panchsetu/internal/handler"
	"github.com/hitoshi/panchsetu/internal/logger"
	"github.com/hitoshi/panchsetu/internal/mailer"
	"github.com/hitoshi/panchsetu/internal/metrics"
	"github.com/hitoshi/panchsetu/internal/middleware"
	"github.com/hitoshi/panchsetu/internal/model"
	"github.com/hitoshi/panchsetu/internal/repository"
	"github.com/hitoshi/panchsetu/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
			port = "4000"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("environment", cfg.Environment),
		slog.String("database_driver", cfg.DatabaseDriver),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// storeBackend はアカウントストアとその疎通確認・後始末をまとめたもの。
type storeBackend struct {
	stores repository.Stores
	health handler.HealthChecker
	close  func() error
}

// openStores は設定されたドライバでアカウントストアを開く。
// MongoDBの場合はemailのユニークインデックスもここで用意する。
func openStores(ctx context.Context, cfg *config.Config) (*storeBackend, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		patients, err := repository.NewPostgresUserRepo(db, model.RolePatient)
		if err != nil {
			db.Close()
			return nil, err
		}
		practitioners, err := repository.NewPostgresUserRepo(db, model.RolePractitioner)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &storeBackend{
			stores: repository.NewStores(patients, practitioners),
			health: db,
			close:  db.Close,
		}, nil

	case config.DriverMongoDB:
		m, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		patients, err := repository.NewMongoUserRepo(m.Database, model.RolePatient)
		if err != nil {
			m.Close()
			return nil, err
		}
		practitioners, err := repository.NewMongoUserRepo(m.Database, model.RolePractitioner)
		if err != nil {
			m.Close()
			return nil, err
		}
		stores := repository.NewStores(patients, practitioners)
		if err := stores.EnsureIndexes(ctx); err != nil {
			m.Close()
			return nil, err
		}
		return &storeBackend{stores: stores, health: m, close: m.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.DatabaseDriver)
	}
}

// newDenylist はREDIS_URLが設定されていればRedisの失効リストを、なければ無効な実装を返す。
// 返される関数は接続の後始末に使う。
func newDenylist(ctx context.Context, redisURL string) (auth.Denylist, func() error, error) {
	if redisURL == "" {
		slog.Warn("REDIS_URL is not set; logged-out tokens stay valid until they expire")
		return auth.NopDenylist{}, func() error { return nil }, nil
	}

	rc, err := auth.NewRedisClient(redisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return auth.NewRedisDenylist(rc), rc.Close, nil
}

// buildRouter は設定とストアから全依存関係をワイヤリングしたルーターを構築する。
// 返されるRateLimiterはシャットダウン時にStopすること。
func buildRouter(cfg *config.Config, backend *storeBackend, denylist auth.Denylist) (http.Handler, *middleware.RateLimiter, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 2. メール送信
	sender, err := mailer.New(mailer.Config{
		Provider:       cfg.MailProvider,
		From:           cfg.SenderEmail,
		MailgunDomain:  cfg.MailgunDomain,
		MailgunAPIKey:  cfg.MailgunAPIKey,
		SendGridAPIKey: cfg.SendGridAPIKey,
	})
	if err != nil {
		return nil, nil, err
	}

	// 3. 認証サービス
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.SessionTTL(),
	})
	if err != nil {
		return nil, nil, err
	}
	authService := auth.NewService(
		backend.stores,
		auth.NewBcryptHasher(cfg.BcryptCost),
		tokens,
		auth.ServiceConfig{
			Denylist: denylist,
			Mailer:   sender,
			Metrics:  collector,
		},
	)

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimiterConfig(cfg.RateLimitAuth))

	deps := &handler.RouterDeps{
		Authenticator:      authService,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		Logger:             slog.Default(),
		Metrics:            collector,

		HealthChecker:  backend.health,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		Cookies: handler.CookieConfig{
			Production: cfg.IsProduction(),
			MaxAge:     cfg.SessionMaxAge,
		},

		UserService: user.NewService(backend.stores),
	}

	return handler.NewRouter(deps), rateLimiter, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. ストア接続
	backend, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open account stores: %w", err)
	}
	defer backend.close()

	slog.Info("database connection established", slog.String("driver", cfg.DatabaseDriver))

	// 2. ログアウト済みトークンの失効リスト
	denylist, closeDenylist, err := newDenylist(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer closeDenylist()

	// 3. ルーターの構築
	router, rateLimiter, err := buildRouter(cfg, backend, denylist)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	defer rateLimiter.Stop()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLのスキーママイグレーションを実行する。
// MongoDBはスキーマを持たないため、インデックスの作成はserve起動時に行う。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseDriver != config.DriverPostgres {
		return fmt.Errorf("migrate requires DATABASE_DRIVER=%s, got %q", config.DriverPostgres, cfg.DatabaseDriver)
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(healthURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	u.RawQuery = ""
	return u.String()
}
