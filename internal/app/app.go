package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/uniswipe/internal/auth"
	"github.com/hitoshi/uniswipe/internal/catalog"
	"github.com/hitoshi/uniswipe/internal/comparison"
	"github.com/hitoshi/uniswipe/internal/config"
	"github.com/hitoshi/uniswipe/internal/database"
	"github.com/hitoshi/uniswipe/internal/decision"
	"github.com/hitoshi/uniswipe/internal/favorite"
	"github.com/hitoshi/uniswipe/internal/handler"
	"github.com/hitoshi/uniswipe/internal/identity"
	"github.com/hitoshi/uniswipe/internal/imagesearch"
	"github.com/hitoshi/uniswipe/internal/logger"
	"github.com/hitoshi/uniswipe/internal/metrics"
	"github.com/hitoshi/uniswipe/internal/middleware"
	"github.com/hitoshi/uniswipe/internal/repository"
	"github.com/hitoshi/uniswipe/internal/security"
	"github.com/hitoshi/uniswipe/internal/seed"
	"github.com/hitoshi/uniswipe/internal/session"
	"github.com/hitoshi/uniswipe/internal/worker/cleanup"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの待機上限。
	shutdownTimeout = 30 * time.Second
	// dbConnectTimeout は起動時のDB疎通確認の待機上限。
	dbConnectTimeout = 10 * time.Second
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, cmd Command) (*config.Config, error) {
	// 1. .envの読み込み（LOG_LEVELをログ初期化に反映するため最初に行う）
	dotEnvErr := config.LoadDotEnv("")

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	if dotEnvErr != nil {
		return nil, fmt.Errorf("failed to load .env: %w", dotEnvErr)
	}

	// 3. 環境変数から設定を読み込む
	load := config.LoadForSeed
	if cmd.needsServerConfig() {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。シードジョブの集計結果はwに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w, cmd)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeedUniversities:
		return runSeedUniversities(ctx, w, cfg)
	case CommandSeedImages:
		return runSeedImages(ctx, w, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Connect(ctx, databaseURL, dbConnectTimeout)
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	universityRepo := repository.NewPostgresUniversityRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	swipeRepo := repository.NewPostgresSwipeRepo(db)
	evaluationRepo := repository.NewPostgresEvaluationRepo(db)

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 4. 認証状態の配信とセッション状態
	broadcaster := identity.NewBroadcaster()
	catalogLoader := catalog.NewLoader(universityRepo, collector)

	sessions := session.NewManager(userRepo, favoriteRepo, catalogLoader, sessionManagerConfig(cfg))
	sessions.Attach(broadcaster)
	defer sessions.Stop()

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, broadcaster, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	recorder := decision.NewRecorder(swipeRepo, favoriteRepo, universityRepo, sessions, collector)
	favoriteService := favorite.NewService(favoriteRepo, universityRepo)
	comparisonService := comparison.NewService(
		universityRepo, evaluationRepo, security.NewNoteSanitizer(), collector,
	)

	// 6. 期限切れセッションの定期削除
	cleanupJob := cleanup.NewSessionCleanupJob(db, slog.Default(), authService)
	go cleanupJob.Start(ctx, cleanup.DefaultInterval)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		SessionStore: sessions,

		CatalogLoader:     catalogLoader,
		SwipeRecorder:     recorder,
		FavoriteService:   favoriteService,
		ComparisonService: comparisonService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, err := database.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration applied but version check failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeedUniversities は投入元ファイルを読み込み、大学カタログを作成する。
// 投入元が読めない場合はエラーを返す。集計結果はwに出力する。
func runSeedUniversities(ctx context.Context, w io.Writer, cfg *config.Config) error {
	records, err := seed.ReadRecordsFromFile(cfg.SeedSourcePath)
	if err != nil {
		return fmt.Errorf("failed to read seed source: %w", err)
	}

	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	importer := seed.NewImporter(
		repository.NewPostgresUniversityRepo(db),
		security.NewURLGuard(),
		slog.Default(),
		collector,
		seed.ImportConfig{MaxRecords: cfg.SeedMaxRecords},
	)

	summary, runErr := importer.Run(ctx, records)
	summary.Print(w)
	logSeedMetrics(reg)

	if runErr != nil {
		return fmt.Errorf("university import aborted: %w", runErr)
	}
	return nil
}

// runSeedImages は写真URLが未設定の大学に画像検索の結果を書き戻す。
// 外部APIへのリクエストはSEED_API_INTERVAL間隔に制限する。集計結果はwに出力する。
func runSeedImages(ctx context.Context, w io.Writer, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	guard := security.NewURLGuard()
	throttle := rate.NewLimiter(rate.Every(cfg.SeedAPIInterval), 1)
	finder := imagesearch.NewClient(
		guard.NewSafeClient(cfg.ImageSearchTimeout),
		slog.Default(),
		throttle,
		collector,
		imagesearch.DefaultBreakerConfig(),
	)

	backfill := seed.NewBackfill(
		repository.NewPostgresUniversityRepo(db),
		finder,
		guard,
		slog.Default(),
		collector,
		seed.BackfillConfig{
			ScanLimit: cfg.SeedScanLimit,
			Overwrite: cfg.SeedOverwriteImages,
		},
	)

	summary, runErr := backfill.Run(ctx)
	summary.Print(w)
	logSeedMetrics(reg)

	if runErr != nil {
		return fmt.Errorf("image backfill aborted: %w", runErr)
	}
	return nil
}

func logSeedMetrics(gatherer prometheus.Gatherer) {
	if err := metrics.LogSnapshot(slog.Default(), gatherer); err != nil {
		slog.Warn("failed to gather seed metrics", slog.String("error", err.Error()))
	}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// sessionManagerConfig はセッション状態の放置期限をセッションの有効期間に合わせた設定を返す。
func sessionManagerConfig(cfg *config.Config) session.ManagerConfig {
	mc := session.DefaultManagerConfig()
	if cfg.SessionMaxAge > 0 {
		mc.IdleTTL = time.Duration(cfg.SessionMaxAge) * time.Second
	}
	return mc
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
