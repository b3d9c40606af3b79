package app

import (
	"context"
	"database/sql"
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
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/reapply/internal/application"
	"github.com/hitoshi/reapply/internal/auth"
	"github.com/hitoshi/reapply/internal/config"
	"github.com/hitoshi/reapply/internal/credential"
	"github.com/hitoshi/reapply/internal/database"
	"github.com/hitoshi/reapply/internal/followup"
	"github.com/hitoshi/reapply/internal/gmail"
	"github.com/hitoshi/reapply/internal/handler"
	"github.com/hitoshi/reapply/internal/logger"
	"github.com/hitoshi/reapply/internal/metrics"
	"github.com/hitoshi/reapply/internal/middleware"
	"github.com/hitoshi/reapply/internal/notify"
	"github.com/hitoshi/reapply/internal/pipeline"
	"github.com/hitoshi/reapply/internal/repository"
	"github.com/hitoshi/reapply/internal/resume"
	"github.com/hitoshi/reapply/internal/security"
	"github.com/hitoshi/reapply/internal/user"
	"github.com/hitoshi/reapply/internal/worker/cleanup"
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
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, 10*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openRedis はパイプライン状態を保持するRedisへ接続する。
func openRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// newMetrics はプロセス単位のレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// startMetricsServer は/metricsを別ポートで公開する。
func startMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           metrics.SetupMetricsRoute(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	return server
}

// runServe はAPIサーバーモードで起動する。
// DB、Redisに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. 外部接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established")

	redisClient, err := openRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	slog.Info("redis connection established")

	var objectStore resume.ObjectStore
	if cfg.StorageEnabled() {
		minioStore, err := resume.NewMinioStore(ctx, resume.MinioConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to resume storage: %w", err)
		}
		objectStore = minioStore
	} else {
		slog.Warn("resume storage is not configured, resume endpoints are disabled")
	}

	var publisher notify.FollowUpPublisher = notify.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPFollowUpQueue)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		slog.Warn("AMQP_URL is not set, follow-ups are stored without hand-off")
	}

	// 2. メトリクス
	reg, collector := newMetrics()
	metricsServer := startMetricsServer(cfg.MetricsPort, reg)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	appRepo := repository.NewPostgresApplicationRepo(db)
	followUpRepo := repository.NewPostgresFollowUpRepo(db)
	pipelineStore := pipeline.NewRedisStateStore(redisClient, cfg.PipelineTTL, cfg.SendLockTTL)

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	})
	authService := auth.NewService(
		userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	credentialManager := credential.NewManager(
		oauthProvider,
		auth.NewStateCodec(cfg.SessionSecret, auth.DefaultStateTTL),
		authService,
		profileRepo,
		credential.Config{CredentialTTL: cfg.CredentialTTL},
	)

	mailer := gmail.NewClient(
		&http.Client{Timeout: cfg.GmailTimeout},
		slog.Default(),
		cfg.GmailSendURL,
	)
	pipelineService := pipeline.NewService(
		pipelineStore, credentialManager, mailer, appRepo, userRepo,
		security.NewDescriptionSanitizer(), collector,
	)

	applicationService := application.NewService(appRepo)
	followUpService := followup.NewService(appRepo, followUpRepo, publisher, collector)
	resumeService := resume.NewService(objectStore, profileRepo, cfg.ResumeURLExpiry)
	userService := user.NewService(userRepo, sessionRepo, pipelineStore, resumeService)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter: middleware.NewRateLimiter(
			middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSend),
		),

		AuthService:    authService,
		CredentialFlow: credentialManager,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:              cfg.BaseURL,
			CookieDomain:         cfg.CookieDomain,
			CookieSecure:         cfg.CookieSecure,
			SessionMaxAge:        cfg.SessionMaxAge,
			FailureRedirectDelay: cfg.AuthFailureRedirectDelay,
		},

		PipelineService:    pipelineService,
		ApplicationService: handler.NewApplicationServiceAdapter(applicationService),
		FollowUpService:    handler.NewFollowUpServiceAdapter(followUpService),
		MailService:        credentialManager,
		ResumeService:      resumeService,
		UserService:        handler.NewUserServiceAdapter(userService),
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database connection established (worker)")

	reg, collector := newMetrics()
	metricsServer := startMetricsServer(cfg.MetricsPort, reg)

	sessionRepo := repository.NewPostgresSessionRepo(db)
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runCleanup は期限切れセッションの削除を1回実行する。cronなど外部スケジューラからの起動用。
func runCleanup(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	_, collector := newMetrics()
	job := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), collector, slog.Default())
	if err := job.Run(context.Background()); err != nil {
		return fmt.Errorf("session cleanup failed: %w", err)
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
