package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mailgate/gmailapi/internal/auth"
	"github.com/mailgate/gmailapi/internal/codec"
	"github.com/mailgate/gmailapi/internal/config"
	"github.com/mailgate/gmailapi/internal/gmail"
	"github.com/mailgate/gmailapi/internal/logger"
	"github.com/mailgate/gmailapi/internal/metrics"
	"github.com/mailgate/gmailapi/internal/oauth"
	"github.com/mailgate/gmailapi/internal/ratelimit"
	"github.com/mailgate/gmailapi/internal/refresh"
	"github.com/mailgate/gmailapi/internal/server"
	"github.com/mailgate/gmailapi/internal/storage"
	"github.com/mailgate/gmailapi/internal/user"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	cipher, err := codec.NewCipher(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Fatal("init cipher", zap.Error(err))
	}
	jwtCodec := codec.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	repo, checks, closeStore := openUserStore(ctx, cfg.Store, cipher, log)
	defer closeStore()

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	if cfg.Redis.Enabled() {
		redisClient, err := storage.NewRedisClient(ctx, cfg.Redis.URI)
		if err != nil {
			log.Fatal("connect redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()

		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
		checks = append(checks, server.ReadinessCheck{
			Component: "redis",
			Check:     func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	provider := oauth.NewProvider(cfg.Google)
	tokenManager := refresh.NewManager(repo, provider, log.Named("refresh"))
	authService := auth.NewService(repo, jwtCodec, tokenManager, cfg.Auth, log.Named("auth"))
	oauthFlow := oauth.NewFlow(provider, repo, authService, log.Named("oauth"))
	gmailService := gmail.NewService(tokenManager, log.Named("gmail"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := server.NewRouter(server.Dependencies{
		Config:          cfg,
		Logger:          log,
		ReadinessChecks: checks,
		AuthService:     authService,
		OAuthFlow:       oauthFlow,
		GmailService:    gmailService,
		Limiter:         limiter,
		Throttle:        ratelimit.NewThrottle(cfg.RateLimit.LoginInterval, cfg.RateLimit.LoginBurst),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("MailGate API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("env", cfg.Environment),
			zap.String("store", cfg.Store.Driver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// openUserStore connects the configured user store and prepares its schema.
func openUserStore(ctx context.Context, cfg config.StoreConfig, sealer user.Sealer, log *zap.Logger) (user.Repository, []server.ReadinessCheck, func()) {
	switch cfg.Driver {
	case config.StorePostgres:
		pool, err := storage.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("connect postgres", zap.Error(err))
		}
		if err := user.Migrate(ctx, pool); err != nil {
			log.Fatal("migrate postgres", zap.Error(err))
		}
		checks := []server.ReadinessCheck{{Component: "postgres", Check: pool.Ping}}
		return user.NewPostgresRepository(pool, sealer), checks, pool.Close

	case config.StoreMemory:
		log.Warn("using in-memory user store, data is lost on restart")
		return user.NewMemoryRepository(sealer), nil, func() {}

	default:
		client, err := storage.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatal("connect mongo", zap.Error(err))
		}
		dbName, err := storage.MongoDatabaseName(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("resolve mongo database", zap.Error(err))
		}
		repo := user.NewMongoRepository(client.Database(dbName), sealer)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Fatal("ensure mongo indexes", zap.Error(err))
		}
		checks := []server.ReadinessCheck{{
			Component: "mongo",
			Check:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
		}}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		return repo, checks, closeFn
	}
}
