package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/blog-cms/internal/config"
	"github.com/iliyamo/blog-cms/internal/database"
	"github.com/iliyamo/blog-cms/internal/handler"
	"github.com/iliyamo/blog-cms/internal/logging"
	"github.com/iliyamo/blog-cms/internal/metrics"
	"github.com/iliyamo/blog-cms/internal/middleware"
	"github.com/iliyamo/blog-cms/internal/queue"
	"github.com/iliyamo/blog-cms/internal/repository"
	"github.com/iliyamo/blog-cms/internal/router"
	"github.com/iliyamo/blog-cms/internal/service"
	"github.com/iliyamo/blog-cms/internal/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := utils.NewPasswordHasher(cfg.HashAlgorithm, cfg.BcryptCost, utils.Argon2Params{
		MemoryKiB:   cfg.Argon2MemoryKiB,
		Iterations:  cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism,
	})
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	tokens, err := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	rlCfg := config.LoadRateLimitConfig()
	var rdb *redis.Client
	if rlCfg.Enabled || cfg.RevocationEnabled {
		rdb = config.NewRedisClient()
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
		}
	}

	// typed nils must not leak into the interfaces below
	var revoker service.Revoker
	var revocations middleware.RevocationChecker
	tr, err := revocationStore(cfg, rdb)
	if err != nil {
		return err
	}
	if tr != nil {
		revoker, revocations = tr, tr
	}
	if rlCfg.Enabled && rdb == nil {
		logger.Warn("redis unavailable; rate limiting disabled")
	}

	var events service.EventPublisher = service.NoopPublisher{}
	if cfg.EventsEnabled {
		qp := service.NewQueuePublisher(cfg.RabbitURL, logger)
		defer func() { _ = qp.Close() }()
		events = qp
	}
	if cfg.AuditConsumerEnabled {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditLogDir, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	auth, err := service.NewAuthService(service.AuthDeps{
		Users:   repository.NewCredentials(store, hasher),
		Hasher:  hasher,
		Tokens:  tokens,
		Events:  events,
		Revoker: revoker,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	e := router.New(router.Options{
		Logger:           logger,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		BodyLimit:        "1M",
		TrustedProxies:   cfg.TrustedProxies,
	})
	router.RegisterRoutes(e, reg)
	router.RegisterAuth(e, handler.NewAuthHandler(auth),
		middleware.JWTAuth(tokens, revocations, m),
		middleware.NewTokenBucket(rlCfg, rdb, logger),
	)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver, "hash", cfg.HashAlgorithm)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// revocationStore returns the deny-list when revocation is enabled. Running
// without Redis would let logout return 204 while the token stays valid, so
// that case is a startup error.
func revocationStore(cfg config.Config, rdb *redis.Client) (*repository.TokenRepo, error) {
	if !cfg.RevocationEnabled {
		return nil, nil
	}
	if rdb == nil {
		return nil, errors.New("TOKEN_REVOCATION_ENABLED is set but redis is unreachable")
	}
	return repository.NewTokenRepo(rdb, cfg.RevocationPrefix), nil
}

// openStore connects the user store selected by STORE_DRIVER and returns a
// func releasing its connection.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.UserStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		if cfg.DBMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return repository.NewUserRepo(db), closer(db), nil

	case config.DriverMongo:
		client, err := database.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		repo := repository.NewMongoUserRepo(client.Database(cfg.MongoDB))
		idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := repo.EnsureIndexes(idxCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return repo, mongoCloser(client), nil

	default:
		logger.Warn("using in-memory user store; accounts are lost on restart")
		return repository.NewMemoryUserRepo(), func() {}, nil
	}
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}

func mongoCloser(c *mongo.Client) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Disconnect(ctx)
	}
}
