package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountrepo "github.com/tsogoevz/gymdesk/backend/internal/account/repository"
	"github.com/tsogoevz/gymdesk/backend/internal/common/clock"
	"github.com/tsogoevz/gymdesk/backend/internal/common/config"
	"github.com/tsogoevz/gymdesk/backend/internal/common/crypto"
	"github.com/tsogoevz/gymdesk/backend/internal/common/db"
	commonhttp "github.com/tsogoevz/gymdesk/backend/internal/common/http"
	"github.com/tsogoevz/gymdesk/backend/internal/common/logger"
	"github.com/tsogoevz/gymdesk/backend/internal/common/resilience"
	"github.com/tsogoevz/gymdesk/backend/internal/common/server"
	"github.com/tsogoevz/gymdesk/backend/internal/session/cleanup"
	sessionhttp "github.com/tsogoevz/gymdesk/backend/internal/session/http"
	sessionrepo "github.com/tsogoevz/gymdesk/backend/internal/session/repository"
	"github.com/tsogoevz/gymdesk/backend/internal/session/service"
	"github.com/tsogoevz/gymdesk/backend/internal/session/token"
	"github.com/tsogoevz/gymdesk/backend/migrations"
)

const poolMetricsInterval = 15 * time.Second

func main() {
	_ = godotenv.Load()

	log, err := logger.New(os.Getenv("LOG_DIR"), "session", os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}

	cfg, err := config.LoadSessionConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	runMigrations(log, cfg.DatabaseURL)

	pool := db.NewPool(log, cfg.DatabaseURL)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	db.StartPoolMetrics(workerCtx, pool, poolMetricsInterval)

	realClock := clock.NewRealClock()
	accounts := accountrepo.NewPgRepository(pool)
	store := sessionrepo.NewPgRefreshTokenStore(pool)
	codec := token.NewCodec(cfg.JWTSecret, realClock, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Threshold:  int32(cfg.CircuitBreakerThreshold),
		Timeout:    cfg.CircuitBreakerTimeout,
		ResetAfter: cfg.CircuitBreakerReset,
		Name:       "session_store",
		Logger:     log,
	})

	sessions := service.NewSessionManager(service.Deps{
		Accounts: accounts,
		Store:    store,
		Codec:    codec,
		Hasher:   &crypto.BcryptHasher{},
		IDs:      crypto.NewUUIDGenerator(),
		Clock:    realClock,
		Breaker:  breaker,
		Notifier: service.NewAsyncNotifier(accounts, log),
		Logger:   log,
	})

	cleaner := cleanup.NewWorker(store, realClock, log, cfg.RecordRetention, cfg.CleanupInterval)
	cleaner.Start(workerCtx)

	handler := sessionhttp.NewHandler(sessionhttp.Config{
		Sessions:       sessions,
		Logger:         log,
		Limiter:        commonhttp.NewStrictRateLimiter(),
		RequestTimeout: cfg.RequestTimeout,
		RefreshTTL:     cfg.RefreshTokenTTL,
		SecureCookies:  os.Getenv("SESSION_INSECURE_COOKIES") != "true",
	})

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := server.NewServer(
		server.DefaultServerConfig(cfg.HTTPPort),
		commonhttp.BuildBaseHandler(log, mux),
	)

	hooks := []server.ShutdownHook{
		func(ctx context.Context) error {
			cancelWorkers()
			return nil
		},
		func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	}

	server.StartWithGracefulShutdownAndHooks(srv, log, "session", hooks)
}

func runMigrations(log *logger.Logger, databaseURL string) {
	handle, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("failed to open database for migrations: %v", err)
	}
	defer handle.Close()

	if err := migrations.Up(handle); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	log.Info("database migrations applied")
}
