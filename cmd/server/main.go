// Package main is the entry point of the Robolab Progress Hub API server.
//
// The server exposes the classroom REST API: checklist definitions, per-item
// progress, the XP ledger with levels and mastery tiers, and the PIN-gated
// admin surface. Architecture follows Clean Architecture / DDD:
//   - Domain: business types and rules without external dependencies
//   - Application: CQRS command and query handlers
//   - Infrastructure: PostgreSQL, Redis, YAML checklist loader
//   - Interface: REST API handlers
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robolab-hub/robolab-progress-hub/config"
	"github.com/robolab-hub/robolab-progress-hub/internal/application/command"
	"github.com/robolab-hub/robolab-progress-hub/internal/application/query"
	"github.com/robolab-hub/robolab-progress-hub/internal/domain/xp"
	checklistloader "github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/checklist"
	"github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/robolab-hub/robolab-progress-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/robolab-hub/robolab-progress-hub/internal/interface/http"
	"github.com/robolab-hub/robolab-progress-hub/pkg/logger"
	"github.com/robolab-hub/robolab-progress-hub/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	logOpts := logger.DefaultOptions()
	logOpts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	log := logger.New(logOpts)
	log.Info("starting Robolab Progress Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. CHECKLIST DEFINITIONS
	// ─────────────────────────────────────────────────────────────────────────
	loader := checklistloader.NewLoader(cfg.Checklist.Dir)
	if err := loader.Load(); err != nil {
		return fmt.Errorf("failed to load checklists: %w", err)
	}
	robots, err := loader.Robots(ctx)
	if err != nil {
		return err
	}
	log.Info("checklists loaded",
		logger.String("dir", cfg.Checklist.Dir),
		logger.Int("robots", len(robots)),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. DATABASE (with startup retry)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}, retry.WithMaxAttempts(5))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache *redis.Cache
		statsCache *redis.StatsCache
	)
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns

		redisCache, err = retry.DoWithData(ctx, func(ctx context.Context) (*redis.Cache, error) {
			return redis.NewCache(redisCfg)
		}, retry.WithMaxAttempts(3))
		if err != nil {
			// Redis only holds derived views; running without it is fine.
			log.Warn("failed to connect to Redis, stats caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			statsCache = redis.NewStatsCache(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	store := postgres.NewStore(dbConn)
	lockRepo := store.LevelLocks()
	rules := xp.NewStaticRulesProvider(xp.DefaultRules())

	// command.StatsCacheInvalidator and query.StatsCache are nil-safe in the
	// handlers; pass the typed nil only when Redis is up.
	var invalidator command.StatsCacheInvalidator
	var readCache query.StatsCache
	if statsCache != nil {
		invalidator = statsCache
		readCache = statsCache
	}

	engine := command.NewApplyProgressDeltaHandler(store, rules, loader, invalidator, log)

	deps := httpserver.Dependencies{
		GetChecklistHandler: query.NewGetChecklistHandler(loader, lockRepo),
		ListRobotsHandler:   query.NewListRobotsHandler(loader),
		GetProgressHandler:  query.NewGetProgressHandler(store.Repos().Progress()),
		GetStatsHandler:     query.NewGetStatsHandler(store.Repos().Stats(), rules, readCache, log),
		ListStudentsHandler: query.NewListStudentsHandler(store.Repos().Students()),

		SaveProgressHandler:  command.NewSaveProgressHandler(store, engine, log),
		ResetProgressHandler: command.NewResetProgressHandler(store, rules, loader, invalidator, log),
		ResetXPHandler:       command.NewResetXPHandler(store, rules, invalidator, log),
		AwardXPHandler:       command.NewAwardXPHandler(store, rules, invalidator, log),
		StudentRosterHandler: command.NewStudentRosterHandler(store, invalidator, log),
		SetLevelLockHandler:  command.NewSetLevelLockHandler(lockRepo, loader, log),

		LockRepository: lockRepo,
		Postgres:       dbConn,
		Logger:         log,
	}
	if redisCache != nil {
		deps.Redis = redisCache
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.AdminPINHash = cfg.Admin.PINHash

	server := httpserver.NewServer(httpCfg, deps)

	errCh := server.StartAsync()

	log.Info("Robolab Progress Hub is running",
		logger.String("address", server.Address()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("service error", logger.Err(err))
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}
