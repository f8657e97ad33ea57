package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	redis "github.com/redis/go-redis/v9"

	"github.com/ScotianOG/the-soless-system-sub002/internal/config"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/contest"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/engagement"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/streak"
	"github.com/ScotianOG/the-soless-system-sub002/internal/domain/user"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/lock"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/notifier"
	cacherepo "github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/cache"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/memory"
	"github.com/ScotianOG/the-soless-system-sub002/internal/infrastructure/repository/postgres"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/cache"
	idgen "github.com/ScotianOG/the-soless-system-sub002/internal/platform/id"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/resilience"
	"github.com/ScotianOG/the-soless-system-sub002/internal/usecase"
)

// Application wires repositories, platform clients, and services. With
// no DB_URL configured it falls back to in-memory storage, which keeps
// local development free of external dependencies.
type Application struct {
	Config   config.Config
	Logger   *logging.Logger
	Trackers map[engagement.Platform]*usecase.EngagementTracker
	Streaks  *usecase.StreakService
	Rewards  *usecase.RewardManager

	db            *sqlx.DB
	redis         *redis.Client
	notifierStack *notifier.Client
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.Default()
	}

	app := &Application{Config: cfg, Logger: logger}

	var (
		users       user.Repository
		engagements engagement.Repository
		streaks     streak.Repository
		contests    contest.Repository
	)

	if cfg.DBURL != "" {
		db, err := sqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database %s: %w", dbNameFromURL(cfg.DBURL), err)
		}
		app.db = db

		users = postgres.NewUserRepository(db)
		engagements = postgres.NewEngagementRepository(db)
		streaks = postgres.NewStreakRepository(db)
		contests = postgres.NewContestRepository(db)
	} else {
		logger.Warn("DB_URL is empty, using in-memory storage")
		store := memory.NewStore()
		users = memory.NewUserRepository(store)
		engagements = memory.NewEngagementRepository(store)
		streaks = memory.NewStreakRepository(store)
		contests = memory.NewContestRepository(store)
	}

	var locker usecase.LifecycleLocker
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		app.redis = client
		locker = lock.NewRedisLocker(client)
	} else {
		logger.Warn("REDIS_ADDR is empty, using in-process lifecycle locks")
		locker = lock.NewMemoryLocker()
	}

	var rewardNotifier usecase.RewardNotifier
	if cfg.NotifierEnabled {
		client, err := notifier.NewClient(notifier.Config{
			BaseURL: cfg.NotifierBaseURL,
			Token:   cfg.NotifierToken,
			Timeout: cfg.NotifierTimeout,
			Workers: cfg.NotifierWorkers,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.NotifierCircuitEnabled,
				FailureThreshold: cfg.NotifierCircuitFailureCount,
				OpenTimeout:      cfg.NotifierCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.NotifierCircuitHalfOpenMaxReq,
			},
		}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("build reward notifier: %w", err)
		}
		app.notifierStack = client
		rewardNotifier = client
	}

	var store *cache.Store
	if cfg.CacheEnabled {
		store = cache.NewStore(cfg.CacheTTL)
		contests = cacherepo.NewContestRepository(contests, store)
	}

	generator := idgen.NewRandomGenerator()

	streakSvc := usecase.NewStreakService(streaks, engagements, cfg.Engagement.Streak, logger)
	trackers, err := usecase.NewEngagementTrackers(cfg.Engagement, users, engagements, contests, streakSvc, generator, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("build engagement trackers: %w", err)
	}

	rewards := usecase.NewRewardManager(
		contests,
		locker,
		rewardNotifier,
		generator,
		cfg.Engagement.Contest,
		store,
		logger,
		usecase.RewardManagerOptions{
			StartLockTTL: cfg.LockStartTTL,
			EndLockTTL:   cfg.LockEndTTL,
		},
	)

	app.Trackers = trackers
	app.Streaks = streakSvc
	app.Rewards = rewards
	return app, nil
}

// Close releases the external clients the application owns. Safe to
// call on a partially constructed application.
func (a *Application) Close() {
	if a.notifierStack != nil {
		a.notifierStack.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
