// Package main is the entry point of the ranking worker.
//
// The worker keeps the enthusiasm ledger in step with attendance events
// arriving over Redis pub/sub, and computes last month's ranking points for
// every active student on a cron schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/alem-hub/progress-ranking/config"
	"github.com/alem-hub/progress-ranking/internal/application/command"
	"github.com/alem-hub/progress-ranking/internal/application/query"
	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/ranking"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/scheduler"
	"github.com/alem-hub/progress-ranking/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/alem-hub/progress-ranking/internal/interface/http"
	"github.com/alem-hub/progress-ranking/pkg/circuitbreaker"
	"github.com/alem-hub/progress-ranking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Level:   cfg.Observability.LogLevel,
		Format:  logger.Format(cfg.Observability.LogFormat),
		Service: cfg.App.Name,
		Output:  os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(log)
	ctx = logger.WithContext(ctx, log)

	log.Info("starting ranking worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.Location().String(),
		"ledger_backend", cfg.Ledger.Backend,
	)

	var (
		closers   []func()
		closeOnce sync.Once
	)
	shutdown := func() {
		closeOnce.Do(func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		})
	}
	defer shutdown()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	var dbConn *postgres.Connection
	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, func() {
			log.Info("closing database connection...")
			dbConn.Close()
		})

		if cfg.Database.AutoMigrate {
			applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date", "applied", applied)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		cache, err = redis.NewCache(redisConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = cache.Close() })
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	closers = append(closers, func() { _ = eventBus.Close() })

	if err := eventBus.SubscribeAll(messaging.LogEvents(log)); err != nil {
		return err
	}
	var forwardBreaker *circuitbreaker.CircuitBreaker
	if cache != nil {
		forwardBreaker = circuitbreaker.EventForwardingBreaker(log)
		if err := eventBus.SubscribeAll(messaging.ForwardThrough(redis.NewEventPublisher(cache), forwardBreaker)); err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. LEDGER SYNC
	// ─────────────────────────────────────────────────────────────────────────
	store, closeStore, err := openLedgerStore(cfg, dbConn)
	if err != nil {
		return err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	var locker ledger.Locker = memory.NewKeyLocker()
	if cache != nil {
		locker = redis.NewKeyLocker(cache, cfg.Ledger.LockTTL)
	}

	syncHandler := command.NewSyncAttendancePointsHandler(store, locker, eventBus, command.SyncAttendancePointsHandlerConfig{
		Location:      cfg.Location(),
		RetryAttempts: cfg.Ledger.RetryAttempts,
		RetryDelay:    cfg.Ledger.RetryDelay,
	}, log)

	if cache != nil && cfg.Redis.SubscribeAttendance {
		subscriber := redis.NewAttendanceSubscriber(cache, attendanceHandler(syncHandler), cfg.Ledger.HandlerTimeout, log)
		if err := subscriber.Start(ctx); err != nil {
			return fmt.Errorf("failed to start attendance subscriber: %w", err)
		}
		closers = append(closers, func() { _ = subscriber.Stop() })
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. MONTHLY RANKING
	// ─────────────────────────────────────────────────────────────────────────
	var board ranking.Board
	if cache != nil {
		board = redis.NewRankingBoard(cache, cfg.Ranking.BoardTTL)
	}

	if cfg.Scheduler.Enabled {
		facts := postgres.NewFactsRepository(dbConn)
		rankingHandler := command.NewComputeMonthlyRankingHandler(facts, board, eventBus, log)

		jobConfig := jobs.DefaultComputeMonthlyRankingsConfig()
		jobConfig.Location = cfg.Location()
		jobConfig.Timeout = cfg.Scheduler.JobTimeout
		jobConfig.Board = board
		rankingJob := jobs.NewComputeMonthlyRankingsJob(facts, rankingHandler, log, jobConfig)

		schedule, err := scheduler.ParseCronExpression(cfg.Scheduler.RankingCron)
		if err != nil {
			return fmt.Errorf("SCHEDULER_RANKING_CRON: %w", err)
		}

		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		schedConfig.Timezone = cfg.Location()
		sched := scheduler.NewScheduler(schedConfig)

		if err := sched.Register(rankingJob, schedule); err != nil {
			return err
		}
		if board != nil {
			sched.OnJobComplete(logLeaders(ctx, query.NewGetMonthlyStandingsHandler(board), rankingJob))
		}

		if err := sched.Start(ctx); err != nil {
			return err
		}
		closers = append(closers, func() { _ = sched.Stop() })
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. OPS HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Observability.HTTPEnabled {
		health := httpapi.NewHealthChecker(cfg.App.Version, 0)
		if dbConn != nil {
			health.AddCheck("postgres", httpapi.PingCheck(dbConn))
		}
		if cache != nil {
			health.AddCheck("redis", httpapi.PingCheck(cache))
		}
		if forwardBreaker != nil {
			health.AddInfoCheck("event_forwarding", breakerCheck(forwardBreaker))
		}

		deps := httpapi.Dependencies{Health: health, Location: cfg.Location(), Logger: log}
		if board != nil {
			deps.Standings = query.NewGetMonthlyStandingsHandler(board)
		}

		httpConfig := httpapi.DefaultConfig()
		httpConfig.Addr = cfg.Observability.HTTPAddr
		server := httpapi.NewServer(httpConfig, deps)
		if err := server.Start(); err != nil {
			return err
		}
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. WAIT FOR SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("ranking worker is running")
	<-ctx.Done()

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	done := make(chan struct{})
	go func() {
		shutdown()
		close(done)
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully")
		return nil
	case <-time.After(cfg.App.ShutdownTimeout):
		return errors.New("graceful shutdown timed out")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func openLedgerStore(cfg *config.Config, dbConn *postgres.Connection) (ledger.Store, func(), error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		return postgres.NewPointRepository(dbConn), nil, nil
	case config.LedgerBackendSQLite:
		store, err := sqlite.Open(cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.LedgerBackendMemory:
		return memory.NewPointStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func redisConfig(cfg *config.Config) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	return rc
}

// attendanceHandler adapts pub/sub events to the sync command.
func attendanceHandler(h *command.SyncAttendancePointsHandler) redis.AttendanceHandler {
	return func(ctx context.Context, event redis.AttendanceEvent) error {
		_, err := h.Handle(ctx, command.SyncAttendancePointsCommand{
			StudentID:     event.StudentID,
			Date:          event.Date,
			Status:        string(event.Status),
			CorrelationID: event.CorrelationID,
		})
		return err
	}
}

// breakerCheck reports an open breaker as unhealthy.
func breakerCheck(cb *circuitbreaker.CircuitBreaker) httpapi.HealthCheckFunc {
	return func(context.Context) error {
		if state := cb.State(); state != circuitbreaker.StateClosed {
			return fmt.Errorf("circuit %s", state)
		}
		return nil
	}
}

// logLeaders logs the top of the board after each successful ranking run.
func logLeaders(
	ctx context.Context,
	standings *query.GetMonthlyStandingsHandler,
	job *jobs.ComputeMonthlyRankingsJob,
) func(scheduler.JobResult) {
	log := logger.FromContext(ctx)
	return func(result scheduler.JobResult) {
		stats := job.LastRunStats()
		if !result.Success || stats == nil {
			return
		}

		dto, err := standings.Handle(ctx, query.GetMonthlyStandingsQuery{Month: stats.Month.String(), Limit: 3})
		if err != nil {
			if !shared.IsNotFound(err) {
				log.Warn("failed to read ranking board", "month", stats.Month.String(), "error", err)
			}
			return
		}
		for _, s := range dto.Entries {
			log.Info("monthly leader",
				"month", dto.Month,
				"position", s.Position,
				"student_id", s.StudentID,
				"total", s.Total,
			)
		}
	}
}
