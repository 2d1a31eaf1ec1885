// Package main is the entry point of the completion worker.
//
// The worker hosts the event consumers (certificate issuance on course
// completion, learner notifications), the maintenance scheduler and the
// operations HTTP endpoint, all under one supervision tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/learnhub/completion-core/config"
	"github.com/learnhub/completion-core/internal/application"
	"github.com/learnhub/completion-core/internal/application/eventhandler"
	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/messaging"
	"github.com/learnhub/completion-core/internal/infrastructure/persistence/memory"
	"github.com/learnhub/completion-core/internal/infrastructure/persistence/postgres"
	"github.com/learnhub/completion-core/internal/infrastructure/persistence/redis"
	"github.com/learnhub/completion-core/internal/infrastructure/scheduler"
	"github.com/learnhub/completion-core/internal/infrastructure/scheduler/jobs"
	"github.com/learnhub/completion-core/internal/infrastructure/service"
	"github.com/learnhub/completion-core/internal/infrastructure/supervisor"
	ophttp "github.com/learnhub/completion-core/internal/interface/http"
	"github.com/learnhub/completion-core/internal/interface/http/handlers"
	"github.com/learnhub/completion-core/pkg/logger"
	"github.com/learnhub/completion-core/pkg/retry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     cfg.Log.Level,
		Format:    logger.Format(cfg.Log.Format),
		AddCaller: cfg.Log.AddCaller,
		Service:   cfg.App.Name,
	})
	slog.SetDefault(log)
	log.Info("starting completion worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"storage", cfg.Database.Driver,
		"transport", cfg.Messaging.Transport,
	)

	readiness := handlers.NewReadiness(cfg.App.Version, 3*time.Second)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, readiness, log)
	if err != nil {
		return err
	}
	defer store.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Redis.Enabled {
		cache, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
		readiness.Add("redis", handlers.PingCheck(cache))

		store.bank = redis.NewQuestionBankCache(store.bank, cache, cfg.Redis.QuestionBankTTL, log)
		store.dedup = redis.NewProcessedEvents(cache)
		store.purger = nil
		log.Info("redis connection established", "addr", cfg.Redis.Addr)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := openBus(cfg, log)
	if err != nil {
		return err
	}
	defer bus.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	app := application.New(application.Dependencies{
		Catalog:      store.catalog,
		QuestionBank: store.bank,
		Progress:     store.progress,
		Locker:       store.locker,
		Certificates: store.certificates,
		Assessments:  store.assessments,
		Publisher:    bus.publisher,
		Logger:       log,
		MaxQuestions: cfg.Assessment.MaxQuestions,
	})
	issuer := app.Commands.IssueCertificate

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT CONSUMERS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.CompletionConsumer {
		if err := eventhandler.NewOnCourseCompletedHandler(issuer, log).Register(bus.subscriber); err != nil {
			return fmt.Errorf("failed to register completion consumer: %w", err)
		}
	}
	if cfg.Features.Notifications {
		notifier := eventhandler.NewNotificationHandler(
			store.catalog,
			store.catalog,
			service.NewLogSender(log),
			store.notifications,
			store.dedup,
			nil,
			log,
			eventhandler.NotificationConfig{DedupTTL: cfg.Redis.ProcessedTTL},
		)
		if err := notifier.Register(bus.subscriber); err != nil {
			return fmt.Errorf("failed to register notification consumers: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SUPERVISION TREE
	// ─────────────────────────────────────────────────────────────────────────
	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.App.ShutdownTimeout
	tree := supervisor.NewTree(cfg.App.Name, log, treeCfg)

	if bus.router != nil {
		tree.AddMessagingService(bus.router)
		readiness.Add("event_router", handlers.RunningCheck(bus.router.Running))
	}

	if cfg.Maintenance.Enabled {
		sched, err := newScheduler(cfg.Maintenance, store, issuer, log)
		if err != nil {
			return err
		}
		tree.AddMaintenanceService(sched)
	}

	httpCfg := ophttp.DefaultConfig()
	httpCfg.Addr = cfg.HTTP.Addr
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.RateLimit = cfg.HTTP.RateLimit
	tree.AddOpsService(ophttp.NewServer(httpCfg, readiness, log))

	// ─────────────────────────────────────────────────────────────────────────
	// 9. RUN UNTIL SIGNAL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("completion worker is running", "ops_addr", cfg.HTTP.Addr)
	err = tree.Serve(ctx)

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			log.Warn("service failed to stop within timeout", "service", svc.Name)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor stopped: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

type certificateStore interface {
	certificate.Repository
	jobs.CandidateFinder
}

type storage struct {
	catalog       catalog.Reader
	bank          catalog.QuestionBank
	progress      progress.Repository
	locker        progress.Locker
	certificates  certificateStore
	assessments   assessment.Repository
	notifications notification.Log
	dedup         notification.IdempotencyStore
	purger        jobs.ExpiredMarkPurger
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, readiness *handlers.Readiness, log *slog.Logger) (*storage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, state is lost on restart")
		s := memory.NewStore()
		return &storage{
			catalog:       s,
			bank:          s,
			progress:      s,
			locker:        s,
			certificates:  s,
			assessments:   s.Assessments(),
			notifications: s,
			dedup:         s,
			purger:        s,
			close:         func() {},
		}, nil
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database...")
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, pgCfg)
	},
		retry.WithMaxAttempts(cfg.Database.ConnectAttempts),
		retry.WithInitialDelay(250*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not reachable, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	readiness.Add("postgres", handlers.PingCheck(conn))

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	catalogRepo := postgres.NewCatalogRepository(conn)
	progressRepo := postgres.NewProgressRepository(conn)
	processed := postgres.NewProcessedEventRepository(conn)
	return &storage{
		catalog:       catalogRepo,
		bank:          catalogRepo,
		progress:      progressRepo,
		locker:        progressRepo,
		certificates:  postgres.NewCertificateRepository(conn),
		assessments:   postgres.NewAssessmentRepository(conn),
		notifications: postgres.NewNotificationRepository(conn),
		dedup:         processed,
		purger:        processed,
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.Addr = cfg.Addr
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.PoolSize = cfg.PoolSize
	rc.MinIdleConns = cfg.MinIdleConns
	rc.DialTimeout = cfg.DialTimeout
	rc.ReadTimeout = cfg.ReadTimeout
	rc.WriteTimeout = cfg.WriteTimeout

	var cache *redis.Cache
	err := retry.StartupRetrier().Do(ctx, func(ctx context.Context) error {
		var err error
		cache, err = redis.NewCache(ctx, rc)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return cache, nil
}

type eventBus struct {
	publisher  shared.EventPublisher
	subscriber shared.EventSubscriber
	router     *messaging.Router
	close      func()
}

func openBus(cfg *config.Config, log *slog.Logger) (*eventBus, error) {
	mc := cfg.Messaging

	if mc.Transport == messaging.TransportMemory {
		busCfg := messaging.DefaultInMemoryEventBusConfig()
		busCfg.Logger = log
		bus := messaging.NewInMemoryEventBus(busCfg)
		return &eventBus{
			publisher:  bus,
			subscriber: bus,
			close:      func() { _ = bus.Close() },
		}, nil
	}

	tc := messaging.DefaultTransportConfig()
	tc.Kind = mc.Transport
	tc.NATSURL = mc.NATSURL
	tc.QueueGroup = mc.QueueGroup
	tc.DurablePrefix = mc.DurablePrefix
	tc.SubscribersCount = mc.Subscribers
	tc.AckWaitTimeout = mc.AckWaitTimeout
	tc.CloseTimeout = mc.CloseTimeout

	transport, err := messaging.NewTransport(tc, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s transport: %w", mc.Transport, err)
	}

	rc := messaging.DefaultRouterConfig()
	rc.CloseTimeout = mc.CloseTimeout
	rc.RetryMaxRetries = mc.RetryMaxRetries
	rc.RetryInitialInterval = mc.RetryInitialInterval
	rc.RetryMaxInterval = mc.RetryMaxInterval
	rc.PoisonQueueTopic = mc.PoisonTopic

	router, err := messaging.NewRouter(rc, transport.Subscriber, transport.Publisher, log)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}

	publisher := messaging.NewPublisher(transport.Publisher, messaging.PublisherConfig{
		MaxAttempts:        mc.PublishAttempts,
		BreakerFailures:    mc.BreakerFailures,
		BreakerOpenTimeout: mc.BreakerOpenTimeout,
	}, log)

	return &eventBus{
		publisher:  publisher,
		subscriber: router,
		router:     router,
		close: func() {
			_ = publisher.Close()
			_ = transport.Close()
		},
	}, nil
}

func newScheduler(cfg config.MaintenanceConfig, store *storage, issuer jobs.CertificateIssuer, log *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(scheduler.DefaultConfig(), log)

	backfillAt, err := scheduler.ParseSchedule(cfg.BackfillSchedule)
	if err != nil {
		return nil, err
	}
	backfill := jobs.NewBackfillCertificatesJob(store.certificates, issuer,
		jobs.BackfillCertificatesConfig{BatchSize: cfg.BackfillBatchSize}, log)
	if err := sched.Register(backfill, backfillAt); err != nil {
		return nil, err
	}

	if store.purger != nil {
		purgeAt, err := scheduler.ParseSchedule(cfg.PurgeSchedule)
		if err != nil {
			return nil, err
		}
		if err := sched.Register(jobs.NewPurgeProcessedEventsJob(store.purger, log), purgeAt); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
