package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/loan-engine/internal/arrears"
	"github.com/josh-kwaku/loan-engine/internal/businessevent"
	"github.com/josh-kwaku/loan-engine/internal/config"
	"github.com/josh-kwaku/loan-engine/internal/handler"
	"github.com/josh-kwaku/loan-engine/internal/joblock"
	"github.com/josh-kwaku/loan-engine/internal/logging"
	"github.com/josh-kwaku/loan-engine/internal/metrics"
	"github.com/josh-kwaku/loan-engine/internal/middleware"
	"github.com/josh-kwaku/loan-engine/internal/repository"
	"github.com/josh-kwaku/loan-engine/internal/telemetry"
)

const (
	serviceName = "loan-engine-worker"
	version     = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	pool, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		ConnectAttempts:  30,
		ConnectBackoff:   time.Second,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	db := repository.NewDB(pool)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := []handler.Check{{Name: "database", Ping: db.Ping}}

	jobOpts := []arrears.Option{
		arrears.WithConcurrency(cfg.AgingConcurrency),
		arrears.WithTenant(cfg.TenantID),
		arrears.WithMetrics(m),
		arrears.WithLogger(logger.With("job", arrears.JobName)),
	}

	redisClient, err := joblock.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		jobOpts = append(jobOpts, arrears.WithLocker(joblock.New(redisClient), cfg.JobLockTTL))
		checks = append(checks, handler.Check{Name: "redis", Ping: redisPing(redisClient)})
	} else {
		logger.Warn("REDIS_URL not set, aging runs are not guarded against other workers")
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()
	if kp, ok := publisher.(*businessevent.KafkaPublisher); ok {
		checks = append(checks, handler.Check{Name: "kafka", Ping: kp.Ping})
	}

	job := arrears.NewJob(db, arrears.Stores{
		Loans:        repository.NewLoanRepository(pool),
		Products:     repository.NewProductRepository(pool),
		Installments: repository.NewInstallmentRepository(pool),
		History:      repository.NewScheduleHistoryRepository(pool),
		Aging:        repository.NewArrearsRepository(pool),
		Dates:        repository.NewBusinessDateRepository(pool, nil),
		Runs:         repository.NewJobRunRepository(pool),
	}, jobOpts...)

	relay := businessevent.NewRelay(db, repository.NewBusinessEventRepository(pool), publisher,
		businessevent.WithInterval(cfg.RelayInterval),
		businessevent.WithBatchSize(cfg.RelayBatchSize),
		businessevent.WithMaxAttempts(cfg.RelayMaxAttempts),
		businessevent.WithLogger(logger.With("component", "relay")),
		businessevent.WithMetrics(m),
	)

	router := handler.NewRouter(handler.NewHealthHandler(version, checks...), handler.NewJobHandler(job), reg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.Tracing(middleware.Logging(logger)(middleware.Recovery(router))),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.JobLockTTL,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		arrears.NewScheduler(job, logger, cfg.AgingInterval).Start(gctx)
		return nil
	})
	g.Go(func() error {
		relay.Start(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("ops server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("worker stopped")
	return nil
}

// newPublisher returns a Kafka publisher when brokers are configured and a
// logging publisher otherwise.
func newPublisher(cfg *config.Config, logger *slog.Logger) (businessevent.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, business events are only logged")
		return businessevent.NewLogPublisher(logger), func() {}, nil
	}

	kp, err := businessevent.NewKafkaPublisher(cfg.KafkaBrokers, cfg.BusinessEventsTopic)
	if err != nil {
		return nil, nil, fmt.Errorf("connect kafka: %w", err)
	}
	return kp, kp.Close, nil
}

func redisPing(client *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
