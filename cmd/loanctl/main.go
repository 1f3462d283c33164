package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/josh-kwaku/loan-engine/internal/arrears"
	"github.com/josh-kwaku/loan-engine/internal/businessevent"
	"github.com/josh-kwaku/loan-engine/internal/config"
	"github.com/josh-kwaku/loan-engine/internal/lifecycle"
	"github.com/josh-kwaku/loan-engine/internal/logging"
	"github.com/josh-kwaku/loan-engine/internal/money"
	"github.com/josh-kwaku/loan-engine/internal/repository"
	"github.com/josh-kwaku/loan-engine/internal/service/loan"
	"github.com/josh-kwaku/loan-engine/internal/tools/loanctl"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cmdCfg, err := loanctl.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, "loanctl", cfg.LogLevel, "development")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cmdCfg.Timeout)
	defer cancel()

	mode, err := money.ParseRoundingMode(cfg.RoundingMode)
	if err != nil {
		return err
	}
	policy, err := money.NewPolicy(mode)
	if err != nil {
		return err
	}

	pool, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     4,
		MaxIdleConns:     2,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	db := repository.NewDB(pool)

	loans := repository.NewLoanRepository(pool)
	products := repository.NewProductRepository(pool)
	installments := repository.NewInstallmentRepository(pool)
	history := repository.NewScheduleHistoryRepository(pool)

	job := arrears.NewJob(db, arrears.Stores{
		Loans:        loans,
		Products:     products,
		Installments: installments,
		History:      history,
		Aging:        repository.NewArrearsRepository(pool),
		Dates:        repository.NewBusinessDateRepository(pool, nil),
		Runs:         repository.NewJobRunRepository(pool),
	}, arrears.WithTenant(cfg.TenantID), arrears.WithLogger(logger))

	svc := loan.NewService(db,
		loan.Repositories{
			Loans:        loans,
			Installments: installments,
			History:      history,
			Products:     products,
			Currencies:   repository.NewCurrencyRepository(pool),
		},
		lifecycle.NewStateMachine(nil, nil),
		businessevent.NewOutboxNotifier(repository.NewBusinessEventRepository(pool)),
		policy,
		loan.WithAgingRefresher(job),
		loan.WithLogger(logger),
	)

	return loanctl.Run(ctx, cmdCfg, svc, job, os.Stdout)
}
