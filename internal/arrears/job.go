package arrears

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/logging"
	"github.com/josh-kwaku/loan-engine/internal/metrics"
	"github.com/josh-kwaku/loan-engine/internal/telemetry"
)

const (
	JobName = "arrears_aging"
	lockKey = "loan-engine:job:" + JobName
)

type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type loanStore interface {
	ListIDsByStatus(ctx context.Context, status domain.LoanStatus) ([]uuid.UUID, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error)
}

type productStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error)
}

type installmentStore interface {
	ListByLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.Installment, error)
}

type historyStore interface {
	ListLatest(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.HistoricalInstallment, error)
}

type agingStore interface {
	ReplaceForLoan(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, rec *domain.ArrearsAgingRecord) (deleted int, inserted bool, err error)
}

type BusinessDateProvider interface {
	BusinessDate(ctx context.Context, tenant string) (time.Time, error)
}

// JobReporter receives the outcome of every run.
type JobReporter interface {
	Record(ctx context.Context, run *domain.JobRun) error
}

// Locker grants an exclusive lease on key. Acquire returns
// domain.ErrJobAlreadyRunning when another holder has it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type Stores struct {
	Loans        loanStore
	Products     productStore
	Installments installmentStore
	History      historyStore
	Aging        agingStore
	Dates        BusinessDateProvider
	Runs         JobReporter
}

type LoanFailure struct {
	LoanID uuid.UUID
	Err    error
}

type Result struct {
	BusinessDate   time.Time
	LoansProcessed int
	RowsWritten    int
	RowsDeleted    int
	Failed         []LoanFailure
}

func (r *Result) AffectedRows() int { return r.RowsWritten + r.RowsDeleted }

// BatchPartialFailure is returned when at least one loan could not be aged.
// Loans that failed keep their previous aging row.
type BatchPartialFailure struct {
	Total  int
	Failed []LoanFailure
}

func (e *BatchPartialFailure) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.LoanID.String())
	}
	return fmt.Sprintf("arrears aging failed for %d of %d loans: %s", len(e.Failed), e.Total, strings.Join(ids, ", "))
}

func (e *BatchPartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

type Job struct {
	db          txBeginner
	stores      Stores
	engine      Engine
	locker      Locker
	lockTTL     time.Duration
	tenant      string
	concurrency int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	products map[uuid.UUID]*domain.LoanProduct
}

type Option func(*Job)

// WithLocker makes full runs take an exclusive lease for ttl.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(j *Job) {
		j.locker = l
		j.lockTTL = ttl
	}
}

func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

func WithTenant(tenant string) Option {
	return func(j *Job) {
		j.tenant = tenant
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(j *Job) {
		j.logger = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Job) {
		j.now = now
	}
}

func NewJob(db txBeginner, stores Stores, opts ...Option) *Job {
	j := &Job{
		db:          db,
		stores:      stores,
		tenant:      "default",
		concurrency: 1,
		lockTTL:     30 * time.Minute,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run ages every ACTIVE loan.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "arrears.Job.Run")
	defer span.End()

	started := j.now()
	logger := j.logger.With("job", JobName)
	ctx = logging.WithLogger(ctx, logger)

	if j.locker != nil {
		release, err := j.locker.Acquire(ctx, lockKey, j.lockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrJobAlreadyRunning) {
				logger.InfoContext(ctx, "aging run skipped, another run holds the lock")
				j.metrics.ObserveAgingRun("skipped", j.now().Sub(started))
				j.record(ctx, &domain.JobRun{Status: domain.JobRunStatusSkipped, StartedAt: started})
			}
			span.RecordError(err)
			return nil, fmt.Errorf("Run: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.WarnContext(ctx, "failed to release job lock", "error", err)
			}
		}()
	}

	ids, err := j.stores.Loans.ListIDsByStatus(ctx, domain.LoanStatusActive)
	if err != nil {
		err = fmt.Errorf("Run: list active loans: %w", err)
		j.finish(ctx, started, &Result{}, err)
		return nil, err
	}

	return j.process(ctx, started, ids)
}

// RunForLoans ages the given loans only. Loans that are no longer ACTIVE
// lose their aging row.
func (j *Job) RunForLoans(ctx context.Context, ids []uuid.UUID) (*Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "arrears.Job.RunForLoans")
	defer span.End()
	span.SetAttributes(attribute.Int("loans", len(ids)))

	ctx = logging.WithLogger(ctx, j.logger.With("job", JobName))
	return j.process(ctx, j.now(), ids)
}

// Refresh ages ids and discards the result. It lets the job serve as the
// loan service's aging refresher.
func (j *Job) Refresh(ctx context.Context, ids ...uuid.UUID) error {
	_, err := j.RunForLoans(ctx, ids)
	return err
}

func (j *Job) process(ctx context.Context, started time.Time, ids []uuid.UUID) (*Result, error) {
	businessDate, err := j.stores.Dates.BusinessDate(ctx, j.tenant)
	if err != nil {
		err = fmt.Errorf("process: business date: %w", err)
		j.finish(ctx, started, &Result{}, err)
		return nil, err
	}

	// products are cached for one run only
	j.mu.Lock()
	j.products = nil
	j.mu.Unlock()

	res := &Result{BusinessDate: businessDate}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(j.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			deleted, inserted, err := j.processLoan(ctx, id, businessDate)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, LoanFailure{LoanID: id, Err: err})
				return nil
			}
			res.LoansProcessed++
			res.RowsDeleted += deleted
			if inserted {
				res.RowsWritten++
			}
			return nil
		})
	}
	_ = g.Wait()

	var runErr error
	if len(res.Failed) > 0 {
		sort.Slice(res.Failed, func(a, b int) bool {
			return res.Failed[a].LoanID.String() < res.Failed[b].LoanID.String()
		})
		runErr = &BatchPartialFailure{Total: len(ids), Failed: res.Failed}
	}

	j.finish(ctx, started, res, runErr)
	return res, runErr
}

// processLoan ages one loan inside its own transaction. Any error leaves the
// loan's previous aging row in place.
func (j *Job) processLoan(ctx context.Context, id uuid.UUID, businessDate time.Time) (deleted int, inserted bool, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "arrears.processLoan")
	span.SetAttributes(attribute.String("loan_id", id.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("processLoan: begin tx: %w", err)
	}
	defer tx.Rollback()

	loan, err := j.stores.Loans.GetForUpdate(ctx, tx, id)
	if err != nil {
		return 0, false, fmt.Errorf("processLoan: %w", err)
	}

	var rec *domain.ArrearsAgingRecord
	if loan.Status.IsActive() {
		rec, err = j.compute(ctx, tx, loan, businessDate)
		if err != nil {
			return 0, false, fmt.Errorf("processLoan: %w", err)
		}
	}

	deleted, inserted, err = j.stores.Aging.ReplaceForLoan(ctx, tx, id, rec)
	if err != nil {
		return 0, false, fmt.Errorf("processLoan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("processLoan: commit: %w", err)
	}
	return deleted, inserted, nil
}

func (j *Job) compute(ctx context.Context, tx *sql.Tx, loan *domain.Loan, businessDate time.Time) (*domain.ArrearsAgingRecord, error) {
	product, err := j.product(ctx, loan.ProductID)
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}

	in := Input{Loan: loan, Product: product}
	if UsesOriginalSchedule(product, loan) {
		if in.History, err = j.stores.History.ListLatest(ctx, tx, loan.ID); err != nil {
			return nil, fmt.Errorf("compute: %w", err)
		}
	}
	if len(in.History) == 0 {
		if in.Installments, err = j.stores.Installments.ListByLoan(ctx, tx, loan.ID); err != nil {
			return nil, fmt.Errorf("compute: %w", err)
		}
	}

	rec, err := j.engine.Compute(in, businessDate)
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	return rec, nil
}

func (j *Job) product(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error) {
	j.mu.Lock()
	p, ok := j.products[id]
	j.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := j.stores.Products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	if j.products == nil {
		j.products = make(map[uuid.UUID]*domain.LoanProduct)
	}
	j.products[id] = p
	j.mu.Unlock()
	return p, nil
}

func (j *Job) finish(ctx context.Context, started time.Time, res *Result, runErr error) {
	logger := logging.FromContext(ctx)
	elapsed := j.now().Sub(started)

	run := &domain.JobRun{
		Status:         domain.JobRunStatusSucceeded,
		StartedAt:      started,
		LoansProcessed: res.LoansProcessed,
		RowsWritten:    res.RowsWritten,
		RowsDeleted:    res.RowsDeleted,
	}
	for _, f := range res.Failed {
		run.FailedLoanIDs = append(run.FailedLoanIDs, f.LoanID)
	}

	j.metrics.AddAgingLoans("ok", res.LoansProcessed)
	j.metrics.AddAgingLoans("failed", len(res.Failed))
	j.metrics.AddAgingRows("written", res.RowsWritten)
	j.metrics.AddAgingRows("deleted", res.RowsDeleted)

	if runErr != nil {
		msg := runErr.Error()
		run.Status = domain.JobRunStatusFailed
		run.ErrorMessage = &msg
		j.metrics.ObserveAgingRun("failed", elapsed)
		logger.ErrorContext(ctx, "aging run failed",
			"loans_processed", res.LoansProcessed,
			"loans_failed", len(res.Failed),
			"affected_rows", res.AffectedRows(),
			"error", runErr,
		)
	} else {
		j.metrics.ObserveAgingRun("succeeded", elapsed)
		logger.InfoContext(ctx, "aging run finished",
			"business_date", res.BusinessDate.Format(time.DateOnly),
			"loans_processed", res.LoansProcessed,
			"rows_written", res.RowsWritten,
			"rows_deleted", res.RowsDeleted,
			"duration", elapsed,
		)
	}

	j.record(ctx, run)
}

func (j *Job) record(ctx context.Context, run *domain.JobRun) {
	if j.stores.Runs == nil {
		return
	}
	run.ID = uuid.New()
	run.JobName = JobName
	run.FinishedAt = j.now()
	if err := j.stores.Runs.Record(context.WithoutCancel(ctx), run); err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "failed to record job run", "error", err)
	}
}
