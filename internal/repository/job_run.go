package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const jobRunColumns = `id, job_name, status, started_at, finished_at, loans_processed,
	rows_written, rows_deleted, failed_loan_ids, error_message`

type JobRunRepository struct {
	db *sql.DB
}

func NewJobRunRepository(db *sql.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

func (r *JobRunRepository) Record(ctx context.Context, run *domain.JobRun) error {
	failed := make([]string, 0, len(run.FailedLoanIDs))
	for _, id := range run.FailedLoanIDs {
		failed = append(failed, id.String())
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_runs (`+jobRunColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::uuid[], $10)`,
		run.ID, run.JobName, run.Status, run.StartedAt, run.FinishedAt, run.LoansProcessed,
		run.RowsWritten, run.RowsDeleted, pq.Array(failed), run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("Record: %w", err)
	}
	return nil
}

func (r *JobRunRepository) Latest(ctx context.Context, jobName string) (*domain.JobRun, error) {
	var run domain.JobRun
	var failed pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT `+jobRunColumns+` FROM job_runs
		WHERE job_name = $1 ORDER BY started_at DESC, finished_at DESC LIMIT 1`, jobName,
	).Scan(
		&run.ID, &run.JobName, &run.Status, &run.StartedAt, &run.FinishedAt, &run.LoansProcessed,
		&run.RowsWritten, &run.RowsDeleted, &failed, &run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Latest: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Latest: %w", err)
	}

	for _, s := range failed {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("Latest: failed loan id: %w", err)
		}
		run.FailedLoanIDs = append(run.FailedLoanIDs, id)
	}
	return &run, nil
}
