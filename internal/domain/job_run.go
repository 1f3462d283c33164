package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobRunStatus string

const (
	JobRunStatusSucceeded JobRunStatus = "succeeded"
	JobRunStatusFailed    JobRunStatus = "failed"
	JobRunStatusSkipped   JobRunStatus = "skipped"
)

type JobRun struct {
	ID             uuid.UUID
	JobName        string
	Status         JobRunStatus
	StartedAt      time.Time
	FinishedAt     time.Time
	LoansProcessed int
	RowsWritten    int
	RowsDeleted    int
	FailedLoanIDs  []uuid.UUID
	ErrorMessage   *string
}
