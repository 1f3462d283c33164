package arrears

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (*Result, error) {
	r.calls.Add(1)
	return &Result{}, r.err
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	errs := []error{
		nil,
		domain.ErrJobAlreadyRunning,
		&BatchPartialFailure{Total: 2, Failed: []LoanFailure{{LoanID: uuid.New(), Err: domain.ErrNotFound}}},
	}

	for _, runErr := range errs {
		r := &countingRunner{err: runErr}
		s := NewScheduler(r, slog.Default(), 5*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			s.Start(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scheduler did not stop")
		}
	}
}

func TestBatchPartialFailure_Unwrap(t *testing.T) {
	id := uuid.New()
	err := &BatchPartialFailure{Total: 3, Failed: []LoanFailure{
		{LoanID: id, Err: &InvariantViolationError{LoanID: id, Category: CategoryFee}},
	}}

	assert.ErrorIs(t, err, domain.ErrNegativeOverdue)
	assert.Contains(t, err.Error(), "1 of 3 loans")
	assert.Contains(t, err.Error(), id.String())
}
