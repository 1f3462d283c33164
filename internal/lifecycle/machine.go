// Package lifecycle holds the loan status state machine. Legal moves are
// data in a (status, event) table; anything absent from it is rejected.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/logging"
	"github.com/josh-kwaku/loan-engine/internal/metrics"
)

type StatusChange struct {
	LoanID uuid.UUID
	From   domain.LoanStatus
	To     domain.LoanStatus
	Event  domain.LoanEvent
	At     time.Time
}

// Notifier receives one StatusChange per applied transition, except loan
// creation.
type Notifier interface {
	StatusChanged(ctx context.Context, change StatusChange) error
}

type NotifierFunc func(ctx context.Context, change StatusChange) error

func (f NotifierFunc) StatusChanged(ctx context.Context, change StatusChange) error {
	return f(ctx, change)
}

type StateTransitionError struct {
	LoanID uuid.UUID
	From   domain.LoanStatus
	Event  domain.LoanEvent
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("loan %s: event %s not allowed in status %s", e.LoanID, e.Event, e.From)
}

func (e *StateTransitionError) Unwrap() error { return domain.ErrInvalidStateTransition }

type StateMachine struct {
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewStateMachine(notifier Notifier, m *metrics.Metrics) *StateMachine {
	return &StateMachine{
		notifier: notifier,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// With returns a copy of the machine that notifies n instead.
func (sm *StateMachine) With(n Notifier) *StateMachine {
	cp := *sm
	cp.notifier = n
	return &cp
}

// Transition applies event to loan. On success loan.Status holds the new
// status and the notifier has been called once (never for LOAN_CREATED).
// If the notifier fails the previous status is restored.
func (sm *StateMachine) Transition(ctx context.Context, event domain.LoanEvent, loan *domain.Loan) error {
	from := loan.Status
	to, ok := Next(from, event)
	if !ok {
		sm.metrics.IncTransition(string(event), "rejected")
		return &StateTransitionError{LoanID: loan.ID, From: from, Event: event}
	}

	loan.Status = to

	if event != domain.LoanEventCreated && sm.notifier != nil {
		change := StatusChange{LoanID: loan.ID, From: from, To: to, Event: event, At: sm.now()}
		if err := sm.notifier.StatusChanged(ctx, change); err != nil {
			loan.Status = from
			sm.metrics.IncTransition(string(event), "notify_failed")
			return fmt.Errorf("Transition: notify: %w", err)
		}
	}

	sm.metrics.IncTransition(string(event), "applied")
	logging.FromContext(ctx).Debug("loan status changed",
		"loan_id", loan.ID,
		"event", event,
		"from", from.String(),
		"to", to.String(),
	)
	return nil
}
