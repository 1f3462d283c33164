// Package businessevent delivers loan business events to subscribers through
// a transactional outbox: events are written in the same transaction as the
// status change and relayed to Kafka once committed.
package businessevent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/lifecycle"
)

type eventWriter interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.BusinessEvent) error
}

// Message is the wire form of a business event.
type Message struct {
	EventID    uuid.UUID                `json:"event_id"`
	Type       domain.BusinessEventType `json:"type"`
	LoanID     uuid.UUID                `json:"loan_id"`
	FromStatus string                   `json:"from_status"`
	ToStatus   string                   `json:"to_status"`
	Event      domain.LoanEvent         `json:"event"`
	Actor      string                   `json:"actor"`
	OccurredAt time.Time                `json:"occurred_at"`
}

type OutboxNotifier struct {
	events eventWriter
	now    func() time.Time
}

func NewOutboxNotifier(events eventWriter) *OutboxNotifier {
	return &OutboxNotifier{
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Bind returns a notifier that records status changes inside tx on behalf
// of actor. Nothing is visible to the relay until tx commits.
func (n *OutboxNotifier) Bind(tx *sql.Tx, actor string) lifecycle.Notifier {
	return lifecycle.NotifierFunc(func(ctx context.Context, change lifecycle.StatusChange) error {
		e, err := n.newEvent(change, actor)
		if err != nil {
			return err
		}
		if err := n.events.Create(ctx, tx, e); err != nil {
			return fmt.Errorf("OutboxNotifier: %w", err)
		}
		return nil
	})
}

func (n *OutboxNotifier) newEvent(change lifecycle.StatusChange, actor string) (*domain.BusinessEvent, error) {
	id := uuid.New()
	msg := Message{
		EventID:    id,
		Type:       domain.BusinessEventTypeLoanStatusChanged,
		LoanID:     change.LoanID,
		FromStatus: change.From.String(),
		ToStatus:   change.To.String(),
		Event:      change.Event,
		Actor:      actor,
		OccurredAt: change.At,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("OutboxNotifier: marshal: %w", err)
	}

	return &domain.BusinessEvent{
		ID:         id,
		Type:       msg.Type,
		LoanID:     change.LoanID,
		FromStatus: change.From,
		ToStatus:   change.To,
		Event:      change.Event,
		Actor:      actor,
		Payload:    payload,
		Status:     domain.BusinessEventStatusPending,
		OccurredAt: change.At,
		CreatedAt:  n.now(),
	}, nil
}
