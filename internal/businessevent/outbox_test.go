package businessevent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/lifecycle"
)

type fakeWriter struct {
	events []*domain.BusinessEvent
	err    error
}

func (w *fakeWriter) Create(_ context.Context, _ *sql.Tx, e *domain.BusinessEvent) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, e)
	return nil
}

func TestOutboxNotifier_WritesOneEventPerTransition(t *testing.T) {
	w := &fakeWriter{}
	outbox := NewOutboxNotifier(w)
	sm := lifecycle.NewStateMachine(nil, nil).With(outbox.Bind(nil, "alice"))
	ctx := context.Background()

	loan := &domain.Loan{ID: uuid.New()}
	require.NoError(t, sm.Transition(ctx, domain.LoanEventCreated, loan))
	require.NoError(t, sm.Transition(ctx, domain.LoanEventApproved, loan))
	require.NoError(t, sm.Transition(ctx, domain.LoanEventDisbursed, loan))

	require.Len(t, w.events, 2, "creation is silent")

	e := w.events[1]
	assert.Equal(t, loan.ID, e.LoanID)
	assert.Equal(t, domain.LoanStatusApproved, e.FromStatus)
	assert.Equal(t, domain.LoanStatusActive, e.ToStatus)
	assert.Equal(t, domain.LoanEventDisbursed, e.Event)
	assert.Equal(t, domain.BusinessEventStatusPending, e.Status)
	assert.Equal(t, "alice", e.Actor)

	var msg Message
	require.NoError(t, json.Unmarshal(e.Payload, &msg))
	assert.Equal(t, e.ID, msg.EventID)
	assert.Equal(t, "APPROVED", msg.FromStatus)
	assert.Equal(t, "ACTIVE", msg.ToStatus)
	assert.Equal(t, domain.BusinessEventTypeLoanStatusChanged, msg.Type)
}

func TestOutboxNotifier_WriteFailureRollsBackStatus(t *testing.T) {
	w := &fakeWriter{err: errors.New("insert failed")}
	sm := lifecycle.NewStateMachine(nil, nil).With(NewOutboxNotifier(w).Bind(nil, "bob"))

	loan := &domain.Loan{ID: uuid.New(), Status: domain.LoanStatusSubmittedAndPendingApproval}
	err := sm.Transition(context.Background(), domain.LoanEventApproved, loan)
	require.Error(t, err)
	assert.Equal(t, domain.LoanStatusSubmittedAndPendingApproval, loan.Status)
}

func TestRecord(t *testing.T) {
	e := domain.BusinessEvent{
		ID:      uuid.New(),
		Type:    domain.BusinessEventTypeLoanStatusChanged,
		LoanID:  uuid.New(),
		Payload: []byte(`{"a":1}`),
	}
	rec := Record(e)

	assert.Equal(t, e.LoanID.String(), string(rec.Key))
	assert.Equal(t, `{"a":1}`, string(rec.Value))
	assert.Empty(t, rec.Topic)
	require.Len(t, rec.Headers, 2)
	assert.Equal(t, "event_id", rec.Headers[0].Key)
	assert.Equal(t, e.ID.String(), string(rec.Headers[0].Value))
	assert.Equal(t, "loan.status_changed", string(rec.Headers[1].Value))
}
