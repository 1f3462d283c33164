package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/metrics"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) StatusChanged(ctx context.Context, change StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

// recorder collects every notification it receives.
type recorder struct {
	changes []StatusChange
}

func (r *recorder) StatusChanged(_ context.Context, change StatusChange) error {
	r.changes = append(r.changes, change)
	return nil
}

var expected = map[key]domain.LoanStatus{
	{domain.LoanStatusNone, domain.LoanEventCreated}: domain.LoanStatusSubmittedAndPendingApproval,

	{domain.LoanStatusSubmittedAndPendingApproval, domain.LoanEventApproved}:  domain.LoanStatusApproved,
	{domain.LoanStatusSubmittedAndPendingApproval, domain.LoanEventRejected}:  domain.LoanStatusRejected,
	{domain.LoanStatusSubmittedAndPendingApproval, domain.LoanEventWithdrawn}: domain.LoanStatusWithdrawnByClient,
	{domain.LoanStatusApproved, domain.LoanEventApprovalUndo}:                 domain.LoanStatusSubmittedAndPendingApproval,

	{domain.LoanStatusApproved, domain.LoanEventDisbursed}:             domain.LoanStatusActive,
	{domain.LoanStatusClosedObligationsMet, domain.LoanEventDisbursed}: domain.LoanStatusActive,
	{domain.LoanStatusOverpaid, domain.LoanEventDisbursed}:             domain.LoanStatusActive,
	{domain.LoanStatusActive, domain.LoanEventDisbursalUndo}:           domain.LoanStatusApproved,

	{domain.LoanStatusClosedObligationsMet, domain.LoanEventChargePayment}: domain.LoanStatusActive,
	{domain.LoanStatusOverpaid, domain.LoanEventChargePayment}:             domain.LoanStatusActive,

	{domain.LoanStatusActive, domain.LoanEventRepaidInFull}:   domain.LoanStatusClosedObligationsMet,
	{domain.LoanStatusOverpaid, domain.LoanEventRepaidInFull}: domain.LoanStatusClosedObligationsMet,

	{domain.LoanStatusActive, domain.LoanEventWriteOffOutstanding}:               domain.LoanStatusClosedWrittenOff,
	{domain.LoanStatusClosedWrittenOff, domain.LoanEventWriteOffOutstandingUndo}: domain.LoanStatusActive,
	{domain.LoanStatusActive, domain.LoanEventRescheduled}:                       domain.LoanStatusClosedRescheduleOutstandingAmount,

	{domain.LoanStatusActive, domain.LoanEventOverpayment}:               domain.LoanStatusOverpaid,
	{domain.LoanStatusClosedObligationsMet, domain.LoanEventOverpayment}: domain.LoanStatusOverpaid,

	{domain.LoanStatusClosedObligationsMet, domain.LoanEventAdjustTransaction}:              domain.LoanStatusActive,
	{domain.LoanStatusClosedWrittenOff, domain.LoanEventAdjustTransaction}:                  domain.LoanStatusActive,
	{domain.LoanStatusClosedRescheduleOutstandingAmount, domain.LoanEventAdjustTransaction}: domain.LoanStatusActive,

	{domain.LoanStatusActive, domain.LoanEventInitiateTransfer}:             domain.LoanStatusTransferInProgress,
	{domain.LoanStatusTransferInProgress, domain.LoanEventRejectTransfer}:   domain.LoanStatusTransferOnHold,
	{domain.LoanStatusTransferInProgress, domain.LoanEventWithdrawTransfer}: domain.LoanStatusActive,

	{domain.LoanStatusOverpaid, domain.LoanEventCreditBalanceRefund}:     domain.LoanStatusClosedObligationsMet,
	{domain.LoanStatusClosedObligationsMet, domain.LoanEventChargeAdded}: domain.LoanStatusActive,

	{domain.LoanStatusClosedObligationsMet, domain.LoanEventChargeback}: domain.LoanStatusActive,
	{domain.LoanStatusOverpaid, domain.LoanEventChargeback}:             domain.LoanStatusActive,
}

func TestTable_MatchesDocumentedTransitions(t *testing.T) {
	assert.Len(t, Transitions(), len(expected))
	for _, r := range Transitions() {
		want, ok := expected[key{r.From, r.Event}]
		require.True(t, ok, "unexpected rule %s --%s--> %s", r.From, r.Event, r.To)
		assert.Equal(t, want, r.To)
	}
}

func TestTransition_FullGrid(t *testing.T) {
	for _, status := range domain.LoanStatuses {
		for _, event := range domain.LoanEvents {
			t.Run(status.String()+"/"+string(event), func(t *testing.T) {
				rec := &recorder{}
				sm := NewStateMachine(rec, nil)
				loan := &domain.Loan{ID: uuid.New(), Status: status}

				err := sm.Transition(context.Background(), event, loan)

				want, legal := expected[key{status, event}]
				if !legal {
					require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
					var ste *StateTransitionError
					require.True(t, errors.As(err, &ste))
					assert.Equal(t, status, ste.From)
					assert.Equal(t, event, ste.Event)
					assert.Equal(t, status, loan.Status)
					assert.Empty(t, rec.changes)
					return
				}

				require.NoError(t, err)
				assert.Equal(t, want, loan.Status)
				if event == domain.LoanEventCreated {
					assert.Empty(t, rec.changes)
					return
				}
				require.Len(t, rec.changes, 1)
				change := rec.changes[0]
				assert.Equal(t, loan.ID, change.LoanID)
				assert.Equal(t, status, change.From)
				assert.Equal(t, want, change.To)
				assert.Equal(t, event, change.Event)
				assert.False(t, change.At.IsZero())
			})
		}
	}
}

func TestTransition_ScenarioWriteOffAndUndo(t *testing.T) {
	rec := &recorder{}
	sm := NewStateMachine(rec, nil)
	loan := &domain.Loan{ID: uuid.New()}
	ctx := context.Background()

	steps := []struct {
		event domain.LoanEvent
		want  domain.LoanStatus
	}{
		{domain.LoanEventCreated, domain.LoanStatusSubmittedAndPendingApproval},
		{domain.LoanEventApproved, domain.LoanStatusApproved},
		{domain.LoanEventDisbursed, domain.LoanStatusActive},
		{domain.LoanEventWriteOffOutstanding, domain.LoanStatusClosedWrittenOff},
		{domain.LoanEventWriteOffOutstandingUndo, domain.LoanStatusActive},
	}
	for _, s := range steps {
		require.NoError(t, sm.Transition(ctx, s.event, loan))
		assert.Equal(t, s.want, loan.Status)
	}

	require.Len(t, rec.changes, 4)
	assert.Equal(t, domain.LoanEventApproved, rec.changes[0].Event)
	assert.Equal(t, domain.LoanEventWriteOffOutstandingUndo, rec.changes[3].Event)
}

func TestTransition_NotifierFailureRestoresStatus(t *testing.T) {
	n := &mockNotifier{}
	boom := errors.New("outbox unavailable")
	n.On("StatusChanged", mock.Anything, mock.MatchedBy(func(c StatusChange) bool {
		return c.Event == domain.LoanEventApproved
	})).Return(boom).Once()

	sm := NewStateMachine(n, nil)
	loan := &domain.Loan{ID: uuid.New(), Status: domain.LoanStatusSubmittedAndPendingApproval}

	err := sm.Transition(context.Background(), domain.LoanEventApproved, loan)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, domain.LoanStatusSubmittedAndPendingApproval, loan.Status)
	n.AssertExpectations(t)
}

func TestWith_ReplacesNotifier(t *testing.T) {
	base := &recorder{}
	bound := &recorder{}
	sm := NewStateMachine(base, nil)

	loan := &domain.Loan{ID: uuid.New(), Status: domain.LoanStatusActive}
	require.NoError(t, sm.With(bound).Transition(context.Background(), domain.LoanEventOverpayment, loan))

	assert.Empty(t, base.changes)
	assert.Len(t, bound.changes, 1)
}

func TestTransition_NilNotifier(t *testing.T) {
	sm := NewStateMachine(nil, nil)
	loan := &domain.Loan{ID: uuid.New(), Status: domain.LoanStatusActive}
	require.NoError(t, sm.Transition(context.Background(), domain.LoanEventRepaidInFull, loan))
	assert.Equal(t, domain.LoanStatusClosedObligationsMet, loan.Status)
}

func TestTransition_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sm := NewStateMachine(nil, m)

	loan := &domain.Loan{ID: uuid.New(), Status: domain.LoanStatusActive}
	require.NoError(t, sm.Transition(context.Background(), domain.LoanEventRescheduled, loan))
	require.Error(t, sm.Transition(context.Background(), domain.LoanEventRescheduled, loan))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("LOAN_RESCHEDULE", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("LOAN_RESCHEDULE", "rejected")))
}
