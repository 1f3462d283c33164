package lifecycle

import (
	"sort"

	"github.com/josh-kwaku/loan-engine/internal/domain"
)

type key struct {
	from  domain.LoanStatus
	event domain.LoanEvent
}

// Rule is one entry of the transition table.
type Rule struct {
	From  domain.LoanStatus
	Event domain.LoanEvent
	To    domain.LoanStatus
}

func on(event domain.LoanEvent, to domain.LoanStatus, from ...domain.LoanStatus) []Rule {
	rules := make([]Rule, 0, len(from))
	for _, f := range from {
		rules = append(rules, Rule{From: f, Event: event, To: to})
	}
	return rules
}

var rules = [][]Rule{
	on(domain.LoanEventCreated, domain.LoanStatusSubmittedAndPendingApproval,
		domain.LoanStatusNone),
	on(domain.LoanEventApproved, domain.LoanStatusApproved,
		domain.LoanStatusSubmittedAndPendingApproval),
	on(domain.LoanEventRejected, domain.LoanStatusRejected,
		domain.LoanStatusSubmittedAndPendingApproval),
	on(domain.LoanEventWithdrawn, domain.LoanStatusWithdrawnByClient,
		domain.LoanStatusSubmittedAndPendingApproval),
	on(domain.LoanEventApprovalUndo, domain.LoanStatusSubmittedAndPendingApproval,
		domain.LoanStatusApproved),
	on(domain.LoanEventDisbursed, domain.LoanStatusActive,
		domain.LoanStatusApproved, domain.LoanStatusClosedObligationsMet, domain.LoanStatusOverpaid),
	on(domain.LoanEventDisbursalUndo, domain.LoanStatusApproved,
		domain.LoanStatusActive),
	on(domain.LoanEventChargePayment, domain.LoanStatusActive,
		domain.LoanStatusClosedObligationsMet, domain.LoanStatusOverpaid),
	on(domain.LoanEventRepaidInFull, domain.LoanStatusClosedObligationsMet,
		domain.LoanStatusActive, domain.LoanStatusOverpaid),
	on(domain.LoanEventWriteOffOutstanding, domain.LoanStatusClosedWrittenOff,
		domain.LoanStatusActive),
	on(domain.LoanEventWriteOffOutstandingUndo, domain.LoanStatusActive,
		domain.LoanStatusClosedWrittenOff),
	on(domain.LoanEventRescheduled, domain.LoanStatusClosedRescheduleOutstandingAmount,
		domain.LoanStatusActive),
	on(domain.LoanEventOverpayment, domain.LoanStatusOverpaid,
		domain.LoanStatusActive, domain.LoanStatusClosedObligationsMet),
	on(domain.LoanEventAdjustTransaction, domain.LoanStatusActive,
		domain.LoanStatusClosedObligationsMet, domain.LoanStatusClosedWrittenOff, domain.LoanStatusClosedRescheduleOutstandingAmount),
	on(domain.LoanEventInitiateTransfer, domain.LoanStatusTransferInProgress,
		domain.LoanStatusActive),
	on(domain.LoanEventRejectTransfer, domain.LoanStatusTransferOnHold,
		domain.LoanStatusTransferInProgress),
	on(domain.LoanEventWithdrawTransfer, domain.LoanStatusActive,
		domain.LoanStatusTransferInProgress),
	on(domain.LoanEventCreditBalanceRefund, domain.LoanStatusClosedObligationsMet,
		domain.LoanStatusOverpaid),
	on(domain.LoanEventChargeAdded, domain.LoanStatusActive,
		domain.LoanStatusClosedObligationsMet),
	on(domain.LoanEventChargeback, domain.LoanStatusActive,
		domain.LoanStatusClosedObligationsMet, domain.LoanStatusOverpaid),
}

var table = func() map[key]domain.LoanStatus {
	t := make(map[key]domain.LoanStatus)
	for _, group := range rules {
		for _, r := range group {
			t[key{r.From, r.Event}] = r.To
		}
	}
	return t
}()

// Next returns the status a loan in from moves to on event.
func Next(from domain.LoanStatus, event domain.LoanEvent) (domain.LoanStatus, bool) {
	to, ok := table[key{from, event}]
	return to, ok
}

// Transitions returns every legal transition ordered by event then source status.
func Transitions() []Rule {
	out := make([]Rule, 0, len(table))
	for k, to := range table {
		out = append(out, Rule{From: k.from, Event: k.event, To: to})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Event != out[j].Event {
			return out[i].Event < out[j].Event
		}
		return out[i].From < out[j].From
	})
	return out
}
