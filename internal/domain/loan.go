package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

// LoanStatusNone is the status of a loan that has not been created yet.
const LoanStatusNone LoanStatus = ""

const (
	LoanStatusSubmittedAndPendingApproval       LoanStatus = "SUBMITTED_AND_PENDING_APPROVAL"
	LoanStatusApproved                          LoanStatus = "APPROVED"
	LoanStatusActive                            LoanStatus = "ACTIVE"
	LoanStatusWithdrawnByClient                 LoanStatus = "WITHDRAWN_BY_CLIENT"
	LoanStatusRejected                          LoanStatus = "REJECTED"
	LoanStatusClosedObligationsMet              LoanStatus = "CLOSED_OBLIGATIONS_MET"
	LoanStatusClosedWrittenOff                  LoanStatus = "CLOSED_WRITTEN_OFF"
	LoanStatusClosedRescheduleOutstandingAmount LoanStatus = "CLOSED_RESCHEDULE_OUTSTANDING_AMOUNT"
	LoanStatusOverpaid                          LoanStatus = "OVERPAID"
	LoanStatusTransferInProgress                LoanStatus = "TRANSFER_IN_PROGRESS"
	LoanStatusTransferOnHold                    LoanStatus = "TRANSFER_ON_HOLD"
)

var LoanStatuses = []LoanStatus{
	LoanStatusNone,
	LoanStatusSubmittedAndPendingApproval,
	LoanStatusApproved,
	LoanStatusActive,
	LoanStatusWithdrawnByClient,
	LoanStatusRejected,
	LoanStatusClosedObligationsMet,
	LoanStatusClosedWrittenOff,
	LoanStatusClosedRescheduleOutstandingAmount,
	LoanStatusOverpaid,
	LoanStatusTransferInProgress,
	LoanStatusTransferOnHold,
}

func (s LoanStatus) IsActive() bool { return s == LoanStatusActive }

func (s LoanStatus) IsClosed() bool {
	switch s {
	case LoanStatusClosedObligationsMet, LoanStatusClosedWrittenOff, LoanStatusClosedRescheduleOutstandingAmount:
		return true
	}
	return false
}

// IsOpen reports whether the loan still carries a balance that can move.
func (s LoanStatus) IsOpen() bool {
	switch s {
	case LoanStatusActive, LoanStatusOverpaid, LoanStatusTransferInProgress, LoanStatusTransferOnHold:
		return true
	}
	return false
}

func (s LoanStatus) String() string {
	if s == LoanStatusNone {
		return "NONE"
	}
	return string(s)
}

type LoanEvent string

const (
	LoanEventCreated                 LoanEvent = "LOAN_CREATED"
	LoanEventApproved                LoanEvent = "LOAN_APPROVED"
	LoanEventRejected                LoanEvent = "LOAN_REJECTED"
	LoanEventWithdrawn               LoanEvent = "LOAN_WITHDRAWN"
	LoanEventApprovalUndo            LoanEvent = "LOAN_APPROVAL_UNDO"
	LoanEventDisbursed               LoanEvent = "LOAN_DISBURSED"
	LoanEventDisbursalUndo           LoanEvent = "LOAN_DISBURSAL_UNDO"
	LoanEventChargePayment           LoanEvent = "LOAN_CHARGE_PAYMENT"
	LoanEventRepaidInFull            LoanEvent = "REPAID_IN_FULL"
	LoanEventWriteOffOutstanding     LoanEvent = "WRITE_OFF_OUTSTANDING"
	LoanEventWriteOffOutstandingUndo LoanEvent = "WRITE_OFF_OUTSTANDING_UNDO"
	LoanEventRescheduled             LoanEvent = "LOAN_RESCHEDULE"
	LoanEventOverpayment             LoanEvent = "LOAN_OVERPAYMENT"
	LoanEventAdjustTransaction       LoanEvent = "LOAN_ADJUST_TRANSACTION"
	LoanEventInitiateTransfer        LoanEvent = "LOAN_INITIATE_TRANSFER"
	LoanEventRejectTransfer          LoanEvent = "LOAN_REJECT_TRANSFER"
	LoanEventWithdrawTransfer        LoanEvent = "LOAN_WITHDRAW_TRANSFER"
	LoanEventCreditBalanceRefund     LoanEvent = "LOAN_CREDIT_BALANCE_REFUND"
	LoanEventChargeAdded             LoanEvent = "LOAN_CHARGE_ADDED"
	LoanEventChargeback              LoanEvent = "LOAN_CHARGEBACK"
)

var LoanEvents = []LoanEvent{
	LoanEventCreated,
	LoanEventApproved,
	LoanEventRejected,
	LoanEventWithdrawn,
	LoanEventApprovalUndo,
	LoanEventDisbursed,
	LoanEventDisbursalUndo,
	LoanEventChargePayment,
	LoanEventRepaidInFull,
	LoanEventWriteOffOutstanding,
	LoanEventWriteOffOutstandingUndo,
	LoanEventRescheduled,
	LoanEventOverpayment,
	LoanEventAdjustTransaction,
	LoanEventInitiateTransfer,
	LoanEventRejectTransfer,
	LoanEventWithdrawTransfer,
	LoanEventCreditBalanceRefund,
	LoanEventChargeAdded,
	LoanEventChargeback,
}

// LoanSummary holds the running transaction totals of a loan per category.
type LoanSummary struct {
	PrincipalRepaid     decimal.Decimal `json:"principal_repaid"`
	PrincipalWrittenOff decimal.Decimal `json:"principal_written_off"`
	InterestRepaid      decimal.Decimal `json:"interest_repaid"`
	InterestWaived      decimal.Decimal `json:"interest_waived"`
	InterestWrittenOff  decimal.Decimal `json:"interest_written_off"`
	FeeRepaid           decimal.Decimal `json:"fee_repaid"`
	FeeWaived           decimal.Decimal `json:"fee_waived"`
	FeeWrittenOff       decimal.Decimal `json:"fee_written_off"`
	PenaltyRepaid       decimal.Decimal `json:"penalty_repaid"`
	PenaltyWaived       decimal.Decimal `json:"penalty_waived"`
	PenaltyWrittenOff   decimal.Decimal `json:"penalty_written_off"`
}

type Loan struct {
	ID                           uuid.UUID
	ExternalID                   *string
	ProductID                    uuid.UUID
	CurrencyCode                 string
	Principal                    decimal.Decimal
	Status                       LoanStatus
	Terms                        LoanTerms
	ExpectedDisbursementDate     time.Time
	ActualDisbursementDate       *time.Time
	Summary                      LoanSummary
	GraceOnArrearsAgeing         int
	InterestRecalculationEnabled bool
	Version                      int64
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

// DisbursementDate is the actual disbursement date when known, the expected
// one otherwise.
func (l *Loan) DisbursementDate() time.Time {
	if l.ActualDisbursementDate != nil {
		return *l.ActualDisbursementDate
	}
	return l.ExpectedDisbursementDate
}

type LoanProduct struct {
	ID                             uuid.UUID
	Name                           string
	CurrencyCode                   string
	DefaultTerms                   LoanTerms
	ArrearsBasedOnOriginalSchedule bool
	InterestRecalculationEnabled   bool
	GraceOnArrearsAgeing           int
	CreatedAt                      time.Time
}
