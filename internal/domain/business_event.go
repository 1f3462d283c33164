package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type BusinessEventStatus string

const (
	BusinessEventStatusPending    BusinessEventStatus = "pending"
	BusinessEventStatusDispatched BusinessEventStatus = "dispatched"
	BusinessEventStatusFailed     BusinessEventStatus = "failed"
)

type BusinessEventType string

const (
	BusinessEventTypeLoanStatusChanged BusinessEventType = "loan.status_changed"
)

type BusinessEvent struct {
	ID          uuid.UUID
	Type        BusinessEventType
	LoanID      uuid.UUID
	FromStatus  LoanStatus
	ToStatus    LoanStatus
	Event       LoanEvent
	Actor       string
	Payload     json.RawMessage
	Status      BusinessEventStatus
	Attempts    int
	LastAttempt *time.Time
	LastError   *string
	OccurredAt  time.Time
	CreatedAt   time.Time
}
