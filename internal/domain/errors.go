package domain

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrLoanNotFound              = errors.New("loan not found")
	ErrProductNotFound           = errors.New("loan product not found")
	ErrCurrencyNotFound          = errors.New("currency not found")
	ErrVersionConflict           = errors.New("optimistic lock conflict")
	ErrValidation                = errors.New("validation failed")
	ErrInvalidStateTransition    = errors.New("invalid loan state transition")
	ErrUnsupportedInterestMethod = errors.New("unsupported interest method")
	ErrNegativeOverdue           = errors.New("negative overdue amount")
	ErrJobAlreadyRunning         = errors.New("job already running")
)
