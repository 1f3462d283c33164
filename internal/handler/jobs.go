package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/arrears"
	"github.com/josh-kwaku/loan-engine/internal/logging"
)

type agingRunner interface {
	Run(ctx context.Context) (*arrears.Result, error)
	RunForLoans(ctx context.Context, ids []uuid.UUID) (*arrears.Result, error)
}

// JobHandler lets operators trigger an arrears aging run outside the
// schedule, either for every loan or for a given set of loans.
type JobHandler struct {
	aging agingRunner
}

func NewJobHandler(aging agingRunner) *JobHandler {
	return &JobHandler{aging: aging}
}

type runAgingRequest struct {
	LoanIDs []uuid.UUID `json:"loan_ids"`
}

type agingRunResponse struct {
	BusinessDate   string `json:"business_date"`
	LoansProcessed int    `json:"loans_processed"`
	RowsWritten    int    `json:"rows_written"`
	RowsDeleted    int    `json:"rows_deleted"`
}

type loanFailure struct {
	LoanID uuid.UUID `json:"loan_id"`
	Error  string    `json:"error"`
}

func (h *JobHandler) RunAging(w http.ResponseWriter, r *http.Request) {
	var req runAgingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var (
		res *arrears.Result
		err error
	)
	if len(req.LoanIDs) > 0 {
		res, err = h.aging.RunForLoans(r.Context(), req.LoanIDs)
	} else {
		res, err = h.aging.Run(r.Context())
	}

	var partial *arrears.BatchPartialFailure
	if errors.As(err, &partial) {
		failures := make([]loanFailure, 0, len(partial.Failed))
		for _, f := range partial.Failed {
			failures = append(failures, loanFailure{LoanID: f.LoanID, Error: f.Err.Error()})
		}
		RespondAppError(w, ErrAgingPartialFailed, failures)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("manual aging run failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, agingRunResponse{
		BusinessDate:   res.BusinessDate.Format(time.DateOnly),
		LoansProcessed: res.LoansProcessed,
		RowsWritten:    res.RowsWritten,
		RowsDeleted:    res.RowsDeleted,
	})
}
