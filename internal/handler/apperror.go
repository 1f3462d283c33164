package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}
	ErrJobAlreadyRunning  = &AppError{http.StatusConflict, "JOB_ALREADY_RUNNING", "Job is already running"}
	ErrAgingPartialFailed = &AppError{http.StatusInternalServerError, "AGING_PARTIAL_FAILURE", "Arrears aging failed for some loans"}
)
