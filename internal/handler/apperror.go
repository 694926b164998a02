package handler

import "net/http"

// statusClientClosedRequest is the non-standard 499 used when the caller went
// away before the ledger answered.
const statusClientClosedRequest = 499

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrAccountNotFound      = &AppError{http.StatusNotFound, "ACCOUNT_NOT_FOUND", "Account not found"}
	ErrDuplicateAccount     = &AppError{http.StatusConflict, "DUPLICATE_ACCOUNT_NUMBER", "Account number already exists"}
	ErrAccountNotEligible   = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_NOT_ELIGIBLE", "Account status does not allow this operation"}
	ErrInsufficientFunds    = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrAccountClosed        = &AppError{http.StatusUnprocessableEntity, "ACCOUNT_CLOSED", "Account is closed"}
	ErrConcurrencyConflict  = &AppError{http.StatusConflict, "CONCURRENCY_CONFLICT", "Account was modified concurrently, please retry"}
	ErrIdempotencyConflict  = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrInvalidIdempotency   = &AppError{http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key must be 1-255 printable characters"}
	ErrStoreTimeout         = &AppError{http.StatusGatewayTimeout, "STORE_TIMEOUT", "The ledger store did not respond in time"}
	ErrStoreUnavailable     = &AppError{http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "The ledger store is unavailable"}
	ErrRequestCanceled      = &AppError{statusClientClosedRequest, "REQUEST_CANCELED", "Request was canceled by the client"}
)
