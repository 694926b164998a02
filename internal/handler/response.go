package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps an engine error onto its HTTP shape. Eligibility
// and funds failures carry their values so callers can decide automatically.
func RespondDomainError(w http.ResponseWriter, err error) {
	var (
		validation  *domain.ValidationError
		notEligible *domain.NotEligibleError
		funds       *domain.InsufficientFundsError
	)

	switch {
	case errors.As(err, &validation):
		RespondValidationError(w, []FieldError{{Field: validation.Field, Message: validation.Reason}})
	case errors.Is(err, domain.ErrValidation):
		RespondAppError(w, ErrValidationFailed, nil)
	case errors.Is(err, domain.ErrAccountNotFound):
		RespondAppError(w, ErrAccountNotFound, nil)
	case errors.Is(err, domain.ErrDuplicateAccountNumber):
		RespondAppError(w, ErrDuplicateAccount, nil)
	case errors.As(err, &notEligible):
		RespondAppError(w, ErrAccountNotEligible, map[string]string{
			"account_status": string(notEligible.Status),
			"reason":         reasonForStatus(notEligible.Status),
		})
	case errors.As(err, &funds):
		RespondAppError(w, ErrInsufficientFunds, map[string]string{
			"balance":   funds.Balance.String(),
			"requested": funds.Requested.String(),
		})
	case errors.Is(err, domain.ErrAccountClosed):
		RespondAppError(w, ErrAccountClosed, nil)
	case errors.Is(err, domain.ErrIdempotencyConflict):
		RespondAppError(w, ErrIdempotencyConflict, nil)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		RespondAppError(w, ErrConcurrencyConflict, nil)
	case errors.Is(err, domain.ErrStoreTimeout):
		RespondAppError(w, ErrStoreTimeout, nil)
	case errors.Is(err, domain.ErrStoreUnavailable):
		RespondAppError(w, ErrStoreUnavailable, nil)
	case errors.Is(err, context.Canceled):
		slog.Info("request canceled before the ledger answered", "error", err)
		RespondAppError(w, ErrRequestCanceled, nil)
	default:
		slog.Error("unhandled domain error", "error", err)
		RespondAppError(w, ErrInternalError, nil)
	}
}

func reasonForStatus(s domain.AccountStatus) string {
	switch s {
	case domain.AccountStatusFrozen:
		return string(domain.ReasonFrozenAccount)
	case domain.AccountStatusClosed:
		return string(domain.ReasonClosedAccount)
	}
	return ""
}
