package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/account-ledger/internal/domain"
	"github.com/josh-kwaku/account-ledger/internal/logging"
	"github.com/josh-kwaku/account-ledger/internal/service/ledger"
)

const replayedHeader = "X-Idempotent-Replayed"

type ledgerService interface {
	CreateAccount(ctx context.Context, in domain.CreateAccountInput) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	SetAccountStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Account, error)
	CheckEligibility(ctx context.Context, id uuid.UUID) (*domain.Eligibility, error)
	Debit(ctx context.Context, req domain.DebitRequest) (*domain.DebitResult, error)
	ListDebits(ctx context.Context, id uuid.UUID, limit, offset int) (*ledger.DebitPage, error)
}

type AccountHandler struct {
	ledger ledgerService
}

func NewAccountHandler(svc ledgerService) *AccountHandler {
	return &AccountHandler{ledger: svc}
}

// Register mounts the account routes on mux.
func (h *AccountHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/accounts", h.Create)
	mux.HandleFunc("GET /api/v1/accounts/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/accounts/{id}/status", h.UpdateStatus)
	mux.HandleFunc("GET /api/v1/accounts/{id}/eligibility", h.Eligibility)
	mux.HandleFunc("POST /api/v1/accounts/{id}/debits", h.Debit)
	mux.HandleFunc("GET /api/v1/accounts/{id}/debits", h.ListDebits)
}

type createAccountRequest struct {
	CustomerID         string           `json:"customer_id" validate:"required,max=64"`
	AccountNumber      string           `json:"account_number" validate:"required,number,max=20"`
	AccountType        string           `json:"account_type" validate:"required"`
	InitialDeposit     *decimal.Decimal `json:"initial_deposit" validate:"omitempty,dnonneg"`
	DailyTransferLimit *decimal.Decimal `json:"daily_transfer_limit" validate:"omitempty,dnonneg"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type debitRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"required,dpositive"`
}

type accountDTO struct {
	ID                 uuid.UUID       `json:"id"`
	CustomerID         string          `json:"customer_id"`
	AccountNumber      string          `json:"account_number"`
	AccountType        string          `json:"account_type"`
	Balance            decimal.Decimal `json:"balance"`
	Status             string          `json:"status"`
	DailyTransferLimit decimal.Decimal `json:"daily_transfer_limit"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toAccountDTO(a *domain.Account) accountDTO {
	return accountDTO{
		ID:                 a.ID,
		CustomerID:         a.CustomerID,
		AccountNumber:      a.AccountNumber,
		AccountType:        string(a.AccountType),
		Balance:            a.Balance,
		Status:             string(a.Status),
		DailyTransferLimit: a.DailyTransferLimit,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type eligibilityDTO struct {
	AccountID        uuid.UUID        `json:"account_id"`
	IsEligible       bool             `json:"is_eligible"`
	Reason           string           `json:"reason,omitempty"`
	Message          string           `json:"message,omitempty"`
	AccountStatus    string           `json:"account_status"`
	AvailableBalance *decimal.Decimal `json:"available_balance,omitempty"`
	DailyLimit       decimal.Decimal  `json:"daily_limit"`
}

func toEligibilityDTO(e *domain.Eligibility) eligibilityDTO {
	dto := eligibilityDTO{
		AccountID:     e.AccountID,
		IsEligible:    e.IsEligible,
		Reason:        string(e.Reason),
		Message:       e.Message,
		AccountStatus: string(e.AccountStatus),
		DailyLimit:    e.DailyLimit,
	}
	if e.IsEligible {
		balance := e.AvailableBalance
		dto.AvailableBalance = &balance
	}
	return dto
}

type debitEntryDTO struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      uuid.UUID       `json:"account_id"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toDebitEntryDTO(e *domain.DebitEntry) debitEntryDTO {
	return debitEntryDTO{
		ID:             e.ID,
		AccountID:      e.AccountID,
		IdempotencyKey: e.IdempotencyKey,
		Amount:         e.Amount,
		BalanceBefore:  e.BalanceBefore,
		BalanceAfter:   e.BalanceAfter,
		CreatedAt:      e.CreatedAt,
	}
}

type debitResponse struct {
	Account  accountDTO    `json:"account"`
	Debit    debitEntryDTO `json:"debit"`
	Replayed bool          `json:"replayed"`
}

type debitListResponse struct {
	Debits []debitEntryDTO `json:"debits"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func accountIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return false
	}
	if fields := ValidateRequest(dst); len(fields) > 0 {
		RespondValidationError(w, fields)
		return false
	}
	return true
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), domain.CreateAccountInput{
		CustomerID:         req.CustomerID,
		AccountNumber:      req.AccountNumber,
		AccountType:        req.AccountType,
		InitialDeposit:     req.InitialDeposit,
		DailyTransferLimit: req.DailyTransferLimit,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to create account", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toAccountDTO(account))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req updateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.ledger.SetAccountStatus(r.Context(), id, req.Status)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to update account status", "account_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toAccountDTO(account))
}

func (h *AccountHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	result, err := h.ledger.CheckEligibility(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toEligibilityDTO(result))
}

func (h *AccountHandler) Debit(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	var req debitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.ledger.Debit(r.Context(), domain.DebitRequest{
		AccountID:      id,
		Amount:         *req.Amount,
		IdempotencyKey: IdempotencyKeyFromContext(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("debit rejected", "account_id", id, "error", err)
		RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		w.Header().Set(replayedHeader, "true")
		status = http.StatusOK
	}

	RespondSuccess(w, status, debitResponse{
		Account:  toAccountDTO(result.Account),
		Debit:    toDebitEntryDTO(result.Entry),
		Replayed: result.Replayed,
	})
}

func (h *AccountHandler) ListDebits(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDFromPath(r)
	if !ok {
		RespondAppError(w, ErrAccountNotFound, nil)
		return
	}

	limit, offset, fields := pagination(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	page, err := h.ledger.ListDebits(r.Context(), id, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]debitEntryDTO, len(page.Entries))
	for i := range page.Entries {
		dtos[i] = toDebitEntryDTO(&page.Entries[i])
	}

	RespondSuccess(w, http.StatusOK, debitListResponse{
		Debits: dtos,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func pagination(r *http.Request) (int, int, []FieldError) {
	var (
		limit, offset int
		fields        []FieldError
	)
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields = append(fields, FieldError{Field: "limit", Message: "must be a positive integer"})
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: "offset", Message: "must be a non-negative integer"})
		}
		offset = n
	}
	return limit, offset, fields
}
