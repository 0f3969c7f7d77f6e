package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cheers/cheers-api/internal/middleware"
	"github.com/cheers/cheers-api/internal/pkg/database"
	"github.com/cheers/cheers-api/internal/pkg/errorhandler"
	"github.com/cheers/cheers-api/internal/pkg/response"
	"github.com/cheers/cheers-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /me/balance. The caller's balance is created on first query.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.CheckAndRollQuota(r.Context(), accountID)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	response.OK(w, NewBalanceResponse(balance))
}

// Quota handles GET /me/quota
func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.CheckAndRollQuota(r.Context(), accountID)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	response.OK(w, QuotaResponse{
		Period:    balance.LastResetPeriod,
		Allotment: balance.QuotaAllotment,
		Used:      balance.QuotaUsed,
		Remaining: balance.QuotaRemaining(),
	})
}

// Transactions handles GET /me/transactions?kind=&role=&limit=&offset=
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	filter, fieldErrs := ParseHistoryFilter(r)
	if fieldErrs != nil {
		response.ValidationError(w, fieldErrs)
		return
	}

	txns, err := h.svc.History(r.Context(), accountID, filter)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	filter = filter.Normalize()
	response.Page(w, txns, filter.Limit, filter.Offset)
}

// ParseHistoryFilter reads kind, role, limit and offset from the query string.
func ParseHistoryFilter(r *http.Request) (HistoryFilter, map[string]string) {
	q := r.URL.Query()
	filter := HistoryFilter{
		Kind: Kind(q.Get("kind")),
		Role: Role(q.Get("role")),
	}
	errs := map[string]string{}

	if validator.ValidateVar(q.Get("kind"), "ledger_kind") != nil {
		errs["kind"] = "Invalid transaction kind"
	}
	if filter.Role != "" && !filter.Role.Valid() {
		errs["role"] = "Invalid role. Must be: giver, receiver, or any"
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs["limit"] = "Value must be a positive integer"
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs["offset"] = "Value must be a non-negative integer"
		}
		filter.Offset = n
	}

	if len(errs) > 0 {
		return filter, errs
	}
	return filter, nil
}

// RespondError maps ledger and persistence errors to the API envelope.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	var quotaErr *QuotaExceededError
	var balanceErr *InsufficientBalanceError

	switch {
	case errors.As(err, &quotaErr):
		response.Conflict(w, "QUOTA_EXCEEDED", quotaErr.Error(), map[string]string{
			"remaining": strconv.FormatInt(quotaErr.Remaining, 10),
			"allotment": strconv.FormatInt(quotaErr.Allotment, 10),
		})
	case errors.As(err, &balanceErr):
		response.Conflict(w, "INSUFFICIENT_BALANCE", "Insufficient points balance", map[string]string{
			"available": strconv.FormatInt(balanceErr.Available, 10),
			"requested": strconv.FormatInt(balanceErr.Requested, 10),
		})
	case errors.Is(err, ErrInsufficientBalance):
		response.Conflict(w, "INSUFFICIENT_BALANCE", "Insufficient points balance", nil)
	case errors.Is(err, ErrQuotaExceeded):
		response.Conflict(w, "QUOTA_EXCEEDED", "Monthly quota exceeded", nil)
	case errors.Is(err, ErrBalanceNotFound):
		response.NotFound(w, "Balance not found")
	case errors.Is(err, ErrInvalidAmount):
		response.ValidationError(w, map[string]string{"amount": "Amount must be greater than 0"})
	case errors.Is(err, ErrInvalidAccount):
		response.ValidationError(w, map[string]string{"account_id": "Invalid account id"})
	case errors.Is(err, ErrInvalidReason):
		response.ValidationError(w, map[string]string{"reason": "This field is required"})
	case errors.Is(err, ErrInvalidKind):
		response.ValidationError(w, map[string]string{"kind": "Invalid transaction kind"})
	case errors.Is(err, database.ErrConcurrencyConflict):
		response.ServiceUnavailable(w, "The operation conflicted with a concurrent update, please retry", 1)
	default:
		errorhandler.HandleInternal(r.Context(), w, err)
	}
}

// Routes mounts the caller's own ledger views.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/quota", h.Quota)
	r.Get("/transactions", h.Transactions)
	return r
}
