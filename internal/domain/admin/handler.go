package admin

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/domain/shop"
	"github.com/cheers/cheers-api/internal/middleware"
	"github.com/cheers/cheers-api/internal/pkg/response"
	"github.com/cheers/cheers-api/internal/pkg/validator"
)

// Handler serves /api/admin. Every route requires the admin role.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GrantPoints handles POST /accounts/{id}/points/grant
func (h *Handler) GrantPoints(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.service.GrantPoints)
}

// DeductPoints handles POST /accounts/{id}/points/deduct
func (h *Handler) DeductPoints(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.service.DeductPoints)
}

type adjustFunc func(ctx context.Context, actor, account string, amount int64, reason string) (*ledger.Balance, *ledger.Transaction, error)

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request, fn adjustFunc) {
	account := chi.URLParam(r, "id")
	if err := ledger.ValidateAccount(account); err != nil {
		response.BadRequest(w, "Invalid account ID")
		return
	}

	var req AdjustPointsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	b, txn, err := fn(r.Context(), middleware.GetUserID(r.Context()), account, req.Amount, req.Reason)
	if err != nil {
		ledger.RespondError(w, r, err)
		return
	}

	response.OK(w, AdjustPointsResponse{Balance: ledger.NewBalanceResponse(b), Transaction: txn})
}

// Balance handles GET /accounts/{id}/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.AccountBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ledger.RespondError(w, r, err)
		return
	}
	response.OK(w, ledger.NewBalanceResponse(b))
}

// ListOrders handles GET /orders?status=&limit=&offset=
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if validator.ValidateVar(status, "order_status") != nil {
		response.ValidationError(w, map[string]string{"status": "Invalid status. Must be: pending, processing, completed, or cancelled"})
		return
	}
	limit, offset := shop.PageParams(r)

	orders, err := h.service.ListOrders(r.Context(), shop.OrderStatus(status), limit, offset)
	if err != nil {
		shop.RespondError(w, r, err)
		return
	}
	response.Page(w, orders, limit, offset)
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid order ID")
		return uuid.Nil, false
	}
	return id, true
}

// ApproveOrder handles POST /orders/{id}/approve
func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.ApproveOrder(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		shop.RespondError(w, r, err)
		return
	}
	response.OK(w, o)
}

// CompleteOrder handles POST /orders/{id}/complete
func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.CompleteOrder(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		shop.RespondError(w, r, err)
		return
	}
	response.OK(w, o)
}

// CancelOrder handles POST /orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req CancelOrderRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	o, err := h.service.CancelOrder(r.Context(), middleware.GetUserID(r.Context()), id, req.Reason)
	if err != nil {
		shop.RespondError(w, r, err)
		return
	}
	response.OK(w, o)
}

// DeleteOrder handles DELETE /orders/{id}
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteOrder(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		shop.RespondError(w, r, err)
		return
	}
	response.NoContent(w)
}

// RefreshLeaderboard handles POST /leaderboard/{window}/refresh
func (h *Handler) RefreshLeaderboard(w http.ResponseWriter, r *http.Request) {
	window, err := ledger.ParseWindow(chi.URLParam(r, "window"))
	if err != nil {
		response.ValidationError(w, map[string]string{"window": "Invalid window. Must be: weekly, monthly, or all_time"})
		return
	}

	b, err := h.service.RefreshLeaderboard(r.Context(), middleware.GetUserID(r.Context()), window)
	if err != nil {
		ledger.RespondError(w, r, err)
		return
	}
	response.OK(w, b)
}

// ResetQuotas handles POST /quotas/reset
func (h *Handler) ResetQuotas(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ResetQuotas(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		ledger.RespondError(w, r, err)
		return
	}
	response.OK(w, report)
}

// Routes returns the admin router.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin())

	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Get("/balance", h.Balance)
		r.Post("/points/grant", h.GrantPoints)
		r.Post("/points/deduct", h.DeductPoints)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/{id}/approve", h.ApproveOrder)
		r.Post("/{id}/complete", h.CompleteOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Delete("/{id}", h.DeleteOrder)
	})

	r.Post("/leaderboard/{window}/refresh", h.RefreshLeaderboard)
	r.Post("/quotas/reset", h.ResetQuotas)

	return r
}
