package shop

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/middleware"
	"github.com/cheers/cheers-api/internal/pkg/response"
	"github.com/cheers/cheers-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func actorFrom(r *http.Request) Actor {
	ctx := r.Context()
	return Actor{AccountID: middleware.GetUserID(ctx), Admin: middleware.IsAdmin(ctx)}
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(r *http.Request, v interface{}) error {
	err := response.DecodeJSON(r.Body, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Cart handles GET /shop/cart
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	response.OK(w, items)
}

// AddToCart handles POST /shop/cart
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req LineItem
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	item, err := h.svc.AddToCart(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	response.Created(w, item)
}

// RemoveFromCart handles DELETE /shop/cart/{id}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cart item ID")
		return
	}

	if err := h.svc.RemoveFromCart(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		RespondError(w, r, err)
		return
	}
	response.NoContent(w)
}

// Checkout handles POST /shop/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	buyer := middleware.GetUserID(r.Context())
	var (
		order *Order
		err   error
	)
	if len(req.Items) == 0 {
		order, err = h.svc.CheckoutCart(r.Context(), buyer)
	} else {
		order, err = h.svc.Checkout(r.Context(), buyer, req.Items)
	}
	if err != nil {
		RespondError(w, r, err)
		return
	}
	response.Created(w, order)
}

// ListOrders handles GET /shop/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := PageParams(r)
	orders, err := h.svc.ListOrders(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	response.Page(w, orders, limit, offset)
}

// GetOrder handles GET /shop/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid order ID")
		return
	}

	order, err := h.svc.GetOrder(r.Context(), id, actorFrom(r))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	response.OK(w, order)
}

// CancelOrder handles POST /shop/orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid order ID")
		return
	}

	var req CancelRequest
	if err := decodeOptional(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	order, err := h.svc.Cancel(r.Context(), id, actorFrom(r), req.Reason)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	response.OK(w, order)
}

// RespondError maps shop errors, deferring to the ledger mapping for the rest.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		response.NotFound(w, "Order not found")
	case errors.Is(err, ErrCartItemNotFound):
		response.NotFound(w, "Cart item not found")
	case errors.Is(err, ErrInvalidOrderTransition):
		response.Conflict(w, "INVALID_ORDER_TRANSITION", err.Error(), nil)
	case errors.Is(err, ErrOrderNotTerminal):
		response.Conflict(w, "ORDER_NOT_TERMINAL", "Only completed or cancelled orders can be deleted", nil)
	case errors.Is(err, ErrEmptyCart):
		response.ValidationError(w, map[string]string{"items": "Cart is empty"})
	case errors.Is(err, ErrInvalidQuantity):
		response.ValidationError(w, map[string]string{"quantity": "Quantity must be between 1 and 99"})
	case errors.Is(err, ErrProductUnavailable):
		response.ErrorWithDetails(w, http.StatusUnprocessableEntity, "PRODUCT_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, ErrTotalOverflow):
		response.ValidationError(w, map[string]string{"items": "Order total is too large"})
	case errors.Is(err, ErrInvalidStatus):
		response.ValidationError(w, map[string]string{"status": "Invalid order status"})
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "Not allowed to act on this order")
	default:
		ledger.RespondError(w, r, err)
	}
}

// PageParams reads limit and offset leniently; the service applies bounds.
func PageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	q := OrderQuery{Limit: limit, Offset: offset}.Normalize()
	return q.Limit, q.Offset
}

// Routes mounts the member-facing shop endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/cart", h.Cart)
	r.Post("/cart", h.AddToCart)
	r.Delete("/cart/{id}", h.RemoveFromCart)
	r.Post("/checkout", h.Checkout)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/{id}", h.GetOrder)
	r.Post("/orders/{id}/cancel", h.CancelOrder)

	return r
}
