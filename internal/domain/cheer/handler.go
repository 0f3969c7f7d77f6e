package cheer

import (
	"errors"
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

// Recognize handles POST /cheers
func (h *Handler) Recognize(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())

	var req RecognizeRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.svc.Recognize(r.Context(), RecognizeInput{
		From:    accountID,
		To:      req.ToAccount,
		Points:  req.Points,
		Message: req.Message,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response.Created(w, result)
}

// Feed handles GET /cheers?window=&limit=&offset=
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	window := ledger.WindowAllTime
	if v := r.URL.Query().Get("window"); v != "" {
		parsed, err := ledger.ParseWindow(v)
		if err != nil {
			response.ValidationError(w, map[string]string{"window": "Invalid window. Must be: weekly, monthly, or all_time"})
			return
		}
		window = parsed
	}

	limit, offset := pageParams(r)
	views, err := h.svc.GetFeed(r.Context(), middleware.GetUserID(r.Context()), window, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.Page(w, views, limit, offset)
}

// Received handles GET /cheers/received/{account}
func (h *Handler) Received(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	views, err := h.svc.GetReceived(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "account"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.Page(w, views, limit, offset)
}

// Given handles GET /cheers/given/{account}
func (h *Handler) Given(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	views, err := h.svc.GetGiven(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "account"), limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.Page(w, views, limit, offset)
}

// Get handles GET /cheers/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cheer ID")
		return
	}

	view, err := h.svc.GetCheer(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, view)
}

// ListComments handles GET /cheers/{id}/comments
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cheer ID")
		return
	}

	limit, offset := pageParams(r)
	comments, err := h.svc.ListComments(r.Context(), id, limit, offset)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.Page(w, comments, limit, offset)
}

// AddComment handles POST /cheers/{id}/comments
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cheer ID")
		return
	}

	var req CommentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	comment, err := h.svc.AddComment(r.Context(), id, middleware.GetUserID(r.Context()), req.Text)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.Created(w, comment)
}

// EditComment handles PATCH /comments/{id}
func (h *Handler) EditComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid comment ID")
		return
	}

	var req CommentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	comment, err := h.svc.EditComment(r.Context(), id, middleware.GetUserID(r.Context()), req.Text)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, comment)
}

// DeleteComment handles DELETE /comments/{id}
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid comment ID")
		return
	}

	ctx := r.Context()
	if err := h.svc.DeleteComment(ctx, id, middleware.GetUserID(ctx), middleware.IsAdmin(ctx)); err != nil {
		h.respondError(w, r, err)
		return
	}
	response.NoContent(w)
}

// ToggleLike handles POST /cheers/{id}/like
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid cheer ID")
		return
	}

	res, err := h.svc.ToggleLike(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	response.OK(w, NewLikeResponse(res))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSelfRecognition):
		response.Conflict(w, "SELF_RECOGNITION", "You cannot recognize yourself", nil)
	case errors.Is(err, ErrAmountAboveLimit):
		response.ValidationError(w, map[string]string{
			"points": "Value must be at most " + strconv.FormatInt(h.svc.maxPoints, 10),
		})
	case errors.Is(err, ErrMessageTooLong):
		response.ValidationError(w, map[string]string{"message": "Value is too long (max: 1000)"})
	case errors.Is(err, ErrEmptyComment):
		response.ValidationError(w, map[string]string{"text": "This field is required"})
	case errors.Is(err, ErrCommentTooLong):
		response.ValidationError(w, map[string]string{"text": "Value is too long (max: 1000)"})
	case errors.Is(err, ErrCheerNotFound):
		response.NotFound(w, "Cheer not found")
	case errors.Is(err, ErrCommentNotFound):
		response.NotFound(w, "Comment not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "You can only modify your own comments")
	default:
		ledger.RespondError(w, r, err)
	}
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return normalizePage(limit, offset)
}

// Routes mounts the cheer endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Recognize)
	r.Get("/", h.Feed)
	r.Get("/received/{account}", h.Received)
	r.Get("/given/{account}", h.Given)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/comments", h.ListComments)
	r.Post("/{id}/comments", h.AddComment)
	r.Post("/{id}/like", h.ToggleLike)

	return r
}

// CommentRoutes mounts comment edit and delete.
func (h *Handler) CommentRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Patch("/{id}", h.EditComment)
	r.Delete("/{id}", h.DeleteComment)

	return r
}
