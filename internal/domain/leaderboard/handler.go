package leaderboard

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

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

// ParseWindowParam reads ?window=, defaulting to weekly.
func ParseWindowParam(r *http.Request) (ledger.Window, bool) {
	v := r.URL.Query().Get("window")
	if v == "" {
		return ledger.WindowWeekly, true
	}
	if validator.ValidateVar(v, "window") != nil {
		return "", false
	}
	return ledger.Window(v), true
}

func invalidWindow(w http.ResponseWriter) {
	response.ValidationError(w, map[string]string{"window": "Invalid window. Must be: weekly, monthly, or all_time"})
}

// Get handles GET /leaderboard?window=&limit=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	window, ok := ParseWindowParam(r)
	if !ok {
		invalidWindow(w)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	board, err := h.svc.Rank(r.Context(), window, limit)
	if err != nil {
		ledger.RespondError(w, r, err)
		return
	}
	response.OK(w, board)
}

// Me handles GET /leaderboard/me?window=
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	window, ok := ParseWindowParam(r)
	if !ok {
		invalidWindow(w)
		return
	}

	standing, err := h.svc.RankOf(r.Context(), middleware.GetUserID(r.Context()), window)
	if err != nil {
		ledger.RespondError(w, r, err)
		return
	}
	response.OK(w, standing)
}

// Routes mounts the leaderboard endpoints.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.Get)
	r.Get("/me", h.Me)
	return r
}
