package astrologer

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/pkg/utils"
)

// Handler serves the astrologer catalogue.
type Handler struct {
	astrologers astrologer.Store
}

func New(astrologers astrologer.Store) *Handler {
	return &Handler{astrologers: astrologers}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/astrologers", h.handleListAstrologers)
	r.Get("/astrologers/{astrologerID}", h.handleGetAstrologer)
}

func (h *Handler) handleListAstrologers(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.astrologers.List())
}

func (h *Handler) handleGetAstrologer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "astrologerID")
	astro, ok := h.astrologers.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "astrologer not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, astro)
}
