package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/model/chat"
	chatservice "github.com/astrovoice/kundli/backend/internal/service/chat"
	"github.com/astrovoice/kundli/backend/pkg/utils"
)

// Handler exposes consultation sessions and transcripts over HTTP.
type Handler struct {
	chatSvc     *chatservice.Service
	astrologers astrologer.Store
}

func New(chatSvc *chatservice.Service, astrologers astrologer.Store) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		astrologers: astrologers,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Get("/session/{sessionID}/messages", h.handleTranscript)
	r.Delete("/session/{sessionID}", h.handleEndSession)
	r.Post("/messages", h.handleSaveMessage)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID       string `json:"userId"`
		AstrologerID string `json:"astrologerId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.AstrologerID == "" {
		utils.RespondError(w, http.StatusBadRequest, "astrologerId is required")
		return
	}
	if payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if _, ok := h.astrologers.FindByID(payload.AstrologerID); !ok {
		utils.RespondError(w, http.StatusBadRequest, "astrologer not found")
		return
	}

	session, err := h.chatSvc.CreateSession(r.Context(), payload.UserID, payload.AstrologerID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

// handleEndSession tears the consultation down. Ending twice is a 404: the
// transition is one-way and the session is gone.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.chatSvc.EndSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
		Sender    string `json:"sender"`
		Content   string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Sender != chat.SenderUser && payload.Sender != chat.SenderAstrologer {
		utils.RespondError(w, http.StatusBadRequest, "sender must be user or astrologer")
		return
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	message := chat.Message{
		SessionID: payload.SessionID,
		Sender:    payload.Sender,
		Content:   payload.Content,
	}

	if err := h.chatSvc.SaveMessage(r.Context(), message); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "saved"})
}
