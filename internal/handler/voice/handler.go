package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/model/chat"
	voicemodel "github.com/astrovoice/kundli/backend/internal/model/voice"
	chatservice "github.com/astrovoice/kundli/backend/internal/service/chat"
	"github.com/astrovoice/kundli/backend/pkg/utils"
)

// SpeechService abstracts ASR/TTS so handlers can be tested without a real
// provider.
type SpeechService interface {
	Transcribe(ctx context.Context, sessionID string, audioData []byte, format string) (string, error)
	Synthesize(ctx context.Context, sessionID, text string) (audio []byte, format string, err error)
}

// GuidanceService abstracts reply generation.
type GuidanceService interface {
	GenerateResponse(ctx context.Context, sessionID string, astro *astrologer.Astrologer, history []chat.Message, userText string) (string, error)
}

// Handler serves the request/response voice pipeline: audio or text in,
// astrologer reply out.
type Handler struct {
	speechSvc   SpeechService
	guidanceSvc GuidanceService
	chatSvc     *chatservice.Service
	astrologers astrologer.Store
}

func New(speechSvc SpeechService, guidanceSvc GuidanceService, chatSvc *chatservice.Service, astrologers astrologer.Store) *Handler {
	return &Handler{
		speechSvc:   speechSvc,
		guidanceSvc: guidanceSvc,
		chatSvc:     chatSvc,
		astrologers: astrologers,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/process-audio", h.handleProcessAudio)
	r.Post("/process-text", h.handleProcessText)
	r.Get("/health", h.handleHealth)
}

type processRequest struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	AstrologerID string `json:"astrologer_id"`
	Audio        string `json:"audio,omitempty"`
	Format       string `json:"format,omitempty"`
	Text         string `json:"text,omitempty"`
}

type processResponse struct {
	Transcript   string `json:"transcript,omitempty"`
	ResponseText string `json:"response_text"`
	AudioBase64  string `json:"audio_base64,omitempty"`
	Format       string `json:"format,omitempty"`
}

func (h *Handler) handleProcessAudio(w http.ResponseWriter, r *http.Request) {
	if h.speechSvc == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech service unavailable")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Audio == "" {
		utils.RespondError(w, http.StatusBadRequest, "audio is required")
		return
	}

	astro, session, status, err := h.resolve(r.Context(), &req)
	if err != nil {
		utils.RespondError(w, status, err.Error())
		return
	}

	audioBytes, err := voicemodel.DecodeAudio(req.Audio)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio is not valid base64")
		return
	}

	format := req.Format
	if format == "" {
		format = "m4a"
	}

	transcript, err := h.speechSvc.Transcribe(r.Context(), session.ID, audioBytes, format)
	if err != nil {
		log.Printf("[voice] ASR error session=%s: %v", session.ID, err)
		utils.RespondError(w, http.StatusInternalServerError, "speech recognition failed")
		return
	}
	if strings.TrimSpace(transcript) == "" {
		utils.RespondError(w, http.StatusBadRequest, "no speech detected")
		return
	}

	responseText, err := h.respond(r.Context(), session.ID, astro, transcript)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := processResponse{Transcript: transcript, ResponseText: responseText}
	if audio, format, err := h.speechSvc.Synthesize(r.Context(), session.ID, responseText); err != nil {
		log.Printf("[voice] TTS error session=%s: %v", session.ID, err)
	} else {
		resp.AudioBase64 = voicemodel.EncodeAudio(audio)
		resp.Format = format
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleProcessText(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	astro, session, status, err := h.resolve(r.Context(), &req)
	if err != nil {
		utils.RespondError(w, status, err.Error())
		return
	}

	responseText, err := h.respond(r.Context(), session.ID, astro, req.Text)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, processResponse{ResponseText: responseText})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "voice",
	})
}

// resolve loads the session and its astrologer, validating the ids the
// client supplied against what the session was created with.
func (h *Handler) resolve(ctx context.Context, req *processRequest) (*astrologer.Astrologer, *chat.Session, int, error) {
	if req.SessionID == "" {
		return nil, nil, http.StatusBadRequest, errors.New("session_id is required")
	}

	session, err := h.chatSvc.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, nil, http.StatusNotFound, err
	}
	if req.UserID != "" && req.UserID != session.UserID {
		return nil, nil, http.StatusForbidden, errors.New("session belongs to another user")
	}

	astrologerID := session.AstrologerID
	if req.AstrologerID != "" {
		astrologerID = req.AstrologerID
	}
	astro, ok := h.astrologers.FindByID(astrologerID)
	if !ok {
		return nil, nil, http.StatusBadRequest, errors.New("astrologer not found")
	}

	return &astro, &session, http.StatusOK, nil
}

// respond runs one consultation turn: persist the user message, generate
// the astrologer's reply, persist it, and return it.
func (h *Handler) respond(ctx context.Context, sessionID string, astro *astrologer.Astrologer, userText string) (string, error) {
	history, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		return "", err
	}

	userMsg := chat.Message{SessionID: sessionID, Sender: chat.SenderUser, Content: userText}
	if err := h.chatSvc.SaveMessage(ctx, userMsg); err != nil {
		return "", err
	}

	if h.guidanceSvc == nil {
		return "", errors.New("guidance service unavailable")
	}

	responseText, err := h.guidanceSvc.GenerateResponse(ctx, sessionID, astro, history, userText)
	if err != nil {
		log.Printf("[voice] guidance error session=%s: %v", sessionID, err)
		return "", errors.New("reply generation failed")
	}

	reply := chat.Message{SessionID: sessionID, Sender: chat.SenderAstrologer, Content: responseText}
	if err := h.chatSvc.SaveMessage(ctx, reply); err != nil {
		log.Printf("[voice] save reply failed session=%s: %v", sessionID, err)
	}

	return responseText, nil
}
