package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/model/chat"
	chatservice "github.com/astrovoice/kundli/backend/internal/service/chat"
	"github.com/astrovoice/kundli/backend/internal/service/guidance"
	"github.com/astrovoice/kundli/backend/pkg/utils"
)

// Handler streams astrologer replies over Server-Sent Events, for web
// clients that want token-by-token rendering instead of the websocket.
type Handler struct {
	guidanceSvc *guidance.Service
	chatSvc     *chatservice.Service
	astrologers astrologer.Store
}

func New(guidanceSvc *guidance.Service, chatSvc *chatservice.Service, astrologers astrologer.Store) *Handler {
	return &Handler{
		guidanceSvc: guidanceSvc,
		chatSvc:     chatSvc,
		astrologers: astrologers,
	}
}

// StreamResponse is one SSE chunk.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest runs one streamed consultation turn for sessionID.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, err := h.chatSvc.GetSession(ctx, sessionID)
	if err != nil {
		h.sendError(w, flusher, err.Error())
		return err
	}
	astro, found := h.astrologers.FindByID(session.AstrologerID)
	if !found {
		err := fmt.Errorf("astrologer %s not found", session.AstrologerID)
		h.sendError(w, flusher, err.Error())
		return err
	}

	history, err := h.chatSvc.LoadTranscript(ctx, sessionID)
	if err != nil {
		h.sendError(w, flusher, err.Error())
		return err
	}

	userMsg := chat.Message{SessionID: sessionID, Sender: chat.SenderUser, Content: userMessage}
	if err := h.chatSvc.SaveMessage(ctx, userMsg); err != nil {
		log.Printf("[stream] save user message failed: %v", err)
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Content:   astro.Name,
	})

	stream, err := h.guidanceSvc.StreamResponse(ctx, &astro, history, userMessage)
	if err != nil {
		h.sendError(w, flusher, err.Error())
		return err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			h.sendError(w, flusher, fmt.Sprintf("stream recv failed: %v", recvErr))
			return recvErr
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "message",
			SessionID: sessionID,
			Content:   delta,
		})
	}

	reply := chat.Message{SessionID: sessionID, Sender: chat.SenderAstrologer, Content: full.String()}
	if err := h.chatSvc.SaveMessage(ctx, reply); err != nil {
		log.Printf("[stream] save reply failed: %v", err)
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed response session=%s astrologer=%s", sessionID, astro.ID)
	return nil
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, message string) {
	utils.SendSSEChunk(w, flusher, StreamResponse{Event: "error", Error: message})
}
