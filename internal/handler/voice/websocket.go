package voice

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/model/chat"
	voicemodel "github.com/astrovoice/kundli/backend/internal/model/voice"
	"github.com/astrovoice/kundli/backend/internal/service/billing"
	chatservice "github.com/astrovoice/kundli/backend/internal/service/chat"
	walletservice "github.com/astrovoice/kundli/backend/internal/service/wallet"
)

const readDeadline = 60 * time.Second

// WebSocketHandler runs live voice consultations: one socket per session,
// with a per-second billing meter deducting the astrologer's rate each
// minute of connected time.
type WebSocketHandler struct {
	speechSvc   SpeechService
	guidanceSvc GuidanceService
	chatSvc     *chatservice.Service
	astrologers astrologer.Store
	wallets     walletservice.Store
	registry    *billing.Registry
	interval    int
	upgrader    websocket.Upgrader
}

func NewWebSocketHandler(
	speechSvc SpeechService,
	guidanceSvc GuidanceService,
	chatSvc *chatservice.Service,
	astrologers astrologer.Store,
	wallets walletservice.Store,
	registry *billing.Registry,
	deductionInterval int,
) *WebSocketHandler {
	return &WebSocketHandler{
		speechSvc:   speechSvc,
		guidanceSvc: guidanceSvc,
		chatSvc:     chatSvc,
		astrologers: astrologers,
		wallets:     wallets,
		registry:    registry,
		interval:    deductionInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws/{sessionID}", h.handleWebSocket)
}

// wsConn serializes frame writes; the meter hooks write from their own
// goroutine.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg voicemodel.ServerMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

type connectionState struct {
	session chat.Session
	astro   astrologer.Astrologer
	meter   *billing.Meter
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	astro, ok := h.astrologers.FindByID(session.AstrologerID)
	if !ok {
		http.Error(w, "astrologer not found", http.StatusBadRequest)
		return
	}

	wlt, err := h.wallets.Get(r.Context(), session.UserID)
	if err != nil {
		http.Error(w, "wallet unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection session=%s astrologer=%s balance=%.2f", sessionID, astro.ID, wlt.Balance)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	wc := &wsConn{conn: conn}
	state := &connectionState{session: session, astro: astro}

	state.meter = billing.NewMeter(wlt.Balance, astro.RatePerMinute, h.interval, billing.Hooks{
		OnDeduct: func(amount, remaining float64, elapsed int64) {
			h.settleDeduction(session, amount)
			wc.send(voicemodel.ServerMessage{
				Type:    voicemodel.TypeBalanceUpdate,
				Balance: remaining,
				Elapsed: elapsed,
			})
		},
		OnPaused: func() {
			log.Printf("[websocket] session paused on empty balance session=%s", sessionID)
			wc.send(voicemodel.ServerMessage{
				Type:   voicemodel.TypeSessionPaused,
				Reason: voicemodel.PauseReasonBalance,
			})
		},
	})

	h.registry.Register(sessionID, session.UserID, state.meter)
	defer func() {
		h.registry.Unregister(sessionID)
		snap := state.meter.End()
		log.Printf("[websocket] connection closed session=%s elapsed=%ds balance=%.2f", sessionID, snap.Elapsed, snap.Balance)
	}()

	go state.meter.Run(ctx)

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	go h.pingLoop(ctx, wc)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error session=%s: %v", sessionID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg voicemodel.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[websocket] dropping malformed frame session=%s: %v", sessionID, err)
			continue
		}

		h.handleMessage(ctx, wc, state, msg)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, wc *wsConn, state *connectionState, msg voicemodel.ClientMessage) {
	switch msg.Type {
	case voicemodel.TypeAudio:
		h.handleAudio(ctx, wc, state, msg)
	case voicemodel.TypeText:
		h.handleText(ctx, wc, state, msg)
	case voicemodel.TypeConfig:
		h.handleConfig(wc, state, msg)
	case voicemodel.TypePing:
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypePong})
	default:
		wc.send(voicemodel.ServerMessage{
			Type:  voicemodel.TypeError,
			Error: "unsupported message type: " + msg.Type,
		})
	}
}

func (h *WebSocketHandler) handleAudio(ctx context.Context, wc *wsConn, state *connectionState, msg voicemodel.ClientMessage) {
	if h.rejectWhilePaused(wc, state) {
		return
	}
	if h.speechSvc == nil {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "speech service unavailable"})
		return
	}

	audioBytes, err := voicemodel.DecodeAudio(msg.Audio)
	if err != nil {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "audio is not valid base64"})
		return
	}

	transcript, err := h.speechSvc.Transcribe(ctx, state.session.ID, audioBytes, "m4a")
	if err != nil {
		log.Printf("[websocket] ASR failed session=%s: %v", state.session.ID, err)
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "speech recognition failed"})
		return
	}
	if transcript == "" {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "no speech detected"})
		return
	}

	h.processUserText(ctx, wc, state, transcript, true)
}

func (h *WebSocketHandler) handleText(ctx context.Context, wc *wsConn, state *connectionState, msg voicemodel.ClientMessage) {
	if h.rejectWhilePaused(wc, state) {
		return
	}
	if msg.Text == "" {
		return
	}
	h.processUserText(ctx, wc, state, msg.Text, false)
}

// rejectWhilePaused blocks billable traffic on a paused session. Only a
// wallet recharge resumes the meter.
func (h *WebSocketHandler) rejectWhilePaused(wc *wsConn, state *connectionState) bool {
	if !state.meter.Snapshot().Paused {
		return false
	}
	wc.send(voicemodel.ServerMessage{
		Type:  voicemodel.TypeError,
		Error: "session paused: recharge to continue",
	})
	return true
}

func (h *WebSocketHandler) processUserText(ctx context.Context, wc *wsConn, state *connectionState, userText string, wantAudio bool) {
	history, err := h.chatSvc.LoadTranscript(ctx, state.session.ID)
	if err != nil {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: err.Error()})
		return
	}

	userMsg := chat.Message{SessionID: state.session.ID, Sender: chat.SenderUser, Content: userText}
	if err := h.chatSvc.SaveMessage(ctx, userMsg); err != nil {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: err.Error()})
		return
	}

	if h.guidanceSvc == nil {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "guidance service unavailable"})
		return
	}

	responseText, err := h.guidanceSvc.GenerateResponse(ctx, state.session.ID, &state.astro, history, userText)
	if err != nil {
		log.Printf("[websocket] guidance failed session=%s: %v", state.session.ID, err)
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "reply generation failed"})
		return
	}

	reply := chat.Message{SessionID: state.session.ID, Sender: chat.SenderAstrologer, Content: responseText}
	if err := h.chatSvc.SaveMessage(ctx, reply); err != nil {
		log.Printf("[websocket] save reply failed session=%s: %v", state.session.ID, err)
	}

	wc.send(voicemodel.ServerMessage{
		Type: voicemodel.TypeTextResponse,
		Text: responseText,
	})

	if wantAudio && h.speechSvc != nil {
		audio, format, err := h.speechSvc.Synthesize(ctx, state.session.ID, responseText)
		if err != nil {
			log.Printf("[websocket] TTS failed session=%s: %v", state.session.ID, err)
			return
		}
		wc.send(voicemodel.ServerMessage{
			Type:   voicemodel.TypeAudioResponse,
			Audio:  voicemodel.EncodeAudio(audio),
			Format: format,
		})
	}
}

func (h *WebSocketHandler) handleConfig(wc *wsConn, state *connectionState, msg voicemodel.ClientMessage) {
	if msg.AstrologerID == "" || msg.AstrologerID == state.astro.ID {
		return
	}
	astro, ok := h.astrologers.FindByID(msg.AstrologerID)
	if !ok {
		wc.send(voicemodel.ServerMessage{Type: voicemodel.TypeError, Error: "astrologer not found"})
		return
	}
	state.astro = astro
	// The next deduction boundary charges the new astrologer's rate.
	state.meter.SetRate(astro.RatePerMinute)
	log.Printf("[websocket] astrologer switched session=%s astrologer=%s rate=%.2f", state.session.ID, astro.ID, astro.RatePerMinute)
}

// settleDeduction records a meter charge against the durable wallet. The
// socket context may already be tearing down when the last charge lands,
// so the write gets its own deadline.
func (h *WebSocketHandler) settleDeduction(session chat.Session, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, _, err := h.wallets.Debit(ctx, session.UserID, amount, session.ID); err != nil {
		log.Printf("[websocket] wallet debit failed session=%s amount=%.2f: %v", session.ID, amount, err)
	}
}

func (h *WebSocketHandler) pingLoop(ctx context.Context, wc *wsConn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wc.mu.Lock()
			err := wc.conn.WriteMessage(websocket.PingMessage, nil)
			wc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
