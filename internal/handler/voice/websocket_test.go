package voice

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	voicemodel "github.com/astrovoice/kundli/backend/internal/model/voice"
	"github.com/astrovoice/kundli/backend/internal/service/billing"
	chatservice "github.com/astrovoice/kundli/backend/internal/service/chat"
	walletservice "github.com/astrovoice/kundli/backend/internal/service/wallet"
)

type wsFixture struct {
	srv      *httptest.Server
	chatSvc  *chatservice.Service
	wallets  *walletservice.MemoryStore
	registry *billing.Registry
	session  string
	userID   string
}

// newWSFixture stands up the websocket endpoint with fake speech/guidance
// services, one session, and a one-second deduction interval so billing
// behavior is observable within test time.
func newWSFixture(t *testing.T, signupBalance float64) wsFixture {
	t.Helper()

	chatSvc := chatservice.NewService()
	store := astrologer.NewMemoryStore(astrologer.Seed())
	wallets := walletservice.NewMemoryStore(signupBalance)
	registry := billing.NewRegistry()

	session, err := chatSvc.CreateSession(context.Background(), "user-1", store.List()[0].ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	speech := &fakeSpeechService{transcript: "what does my chart say", ttsAudio: []byte{4, 5, 6}}
	guidance := &fakeGuidanceService{reply: "Venus brings good news."}

	h := NewWebSocketHandler(speech, guidance, chatSvc, store, wallets, registry, 1)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return wsFixture{
		srv:      srv,
		chatSvc:  chatSvc,
		wallets:  wallets,
		registry: registry,
		session:  session.ID,
		userID:   "user-1",
	}
}

func (f wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/voice/ws/" + f.session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil collects frames until one matches the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) voicemodel.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg voicemodel.ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s frame: %v", wantType, err)
		}
		if msg.Type == wantType {
			return msg
		}
	}
}

func TestWebSocketTextTurn(t *testing.T) {
	f := newWSFixture(t, 500)
	conn := f.dial(t)

	if err := conn.WriteJSON(voicemodel.ClientMessage{Type: voicemodel.TypeText, Text: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readUntil(t, conn, voicemodel.TypeTextResponse)
	if msg.Text != "Venus brings good news." {
		t.Fatalf("unexpected reply: %q", msg.Text)
	}

	messages, err := f.chatSvc.LoadTranscript(context.Background(), f.session)
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 transcript entries, got %d", len(messages))
	}
}

func TestWebSocketAudioTurnReturnsSpeech(t *testing.T) {
	f := newWSFixture(t, 500)
	conn := f.dial(t)

	frame := voicemodel.ClientMessage{
		Type:  voicemodel.TypeAudio,
		Audio: voicemodel.EncodeAudio([]byte{1, 2, 3}),
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	text := readUntil(t, conn, voicemodel.TypeTextResponse)
	if text.Text == "" {
		t.Fatal("empty text response")
	}

	audioMsg := readUntil(t, conn, voicemodel.TypeAudioResponse)
	decoded, err := voicemodel.DecodeAudio(audioMsg.Audio)
	if err != nil || !bytes.Equal(decoded, []byte{4, 5, 6}) {
		t.Fatalf("tts audio corrupted: %v %v", decoded, err)
	}
	if audioMsg.Format != "mp3" {
		t.Fatalf("unexpected format: %q", audioMsg.Format)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	f := newWSFixture(t, 500)
	conn := f.dial(t)

	if err := conn.WriteJSON(voicemodel.ClientMessage{Type: voicemodel.TypePing}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, voicemodel.TypePong)
}

func TestWebSocketUnknownSessionRejected(t *testing.T) {
	f := newWSFixture(t, 500)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/voice/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial to unknown session must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake rejection, got %+v", resp)
	}
}

func TestWebSocketDeductionReachesWalletAndClient(t *testing.T) {
	f := newWSFixture(t, 500)
	conn := f.dial(t)

	// Interval is one second; the first boundary charges one minute's rate.
	update := readUntil(t, conn, voicemodel.TypeBalanceUpdate)
	rate := astrologer.Seed()[0].RatePerMinute
	if update.Balance != 500-rate {
		t.Fatalf("expected balance %v, got %v", 500-rate, update.Balance)
	}

	// Another tick may land between frame and check; the wallet must hold
	// the starting balance minus a whole number of per-minute charges.
	wlt, err := f.wallets.Get(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("wallet get: %v", err)
	}
	taken := 500 - wlt.Balance
	if taken < rate {
		t.Fatalf("wallet not debited: %v", wlt.Balance)
	}
	if remainder := int64(taken) % int64(rate); remainder != 0 {
		t.Fatalf("wallet debited odd amount %v (balance %v)", taken, wlt.Balance)
	}
}

func TestWebSocketPausesOnEmptyBalanceAndRejectsTraffic(t *testing.T) {
	f := newWSFixture(t, 0)
	conn := f.dial(t)

	paused := readUntil(t, conn, voicemodel.TypeSessionPaused)
	if paused.Reason != voicemodel.PauseReasonBalance {
		t.Fatalf("unexpected pause reason: %q", paused.Reason)
	}

	if err := conn.WriteJSON(voicemodel.ClientMessage{Type: voicemodel.TypeText, Text: "hello?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	errMsg := readUntil(t, conn, voicemodel.TypeError)
	if !strings.Contains(errMsg.Error, "paused") {
		t.Fatalf("expected paused rejection, got %q", errMsg.Error)
	}

	// A recharge through the registry resumes the session.
	if resumed := f.registry.RechargeUser(f.userID, 200); resumed != 1 {
		t.Fatalf("expected 1 resumed meter, got %d", resumed)
	}
	if err := conn.WriteJSON(voicemodel.ClientMessage{Type: voicemodel.TypeText, Text: "back again"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, voicemodel.TypeTextResponse)
}

func TestWebSocketConfigSwitchesAstrologer(t *testing.T) {
	seeds := astrologer.Seed()
	store := astrologer.NewMemoryStore(seeds)
	h := &WebSocketHandler{astrologers: store}
	state := &connectionState{
		astro: seeds[0],
		meter: billing.NewMeter(100, seeds[0].RatePerMinute, 60, billing.Hooks{}),
	}

	h.handleConfig(nil, state, voicemodel.ClientMessage{
		Type:         voicemodel.TypeConfig,
		AstrologerID: seeds[1].ID,
	})

	if state.astro.ID != seeds[1].ID {
		t.Fatalf("astrologer not switched, still %s", state.astro.ID)
	}

	// The next minute bills at the new astrologer's rate.
	var snap billing.Snapshot
	for i := 0; i < 60; i++ {
		snap = state.meter.Tick()
	}
	if want := 100 - seeds[1].RatePerMinute; snap.Balance != want {
		t.Fatalf("expected balance %v at new rate, got %v", want, snap.Balance)
	}
}
