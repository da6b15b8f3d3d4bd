package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/astrovoice/kundli/backend/internal/model/astrologer"
	"github.com/astrovoice/kundli/backend/internal/model/chat"
	voicemodel "github.com/astrovoice/kundli/backend/internal/model/voice"
	chatservice "github.com/astrovoice/kundli/backend/internal/service/chat"
)

type fakeSpeechService struct {
	transcript string
	ttsAudio   []byte
	failASR    bool
}

func (f *fakeSpeechService) Transcribe(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	if f.failASR {
		return "", errors.New("asr down")
	}
	return f.transcript, nil
}

func (f *fakeSpeechService) Synthesize(_ context.Context, _, _ string) ([]byte, string, error) {
	return f.ttsAudio, "mp3", nil
}

type fakeGuidanceService struct {
	reply    string
	lastUser string
}

func (f *fakeGuidanceService) GenerateResponse(_ context.Context, _ string, _ *astrologer.Astrologer, _ []chat.Message, userText string) (string, error) {
	f.lastUser = userText
	return f.reply, nil
}

type fixture struct {
	router  *chi.Mux
	chatSvc *chatservice.Service
	session chat.Session
}

func setup(t *testing.T, speech SpeechService, guidance GuidanceService) fixture {
	t.Helper()
	chatSvc := chatservice.NewService()
	store := astrologer.NewMemoryStore(astrologer.Seed())
	session, err := chatSvc.CreateSession(context.Background(), "user-1", store.List()[0].ID)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	r := chi.NewRouter()
	New(speech, guidance, chatSvc, store).RegisterRoutes(r)
	return fixture{router: r, chatSvc: chatSvc, session: session}
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestProcessAudioFullPipeline(t *testing.T) {
	speech := &fakeSpeechService{transcript: "will I get the job", ttsAudio: []byte{7, 8, 9}}
	guidance := &fakeGuidanceService{reply: "Jupiter favors your tenth house this month."}
	f := setup(t, speech, guidance)

	resp := post(t, f.router, "/process-audio", map[string]string{
		"session_id": f.session.ID,
		"user_id":    "user-1",
		"audio":      voicemodel.EncodeAudio([]byte{1, 2, 3}),
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out struct {
		Transcript   string `json:"transcript"`
		ResponseText string `json:"response_text"`
		AudioBase64  string `json:"audio_base64"`
		Format       string `json:"format"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.Transcript != "will I get the job" {
		t.Fatalf("unexpected transcript: %q", out.Transcript)
	}
	if out.ResponseText != guidance.reply {
		t.Fatalf("unexpected reply: %q", out.ResponseText)
	}
	decoded, err := voicemodel.DecodeAudio(out.AudioBase64)
	if err != nil || !bytes.Equal(decoded, []byte{7, 8, 9}) {
		t.Fatalf("tts audio corrupted: %v %v", decoded, err)
	}
	if out.Format != "mp3" {
		t.Fatalf("unexpected format: %q", out.Format)
	}

	// Both turns must land in the transcript, user first.
	messages, err := f.chatSvc.LoadTranscript(context.Background(), f.session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript: %v", err)
	}
	if len(messages) != 2 || messages[0].Sender != chat.SenderUser || messages[1].Sender != chat.SenderAstrologer {
		t.Fatalf("unexpected transcript: %+v", messages)
	}
}

func TestProcessAudioRejectsBadBase64(t *testing.T) {
	f := setup(t, &fakeSpeechService{}, &fakeGuidanceService{})

	resp := post(t, f.router, "/process-audio", map[string]string{
		"session_id": f.session.ID,
		"audio":      "not base64!!!",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestProcessAudioUnknownSession(t *testing.T) {
	f := setup(t, &fakeSpeechService{transcript: "hi"}, &fakeGuidanceService{reply: "om"})

	resp := post(t, f.router, "/process-audio", map[string]string{
		"session_id": "missing",
		"audio":      voicemodel.EncodeAudio([]byte{1}),
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestProcessAudioWrongUser(t *testing.T) {
	f := setup(t, &fakeSpeechService{transcript: "hi"}, &fakeGuidanceService{reply: "om"})

	resp := post(t, f.router, "/process-audio", map[string]string{
		"session_id": f.session.ID,
		"user_id":    "someone-else",
		"audio":      voicemodel.EncodeAudio([]byte{1}),
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestProcessAudioASRFailure(t *testing.T) {
	f := setup(t, &fakeSpeechService{failASR: true}, &fakeGuidanceService{reply: "om"})

	resp := post(t, f.router, "/process-audio", map[string]string{
		"session_id": f.session.ID,
		"audio":      voicemodel.EncodeAudio([]byte{1}),
	})
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestProcessText(t *testing.T) {
	guidance := &fakeGuidanceService{reply: "Saturn's transit ends soon."}
	f := setup(t, nil, guidance)

	resp := post(t, f.router, "/process-text", map[string]string{
		"session_id": f.session.ID,
		"text":       "why is everything so hard lately",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if guidance.lastUser != "why is everything so hard lately" {
		t.Fatalf("guidance saw %q", guidance.lastUser)
	}

	var out struct {
		ResponseText string `json:"response_text"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.ResponseText != guidance.reply {
		t.Fatalf("unexpected reply: %q", out.ResponseText)
	}
}

func TestProcessTextRequiresText(t *testing.T) {
	f := setup(t, nil, &fakeGuidanceService{})

	resp := post(t, f.router, "/process-text", map[string]string{"session_id": f.session.ID})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHealth(t *testing.T) {
	f := setup(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	f.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
