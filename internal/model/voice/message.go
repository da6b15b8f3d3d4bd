package voice

import "encoding/base64"

// Client to server message types.
const (
	TypeAudio  = "audio"
	TypeText   = "text"
	TypeConfig = "config"
	TypePing   = "ping"
)

// Server to client message types.
const (
	TypeAudioResponse = "audio_response"
	TypeTextResponse  = "text_response"
	TypeBalanceUpdate = "balance_update"
	TypeSessionPaused = "session_paused"
	TypeError         = "error"
	TypePong          = "pong"
)

// PauseReasonBalance is the reason attached to session_paused frames
// when the wallet reaches zero.
const PauseReasonBalance = "balance_exhausted"

// ClientMessage is the tagged frame a client sends over the realtime channel.
// Audio payloads travel base64 encoded inside the JSON frame.
type ClientMessage struct {
	Type         string `json:"type"`
	Audio        string `json:"audio,omitempty"`
	Text         string `json:"text,omitempty"`
	AstrologerID string `json:"astrologer_id,omitempty"`
}

// ServerMessage is the tagged frame the server pushes to a client.
type ServerMessage struct {
	Type    string  `json:"type"`
	Audio   string  `json:"audio,omitempty"`
	Format  string  `json:"format,omitempty"`
	Text    string  `json:"text,omitempty"`
	Error   string  `json:"error,omitempty"`
	Balance float64 `json:"balance,omitempty"`
	Elapsed int64   `json:"elapsed,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// AudioRecording describes a finished capture. It is owned by the component
// that created it until handed to the transport client, read-only afterwards.
type AudioRecording struct {
	Path       string `json:"path"`
	DurationMs int64  `json:"durationMs"`
	SizeBytes  int64  `json:"sizeBytes"`
}

// EncodeAudio converts raw audio bytes to the transportable base64 form.
func EncodeAudio(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeAudio reverses EncodeAudio exactly.
func DecodeAudio(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}
