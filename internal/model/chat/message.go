package chat

import "time"

// Sender values recorded on messages.
const (
	SenderUser       = "user"
	SenderAstrologer = "astrologer"
)

// Message persists individual turns of a consultation. Messages are
// append-only and never mutated after creation.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
