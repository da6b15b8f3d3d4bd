package chat

import "time"

// Session captures one consultation between a user and an astrologer,
// bounded by creation and an explicit end.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	AstrologerID string    `json:"astrologerId"`
	CreatedAt    time.Time `json:"createdAt"`
}
