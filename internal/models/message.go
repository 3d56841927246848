package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Message is a persisted chat message. It always belongs to exactly one thread.
type Message struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	ThreadID    string        `gorm:"index:idx_thread_msg;not null" json:"thread_id"`
	SenderID    string        `gorm:"index;not null" json:"sender_id"`
	RecipientID string        `gorm:"index;not null" json:"recipient_id"`
	Content     string        `gorm:"type:text;not null" json:"content"`
	Status      MessageStatus `gorm:"type:text;not null" json:"status"`
	// Flags are non-blocking safety signals detected in Content.
	Flags     pq.StringArray `gorm:"type:text[]" json:"flags,omitempty"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `gorm:"index:idx_thread_msg" json:"created_at"`
}

// BeforeCreate generates a UUID for the message if none is set.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Flagged reports whether the safety scan recorded any flag.
func (m *Message) Flagged() bool {
	return len(m.Flags) > 0
}
