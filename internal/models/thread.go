package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Thread is the conversation container between exactly two participants,
// optionally scoped to a housing listing. There is at most one thread per
// (pair, context).
type Thread struct {
	ID string `gorm:"primaryKey" json:"id"`
	// PairKey and ContextID together are unique.
	PairKey   string `gorm:"uniqueIndex:idx_thread_pair_ctx;not null" json:"-"`
	ContextID string `gorm:"uniqueIndex:idx_thread_pair_ctx" json:"context_id,omitempty"`

	Participant1ID string `gorm:"index;not null" json:"participant1_id"`
	Participant2ID string `gorm:"index;not null" json:"participant2_id"`

	LastMessageID string     `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`

	// Unread counters per participant, see Unread.
	Unread1 int `json:"-"`
	Unread2 int `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the thread if none is set.
func (t *Thread) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return
}

// NewThread builds a thread between a and b with participants in canonical order.
func NewThread(a, b, contextID string) *Thread {
	key, first, second := PairKey(a, b)
	return &Thread{
		PairKey:        key,
		ContextID:      contextID,
		Participant1ID: first,
		Participant2ID: second,
	}
}

// HasParticipant reports whether identity is one of the two participants.
func (t *Thread) HasParticipant(identity string) bool {
	return t.Participant1ID == identity || t.Participant2ID == identity
}

// Other returns the counterpart of identity.
func (t *Thread) Other(identity string) string {
	if t.Participant1ID == identity {
		return t.Participant2ID
	}
	return t.Participant1ID
}

// Unread returns the unread counters keyed by participant identity.
func (t *Thread) Unread() map[string]int {
	return map[string]int{
		t.Participant1ID: t.Unread1,
		t.Participant2ID: t.Unread2,
	}
}

// UnreadFor returns the unread counter of identity.
func (t *Thread) UnreadFor(identity string) int {
	return t.Unread()[identity]
}

// IncrementUnread bumps the counter of identity by one.
func (t *Thread) IncrementUnread(identity string) {
	switch identity {
	case t.Participant1ID:
		t.Unread1++
	case t.Participant2ID:
		t.Unread2++
	}
}

// ResetUnread clears the counter of identity.
func (t *Thread) ResetUnread(identity string) {
	switch identity {
	case t.Participant1ID:
		t.Unread1 = 0
	case t.Participant2ID:
		t.Unread2 = 0
	}
}

// UnreadColumn returns the column holding identity's counter.
func (t *Thread) UnreadColumn(identity string) string {
	if t.Participant1ID == identity {
		return "unread1"
	}
	return "unread2"
}
