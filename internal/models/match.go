package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchDeclined  MatchStatus = "declined"
	MatchCancelled MatchStatus = "cancelled"
)

// Terminal reports whether no interest, confirm or decline may follow.
func (s MatchStatus) Terminal() bool {
	return s == MatchConfirmed || s == MatchDeclined
}

// MatchRecord is the relationship state between an unordered pair of
// identities. PairKey is the canonical (sorted) pair and is unique, so there is
// exactly one record per pair.
type MatchRecord struct {
	ID      string      `gorm:"primaryKey" json:"id"`
	PairKey string      `gorm:"uniqueIndex;not null" json:"-"`
	UserAID string      `gorm:"index;not null" json:"user_a_id"`
	UserBID string      `gorm:"index;not null" json:"user_b_id"`
	Status  MatchStatus `gorm:"type:text;index;not null" json:"status"`

	InitiatorID string `json:"initiator_id"`
	ConfirmedBy string `json:"confirmed_by,omitempty"`
	DeclinedBy  string `json:"declined_by,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// BeforeCreate generates a UUID for the match if none is set.
func (m *MatchRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Involves reports whether identity is one side of the pair.
func (m *MatchRecord) Involves(identity string) bool {
	return m.UserAID == identity || m.UserBID == identity
}

// Other returns the counterpart of identity.
func (m *MatchRecord) Other(identity string) string {
	if m.UserAID == identity {
		return m.UserBID
	}
	return m.UserAID
}

// PairKey returns the canonical key of an unordered pair and the pair in
// sorted order.
func PairKey(a, b string) (key, first, second string) {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b, a, b
}
