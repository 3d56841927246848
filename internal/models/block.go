package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockRelation is a directed block. It is unique per ordered pair, but it
// suppresses interaction in both directions wherever it is checked.
type BlockRelation struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	BlockerID string    `gorm:"uniqueIndex:idx_block_pair;not null" json:"blocker_id"`
	BlockedID string    `gorm:"uniqueIndex:idx_block_pair;index;not null" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the relation if none is set.
func (b *BlockRelation) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}
