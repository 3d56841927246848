package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeetingType string

const (
	MeetingVideoCall    MeetingType = "video_call"
	MeetingExternalLink MeetingType = "external_link"
	MeetingInPerson     MeetingType = "in_person"
)

type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Meeting is a proposal attached to a confirmed match. Its status is
// independent of the match status.
type Meeting struct {
	ID          string        `gorm:"primaryKey" json:"id"`
	MatchID     string        `gorm:"index;not null" json:"match_id"`
	ProposerID  string        `gorm:"not null" json:"proposer_id"`
	Type        MeetingType   `gorm:"type:text;not null" json:"type"`
	Link        string        `json:"link,omitempty"`
	Location    string        `json:"location,omitempty"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Notes       string        `gorm:"type:text" json:"notes,omitempty"`
	Status      MeetingStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// BeforeCreate generates a UUID for the meeting if none is set.
func (m *Meeting) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}
