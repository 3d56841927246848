package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReportCategory string

const (
	ReportSpam        ReportCategory = "spam"
	ReportHarassment  ReportCategory = "harassment"
	ReportScam        ReportCategory = "scam"
	ReportFakeProfile ReportCategory = "fake_profile"
)

// ReportSubject tells what the reporter pointed at.
type ReportSubject string

const (
	ReportOnProfile      ReportSubject = "profile"
	ReportOnConversation ReportSubject = "conversation"
)

// Report is one identity reporting another. Weight is fixed at filing time
// from the category.
type Report struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	ReporterID string         `gorm:"index;not null" json:"reporter_id"`
	ReportedID string         `gorm:"index:idx_report_target;not null" json:"reported_id"`
	Subject    ReportSubject  `gorm:"type:text;not null" json:"subject"`
	Category   ReportCategory `gorm:"type:text;not null" json:"category"`
	ThreadID   string         `json:"thread_id,omitempty"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	Weight     int            `json:"weight"`
	CreatedAt  time.Time      `gorm:"index:idx_report_target" json:"created_at"`
}

// BeforeCreate generates a UUID for the report if none is set.
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}
