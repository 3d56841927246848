package report

import (
	"encoding/json"
	"strings"

	"roomies/backend/internal/config"
	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

// Submission is one report variant, selected by its "type" field.
type Submission interface {
	Subject() models.ReportSubject
	fill(r *models.Report) error
}

// Details shared by every variant.
type Details struct {
	Category models.ReportCategory `json:"category"`
	Reason   string                `json:"reason,omitempty"`
}

// ProfileReport points at an identity directly.
type ProfileReport struct {
	Details
	ReportedID string `json:"reported_id"`
}

// ConversationReport points at a thread; the reported identity is the
// reporter's counterpart in it.
type ConversationReport struct {
	Details
	ThreadID string `json:"thread_id"`
}

func (ProfileReport) Subject() models.ReportSubject      { return models.ReportOnProfile }
func (ConversationReport) Subject() models.ReportSubject { return models.ReportOnConversation }

func (s ProfileReport) fill(r *models.Report) error {
	r.ReportedID = strings.TrimSpace(s.ReportedID)
	if r.ReportedID == "" {
		return errorx.New(errorx.KindValidation, "invalid_report", "reported_id is required")
	}
	return s.Details.fill(r)
}

func (s ConversationReport) fill(r *models.Report) error {
	r.ThreadID = strings.TrimSpace(s.ThreadID)
	if r.ThreadID == "" {
		return errorx.New(errorx.KindValidation, "invalid_report", "thread_id is required")
	}
	return s.Details.fill(r)
}

func (d Details) fill(r *models.Report) error {
	weight, ok := config.ReportWeights[string(d.Category)]
	if !ok {
		return errorx.Newf(errorx.KindValidation, "invalid_report", "unknown report category %q", d.Category)
	}
	reason := strings.TrimSpace(d.Reason)
	if len(reason) > config.MaxReportReason {
		return errorx.New(errorx.KindValidation, "invalid_report", "reason is too long")
	}
	r.Category = d.Category
	r.Reason = reason
	r.Weight = weight
	return nil
}

// DecodeSubmission reads a JSON report and returns the variant named by its
// "type" field.
func DecodeSubmission(data []byte) (Submission, error) {
	var head struct {
		Type models.ReportSubject `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errorx.Wrap(err, errorx.KindValidation, "invalid_report", "malformed report")
	}

	var s Submission
	var err error
	switch head.Type {
	case models.ReportOnProfile:
		var v ProfileReport
		err = json.Unmarshal(data, &v)
		s = v
	case models.ReportOnConversation:
		var v ConversationReport
		err = json.Unmarshal(data, &v)
		s = v
	default:
		return nil, errorx.Newf(errorx.KindValidation, "invalid_report", "unknown report type %q", head.Type)
	}
	if err != nil {
		return nil, errorx.Wrap(err, errorx.KindValidation, "invalid_report", "malformed report")
	}
	return s, nil
}
