package meeting

import (
	"encoding/json"
	"strings"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

// Proposal is one meeting variant. Each variant validates the fields its
// type requires and fills a Meeting with them.
type Proposal interface {
	Type() models.MeetingType
	apply(m *models.Meeting) error
}

// Common fields carried by every variant.
type Common struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes,omitempty"`
}

type VideoCall struct {
	Common
	// Link is optional; the platform may attach its own room later.
	Link string `json:"link,omitempty"`
}

type ExternalLink struct {
	Common
	Link string `json:"link"`
}

type InPerson struct {
	Common
	Location string `json:"location,omitempty"`
}

func (VideoCall) Type() models.MeetingType    { return models.MeetingVideoCall }
func (ExternalLink) Type() models.MeetingType { return models.MeetingExternalLink }
func (InPerson) Type() models.MeetingType     { return models.MeetingInPerson }

func (p VideoCall) apply(m *models.Meeting) error {
	m.Link = strings.TrimSpace(p.Link)
	return p.Common.apply(m)
}

func (p ExternalLink) apply(m *models.Meeting) error {
	link := strings.TrimSpace(p.Link)
	if link == "" {
		return errorx.ErrMissingLink
	}
	m.Link = link
	return p.Common.apply(m)
}

func (p InPerson) apply(m *models.Meeting) error {
	m.Location = strings.TrimSpace(p.Location)
	return p.Common.apply(m)
}

func (c Common) apply(m *models.Meeting) error {
	if c.ScheduledAt.IsZero() {
		return errorx.New(errorx.KindValidation, "missing_time", "scheduled_at is required")
	}
	m.ScheduledAt = c.ScheduledAt.UTC()
	m.Notes = strings.TrimSpace(c.Notes)
	return nil
}

// DecodeProposal reads a JSON proposal and returns the variant named by its
// "type" field.
func DecodeProposal(data []byte) (Proposal, error) {
	var head struct {
		Type models.MeetingType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errorx.Wrap(err, errorx.KindValidation, "invalid_proposal", "malformed meeting proposal")
	}

	var p Proposal
	var err error
	switch head.Type {
	case models.MeetingVideoCall:
		var v VideoCall
		err = json.Unmarshal(data, &v)
		p = v
	case models.MeetingExternalLink:
		var v ExternalLink
		err = json.Unmarshal(data, &v)
		p = v
	case models.MeetingInPerson:
		var v InPerson
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, errorx.Newf(errorx.KindValidation, "invalid_proposal", "unknown meeting type %q", head.Type)
	}
	if err != nil {
		return nil, errorx.Wrap(err, errorx.KindValidation, "invalid_proposal", "malformed meeting proposal")
	}
	return p, nil
}
