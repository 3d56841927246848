package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Profile holds a person's roommate-search attributes and preferences.
// Each identity owns at most one profile. Profiles are deactivated, never
// deleted, so match history stays valid.
type Profile struct {
	ID string `gorm:"primaryKey" json:"id"`
	// IdentityID is the verified identity that owns the profile.
	IdentityID string `gorm:"uniqueIndex;not null" json:"identity_id" validate:"required"`

	Age         int    `json:"age" validate:"required,gte=16,lte=120"`
	University  string `json:"university" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Cleanliness int    `json:"cleanliness" validate:"required,gte=1,lte=5"`

	SleepSchedule string `json:"sleep_schedule" validate:"required"`
	StudyHabit    string `json:"study_habit"`
	SocialLevel   string `json:"social_level" validate:"required"`
	Personality   string `json:"personality" validate:"required"`

	Interests pq.StringArray `gorm:"type:text[]" json:"interests"`

	SmokingPreference string `json:"smoking_preference" validate:"required"`
	PetTolerance      string `json:"pet_tolerance" validate:"required"`

	BudgetMin int `json:"budget_min" validate:"gte=0"`
	BudgetMax int `json:"budget_max" validate:"gtefield=BudgetMin"`

	Bio      string `gorm:"type:text" json:"bio" validate:"max=2000"`
	IsActive bool   `gorm:"index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the profile if none is set.
func (p *Profile) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the attributes required for scoring and storage.
func (p *Profile) Validate() error {
	return validate.Struct(p)
}

// Normalize trims free-text fields and lowercases interests so that set
// comparisons are not affected by formatting.
func (p *Profile) Normalize() {
	p.University = strings.TrimSpace(p.University)
	p.Location = strings.TrimSpace(p.Location)
	p.Bio = strings.TrimSpace(p.Bio)
	seen := make(map[string]struct{}, len(p.Interests))
	interests := p.Interests[:0]
	for _, in := range p.Interests {
		in = strings.ToLower(strings.TrimSpace(in))
		if in == "" {
			continue
		}
		if _, ok := seen[in]; ok {
			continue
		}
		seen[in] = struct{}{}
		interests = append(interests, in)
	}
	p.Interests = interests
}
