package storage

import (
	"context"
	"errors"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertProfile creates the identity's profile on first submission and
// updates it afterwards. The profile ID and creation time are preserved.
func (s *Service) UpsertProfile(ctx context.Context, p *models.Profile) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Profile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("identity_id = ?", p.IdentityID).
			First(&existing).Error
		if err == nil {
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			return tx.Save(p).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(p).Error
	})
	return translate(err, errorx.ErrProfileMissing, "upsert profile")
}

func (s *Service) GetProfileByIdentity(ctx context.Context, identity string) (*models.Profile, error) {
	var p models.Profile
	err := s.DB.WithContext(ctx).Where("identity_id = ?", identity).First(&p).Error
	if err != nil {
		return nil, translate(err, errorx.ErrProfileMissing, "get profile")
	}
	return &p, nil
}

func (s *Service) ListActiveProfiles(ctx context.Context, exclude string) ([]*models.Profile, error) {
	var profiles []*models.Profile
	err := s.DB.WithContext(ctx).
		Where("is_active = ? AND identity_id <> ?", true, exclude).
		Order("created_at asc").
		Find(&profiles).Error
	if err != nil {
		return nil, translate(err, errorx.ErrProfileMissing, "list profiles")
	}
	return profiles, nil
}

func (s *Service) SetProfileActive(ctx context.Context, identity string, active bool) error {
	res := s.DB.WithContext(ctx).Model(&models.Profile{}).
		Where("identity_id = ?", identity).
		Update("is_active", active)
	if res.Error != nil {
		return translate(res.Error, errorx.ErrProfileMissing, "set profile active")
	}
	if res.RowsAffected == 0 {
		return errorx.ErrProfileMissing
	}
	return nil
}
