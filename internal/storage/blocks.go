package storage

import (
	"context"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

var errBlockMissing = errorx.New(errorx.KindNotFound, "block_not_found", "block relation not found")

func (s *Service) CreateBlock(ctx context.Context, b *models.BlockRelation) error {
	return translate(s.DB.WithContext(ctx).Create(b).Error, errBlockMissing, "create block")
}

func (s *Service) GetBlock(ctx context.Context, blocker, blocked string) (*models.BlockRelation, error) {
	var b models.BlockRelation
	err := s.DB.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).
		First(&b).Error
	if err != nil {
		return nil, translate(err, errBlockMissing, "get block")
	}
	return &b, nil
}

func (s *Service) DeleteBlock(ctx context.Context, blocker, blocked string) error {
	err := s.DB.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blocker, blocked).
		Delete(&models.BlockRelation{}).Error
	return translate(err, errBlockMissing, "delete block")
}

func (s *Service) BlockExists(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.BlockRelation{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, translate(err, errBlockMissing, "block exists")
	}
	return count > 0, nil
}

func (s *Service) ListBlocksByBlocker(ctx context.Context, blocker string) ([]*models.BlockRelation, error) {
	var out []*models.BlockRelation
	err := s.DB.WithContext(ctx).
		Where("blocker_id = ?", blocker).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, errBlockMissing, "list blocks")
	}
	return out, nil
}

func (s *Service) ListBlockedCounterparts(ctx context.Context, identity string) ([]string, error) {
	var rels []models.BlockRelation
	err := s.DB.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", identity, identity).
		Find(&rels).Error
	if err != nil {
		return nil, translate(err, errBlockMissing, "list blocked counterparts")
	}
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		if r.BlockerID == identity {
			out = append(out, r.BlockedID)
		} else {
			out = append(out, r.BlockerID)
		}
	}
	return out, nil
}
