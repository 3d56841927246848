package storage

import (
	"context"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

// CreateMatch relies on the unique pair_key index: two concurrent first
// interests on the same pair produce one row and one ErrDuplicate.
func (s *Service) CreateMatch(ctx context.Context, m *models.MatchRecord) error {
	return translate(s.DB.WithContext(ctx).Create(m).Error, errorx.ErrMatchNotFound, "create match")
}

func (s *Service) GetMatchByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	var m models.MatchRecord
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, errorx.ErrMatchNotFound, "get match")
	}
	return &m, nil
}

func (s *Service) GetMatchByPair(ctx context.Context, a, b string) (*models.MatchRecord, error) {
	key, _, _ := models.PairKey(a, b)
	var m models.MatchRecord
	if err := s.DB.WithContext(ctx).Where("pair_key = ?", key).First(&m).Error; err != nil {
		return nil, translate(err, errorx.ErrMatchNotFound, "get match by pair")
	}
	return &m, nil
}

// TransitionMatch is a single conditional UPDATE, so concurrent transitions on
// the same pair are serialized by the database and at most one of them wins.
func (s *Service) TransitionMatch(ctx context.Context, id string, t MatchTransition) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.MatchRecord{}).
		Where("id = ? AND status IN ?", id, t.From).
		Updates(transitionColumns(t, time.Now()))
	if res.Error != nil {
		return false, translate(res.Error, errorx.ErrMatchNotFound, "transition match")
	}
	return res.RowsAffected == 1, nil
}

func transitionColumns(t MatchTransition, now time.Time) map[string]interface{} {
	cols := map[string]interface{}{
		"status":     t.To,
		"updated_at": now,
	}
	switch t.To {
	case models.MatchConfirmed:
		cols["confirmed_by"] = t.Actor
		cols["confirmed_at"] = now
	case models.MatchDeclined:
		cols["declined_by"] = t.Actor
	case models.MatchCancelled:
		cols["cancelled_by"] = t.Actor
	case models.MatchPending:
		cols["initiator_id"] = t.Actor
		cols["cancelled_by"] = ""
	}
	return cols
}

func (s *Service) ListMatchesForIdentity(ctx context.Context, identity string, statuses ...models.MatchStatus) ([]*models.MatchRecord, error) {
	q := s.DB.WithContext(ctx).Where("user_a_id = ? OR user_b_id = ?", identity, identity)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out []*models.MatchRecord
	if err := q.Order("updated_at desc").Find(&out).Error; err != nil {
		return nil, translate(err, errorx.ErrMatchNotFound, "list matches")
	}
	return out, nil
}
