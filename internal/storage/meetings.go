package storage

import (
	"context"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

func (s *Service) CreateMeeting(ctx context.Context, m *models.Meeting) error {
	return translate(s.DB.WithContext(ctx).Create(m).Error, errorx.ErrMeetingMissing, "create meeting")
}

func (s *Service) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	var m models.Meeting
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, errorx.ErrMeetingMissing, "get meeting")
	}
	return &m, nil
}

func (s *Service) ListMeetingsForMatch(ctx context.Context, matchID string) ([]*models.Meeting, error) {
	var out []*models.Meeting
	err := s.DB.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("scheduled_at asc").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, errorx.ErrMeetingMissing, "list meetings")
	}
	return out, nil
}

func (s *Service) UpdateMeetingStatus(ctx context.Context, id string, from []models.MeetingStatus, to models.MeetingStatus) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&models.Meeting{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, translate(res.Error, errorx.ErrMeetingMissing, "update meeting")
	}
	return res.RowsAffected == 1, nil
}
