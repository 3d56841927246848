package storage

import (
	"context"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

var errReportMissing = errorx.New(errorx.KindNotFound, "report_not_found", "report not found")

func (s *Service) CreateReport(ctx context.Context, r *models.Report) error {
	return translate(s.DB.WithContext(ctx).Create(r).Error, errReportMissing, "create report")
}

func (s *Service) ListReportsAgainst(ctx context.Context, reported string, since time.Time) ([]*models.Report, error) {
	var out []*models.Report
	err := s.DB.WithContext(ctx).
		Where("reported_id = ? AND created_at >= ?", reported, since).
		Order("created_at desc").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, errReportMissing, "list reports")
	}
	return out, nil
}
