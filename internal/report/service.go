// Package report handles identities reporting each other. Filing a report
// blocks the reported identity for the reporter; enough weighted reports from
// distinct reporters suspend the reported profile.
package report

import (
	"context"
	"errors"
	"strconv"
	"time"

	"roomies/backend/internal/blocking"
	"roomies/backend/internal/config"
	"roomies/backend/internal/errorx"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"
	"roomies/backend/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage the report service needs.
type Store interface {
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	ListThreadsForIdentity(ctx context.Context, identity string) ([]*models.Thread, error)
	GetMatchByPair(ctx context.Context, a, b string) (*models.MatchRecord, error)
	storage.ReportStore
}

// Deactivator hides a profile and cancels its open matches.
type Deactivator interface {
	DeactivateProfile(ctx context.Context, identity string) error
}

type Service struct {
	store   Store
	blocks  *blocking.Registry
	profile Deactivator
	events  events.Publisher
	now     func() time.Time
}

func NewService(store Store, blocks *blocking.Registry, profile Deactivator, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{store: store, blocks: blocks, profile: profile, events: pub, now: time.Now}
}

// File records reporter's submission, blocks the reported identity for the
// reporter and suspends it once the thresholds are reached.
func (s *Service) File(ctx context.Context, reporter string, sub Submission) (*models.Report, error) {
	if sub == nil {
		return nil, errorx.New(errorx.KindValidation, "invalid_report", "report is required")
	}
	r := &models.Report{ReporterID: reporter, Subject: sub.Subject()}
	if err := sub.fill(r); err != nil {
		return nil, err
	}
	if r.ThreadID != "" {
		thread, err := s.store.GetThread(ctx, r.ThreadID)
		if err != nil {
			return nil, err
		}
		if !thread.HasParticipant(reporter) {
			return nil, errorx.ErrNotParticipant
		}
		r.ReportedID = thread.Other(reporter)
	}
	if r.ReportedID == reporter {
		return nil, errorx.ErrSelfAction
	}
	if r.ThreadID == "" {
		if err := s.requireContact(ctx, reporter, r.ReportedID); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}
	zap.L().Info("report filed", zap.String("report_id", r.ID), zap.String("reported", r.ReportedID),
		zap.String("category", string(r.Category)))
	s.events.Emit(ctx, events.Event{Type: events.ReportFiled, Key: r.ReportedID, Actor: reporter,
		Attributes: map[string]string{"report_id": r.ID, "category": string(r.Category)}})

	if _, err := s.blocks.Create(ctx, reporter, r.ReportedID); err != nil {
		return nil, err
	}
	if err := s.checkSuspension(ctx, r.ReportedID); err != nil {
		return nil, err
	}
	return r, nil
}

// requireContact accepts a profile report only from someone who shares a
// thread or a match with the reported identity.
func (s *Service) requireContact(ctx context.Context, reporter, reported string) error {
	_, err := s.store.GetMatchByPair(ctx, reporter, reported)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errorx.ErrMatchNotFound) {
		return err
	}
	threads, err := s.store.ListThreadsForIdentity(ctx, reporter)
	if err != nil {
		return err
	}
	for _, th := range threads {
		if th.HasParticipant(reported) {
			return nil
		}
	}
	return errorx.ErrNoContact
}

// Standing summarizes the recent reports against an identity.
type Standing struct {
	Reporters int  `json:"reporters"`
	Weight    int  `json:"weight"`
	Suspend   bool `json:"suspend"`
}

// StandingOf evaluates the reports filed against identity within the window.
func (s *Service) StandingOf(ctx context.Context, identity string) (Standing, error) {
	reports, err := s.store.ListReportsAgainst(ctx, identity, s.now().Add(-config.ReportWindow))
	if err != nil {
		return Standing{}, err
	}
	heaviest := make(map[string]int)
	for _, r := range reports {
		if r.Weight > heaviest[r.ReporterID] {
			heaviest[r.ReporterID] = r.Weight
		}
	}
	st := Standing{Reporters: len(heaviest)}
	for _, w := range heaviest {
		st.Weight += w
	}
	st.Suspend = (st.Weight >= config.SuspendWeight && st.Reporters >= config.SuspendMinReporters) ||
		st.Reporters > config.SuspendReporters
	return st, nil
}

// Reports lists the reports filed against identity within the window.
func (s *Service) Reports(ctx context.Context, identity string) ([]*models.Report, error) {
	return s.store.ListReportsAgainst(ctx, identity, s.now().Add(-config.ReportWindow))
}

func (s *Service) checkSuspension(ctx context.Context, identity string) error {
	st, err := s.StandingOf(ctx, identity)
	if err != nil {
		return err
	}
	if !st.Suspend {
		return nil
	}
	if err := s.profile.DeactivateProfile(ctx, identity); err != nil {
		if errors.Is(err, errorx.ErrProfileMissing) {
			// Nothing to hide; the blocks already stop contact.
			return nil
		}
		return err
	}
	zap.L().Warn("profile suspended by reports", zap.String("identity", identity),
		zap.Int("weight", st.Weight), zap.Int("reporters", st.Reporters))
	s.events.Emit(ctx, events.Event{Type: events.ProfileSuspend, Key: identity,
		Attributes: map[string]string{"weight": strconv.Itoa(st.Weight), "reporters": strconv.Itoa(st.Reporters)}})
	return nil
}
