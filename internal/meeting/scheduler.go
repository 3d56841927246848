// Package meeting records meeting proposals on confirmed matches. A meeting's
// status is independent of its match: cancelling the match leaves scheduled
// meetings untouched.
package meeting

import (
	"context"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"
	"roomies/backend/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage the scheduler needs.
type Store interface {
	GetMatchByID(ctx context.Context, id string) (*models.MatchRecord, error)
	storage.MeetingStore
}

var (
	errNotInMatch     = errorx.New(errorx.KindAuthorization, errorx.CodeNotParticipant, "not a participant of this match")
	errMeetingSettled = errorx.New(errorx.KindConflict, errorx.CodeInvalidState, "meeting is no longer scheduled")
)

type Scheduler struct {
	store  Store
	events events.Publisher
}

func NewScheduler(store Store, pub events.Publisher) *Scheduler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Scheduler{store: store, events: pub}
}

// Schedule attaches a proposal to a confirmed match identity takes part in.
func (s *Scheduler) Schedule(ctx context.Context, identity, matchID string, p Proposal) (*models.Meeting, error) {
	if p == nil {
		return nil, errorx.New(errorx.KindValidation, "invalid_proposal", "meeting proposal is required")
	}
	match, err := s.participantMatch(ctx, identity, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchConfirmed {
		return nil, errorx.ErrNotConfirmed
	}

	m := &models.Meeting{
		MatchID:    match.ID,
		ProposerID: identity,
		Type:       p.Type(),
		Status:     models.MeetingScheduled,
	}
	if err := p.apply(m); err != nil {
		return nil, err
	}
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return nil, err
	}

	zap.L().Info("meeting scheduled", zap.String("meeting_id", m.ID), zap.String("match_id", match.ID),
		zap.String("type", string(m.Type)))
	s.events.Emit(ctx, events.Event{Type: events.MeetingCreated, Key: match.PairKey, Actor: identity,
		Attributes: map[string]string{"meeting_id": m.ID, "type": string(m.Type)}})
	return m, nil
}

// Complete marks a scheduled meeting as held.
func (s *Scheduler) Complete(ctx context.Context, identity, meetingID string) (*models.Meeting, error) {
	return s.settle(ctx, identity, meetingID, models.MeetingCompleted)
}

// CancelMeeting withdraws a scheduled meeting.
func (s *Scheduler) CancelMeeting(ctx context.Context, identity, meetingID string) (*models.Meeting, error) {
	return s.settle(ctx, identity, meetingID, models.MeetingCancelled)
}

func (s *Scheduler) settle(ctx context.Context, identity, meetingID string, to models.MeetingStatus) (*models.Meeting, error) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	match, err := s.participantMatch(ctx, identity, m.MatchID)
	if err != nil {
		return nil, err
	}
	if m.Status == to {
		return m, nil
	}
	changed, err := s.store.UpdateMeetingStatus(ctx, m.ID, []models.MeetingStatus{models.MeetingScheduled}, to)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, errMeetingSettled
	}
	updated, err := s.store.GetMeeting(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	s.events.Emit(ctx, events.Event{Type: events.MeetingUpdated, Key: match.PairKey, Actor: identity,
		Attributes: map[string]string{"meeting_id": m.ID, "status": string(to)}})
	return updated, nil
}

// ListForMatch returns the meetings of a match identity takes part in.
func (s *Scheduler) ListForMatch(ctx context.Context, identity, matchID string) ([]*models.Meeting, error) {
	if _, err := s.participantMatch(ctx, identity, matchID); err != nil {
		return nil, err
	}
	return s.store.ListMeetingsForMatch(ctx, matchID)
}

func (s *Scheduler) participantMatch(ctx context.Context, identity, matchID string) (*models.MatchRecord, error) {
	match, err := s.store.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.Involves(identity) {
		return nil, errNotInMatch
	}
	return match, nil
}
