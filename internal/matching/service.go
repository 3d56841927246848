// Package matching coordinates the relationship between two profiles and
// serves ranked candidate listings.
//
// There is one MatchRecord per unordered pair. Its state machine:
//
//	none      -> pending    ExpressInterest (either side, idempotent)
//	pending   -> confirmed  Confirm (either side, confirmer recorded)
//	none      -> declined   Decline
//	pending   -> declined   Decline
//	pending   -> cancelled  Cancel, or a participant deactivating
//	confirmed -> cancelled  Cancel, or a participant deactivating
//	cancelled -> pending    ExpressInterest reopens the pair
//
// confirmed and declined are terminal for interest, confirm and decline.
// Every change is a conditional update on the stored record; a lost race is
// detected by the update matching no row, and the record is re-read.
package matching

import (
	"context"
	"errors"
	"fmt"

	"roomies/backend/internal/blocking"
	"roomies/backend/internal/config"
	"roomies/backend/internal/errorx"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"
	"roomies/backend/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage the coordinator needs.
type Store interface {
	storage.ProfileStore
	storage.MatchStore
}

// maxAttempts bounds how often a transition is retried after losing a race.
const maxAttempts = 3

var (
	errNotInMatch      = errorx.New(errorx.KindAuthorization, errorx.CodeNotParticipant, "not a participant of this match")
	errMatchCancelled  = errorx.New(errorx.KindState, errorx.CodeInvalidState, "match was cancelled")
	errProfileInactive = errorx.New(errorx.KindState, errorx.CodeInvalidState, "profile is not active")
	errContended       = errorx.New(errorx.KindConflict, errorx.CodeDuplicate, "match changed concurrently, retry")
)

type Service struct {
	store  Store
	blocks *blocking.Registry
	events events.Publisher
	cfg    config.MatchingConfig
}

func NewService(store Store, blocks *blocking.Registry, pub events.Publisher, cfg config.MatchingConfig) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if cfg.ScoreWorkers <= 0 {
		cfg.ScoreWorkers = 1
	}
	return &Service{store: store, blocks: blocks, events: pub, cfg: cfg}
}

// action describes one coordinator operation in terms of the state machine.
type action struct {
	name  string
	to    models.MatchStatus
	from  []models.MatchStatus
	event string
	// create inserts a fresh record with status to when the pair has none.
	create bool
	// settled is returned unchanged when the record already has it.
	settled models.MatchStatus
	// checkBlock rejects the action while a block exists.
	checkBlock bool
}

var (
	interestAction = action{
		name: "interest", to: models.MatchPending, from: []models.MatchStatus{models.MatchCancelled},
		event: events.MatchInterest, create: true, settled: models.MatchPending, checkBlock: true,
	}
	confirmAction = action{
		name: "confirm", to: models.MatchConfirmed, from: []models.MatchStatus{models.MatchPending},
		event: events.MatchConfirmed, checkBlock: true,
	}
	declineAction = action{
		name: "decline", to: models.MatchDeclined, from: []models.MatchStatus{models.MatchPending, models.MatchCancelled},
		event: events.MatchDeclined, create: true,
	}
	cancelAction = action{
		name: "cancel", to: models.MatchCancelled, from: []models.MatchStatus{models.MatchPending, models.MatchConfirmed},
		event: events.MatchCancelled, settled: models.MatchCancelled,
	}
)

// ExpressInterest records identity's interest in target. Repeating it on a
// pending pair returns the existing record.
func (s *Service) ExpressInterest(ctx context.Context, identity, target string) (*models.MatchRecord, error) {
	return s.apply(ctx, identity, target, interestAction)
}

// Confirm finalizes a pending match. Either side may confirm.
func (s *Service) Confirm(ctx context.Context, identity, target string) (*models.MatchRecord, error) {
	return s.apply(ctx, identity, target, confirmAction)
}

func (s *Service) Decline(ctx context.Context, identity, target string) (*models.MatchRecord, error) {
	return s.apply(ctx, identity, target, declineAction)
}

func (s *Service) Cancel(ctx context.Context, identity, target string) (*models.MatchRecord, error) {
	return s.apply(ctx, identity, target, cancelAction)
}

func (s *Service) apply(ctx context.Context, identity, target string, a action) (*models.MatchRecord, error) {
	if identity == target {
		return nil, errorx.ErrSelfAction
	}
	if a.create {
		if err := s.requireActive(ctx, identity, target); err != nil {
			return nil, err
		}
	}
	if a.checkBlock {
		blocked, err := s.blocks.Exists(ctx, identity, target)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, errorx.ErrBlocked
		}
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := s.store.GetMatchByPair(ctx, identity, target)
		if errors.Is(err, errorx.ErrMatchNotFound) {
			if !a.create {
				return nil, errorx.ErrMatchNotFound
			}
			rec, err = s.createRecord(ctx, identity, target, a)
			if errors.Is(err, errorx.ErrDuplicate) {
				// The other side created the record first; evaluate against it.
				continue
			}
			if err != nil {
				return nil, err
			}
			s.emit(ctx, rec, identity, a)
			return rec, nil
		}
		if err != nil {
			return nil, err
		}

		if a.settled != "" && rec.Status == a.settled {
			return rec, nil
		}
		if !containsStatus(a.from, rec.Status) {
			return nil, rejection(rec.Status)
		}

		changed, err := s.store.TransitionMatch(ctx, rec.ID, storage.MatchTransition{From: a.from, To: a.to, Actor: identity})
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		updated, err := s.store.GetMatchByID(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		s.emit(ctx, updated, identity, a)
		return updated, nil
	}

	zap.L().Warn("match transition kept losing races",
		zap.String("action", a.name), zap.String("identity", identity), zap.String("target", target))
	return nil, errContended
}

func (s *Service) createRecord(ctx context.Context, identity, target string, a action) (*models.MatchRecord, error) {
	key, first, second := models.PairKey(identity, target)
	rec := &models.MatchRecord{
		PairKey:     key,
		UserAID:     first,
		UserBID:     second,
		Status:      a.to,
		InitiatorID: identity,
	}
	if a.to == models.MatchDeclined {
		rec.DeclinedBy = identity
	}
	if err := s.store.CreateMatch(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) requireActive(ctx context.Context, identities ...string) error {
	for _, id := range identities {
		p, err := s.store.GetProfileByIdentity(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return errProfileInactive
		}
	}
	return nil
}

func rejection(status models.MatchStatus) error {
	switch status {
	case models.MatchConfirmed, models.MatchDeclined:
		return errorx.ErrTerminalMatch
	case models.MatchCancelled:
		return errMatchCancelled
	default:
		return errorx.Newf(errorx.KindState, errorx.CodeInvalidState, "match is %s", status)
	}
}

func (s *Service) emit(ctx context.Context, rec *models.MatchRecord, actor string, a action) {
	zap.L().Info("match transition",
		zap.String("match_id", rec.ID), zap.String("action", a.name),
		zap.String("status", string(rec.Status)), zap.String("actor", actor))
	s.events.Emit(ctx, events.Event{
		Type:  a.event,
		Key:   rec.PairKey,
		Actor: actor,
		Attributes: map[string]string{
			"match_id": rec.ID,
			"status":   string(rec.Status),
		},
	})
}

// Get returns a match the identity takes part in.
func (s *Service) Get(ctx context.Context, identity, matchID string) (*models.MatchRecord, error) {
	rec, err := s.store.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !rec.Involves(identity) {
		return nil, errNotInMatch
	}
	return rec, nil
}

// ListForIdentity lists identity's matches, optionally filtered by status.
func (s *Service) ListForIdentity(ctx context.Context, identity string, statuses ...models.MatchStatus) ([]*models.MatchRecord, error) {
	return s.store.ListMatchesForIdentity(ctx, identity, statuses...)
}

// DeactivateProfile hides identity's profile and cancels its open matches.
func (s *Service) DeactivateProfile(ctx context.Context, identity string) error {
	if err := s.store.SetProfileActive(ctx, identity, false); err != nil {
		return err
	}
	open, err := s.store.ListMatchesForIdentity(ctx, identity, cancelAction.from...)
	if err != nil {
		return err
	}
	for _, rec := range open {
		changed, err := s.store.TransitionMatch(ctx, rec.ID, storage.MatchTransition{
			From: cancelAction.from, To: models.MatchCancelled, Actor: identity,
		})
		if err != nil {
			return fmt.Errorf("cancel match %s: %w", rec.ID, err)
		}
		if changed {
			rec.Status = models.MatchCancelled
			s.emit(ctx, rec, identity, cancelAction)
		}
	}
	s.events.Emit(ctx, events.Event{Type: events.ProfileDisabled, Key: identity, Actor: identity})
	return nil
}

// UpsertProfile validates and stores identity's profile. Submitting a profile
// also reactivates it.
func (s *Service) UpsertProfile(ctx context.Context, identity string, p *models.Profile) (*models.Profile, error) {
	p.IdentityID = identity
	p.IsActive = true
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, errorx.Wrap(err, errorx.KindValidation, errorx.CodeInvalidProfile, "invalid profile")
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	return s.store.GetProfileByIdentity(ctx, identity)
}

func containsStatus(list []models.MatchStatus, st models.MatchStatus) bool {
	for _, v := range list {
		if v == st {
			return true
		}
	}
	return false
}
