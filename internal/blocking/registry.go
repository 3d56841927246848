// Package blocking owns directed block relations. Enforcement is symmetric:
// Exists reports a relation in either direction and is the single authority
// consulted by the messaging gateway and candidate listing.
package blocking

import (
	"context"
	"errors"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"
	"roomies/backend/internal/storage"

	"go.uber.org/zap"
)

type Registry struct {
	store  storage.BlockStore
	events events.Publisher
}

func NewRegistry(store storage.BlockStore, pub events.Publisher) *Registry {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Registry{store: store, events: pub}
}

// Create records that blocker blocks blocked. An existing relation is
// returned as is.
func (r *Registry) Create(ctx context.Context, blocker, blocked string) (*models.BlockRelation, error) {
	if blocker == "" || blocked == "" {
		return nil, errorx.New(errorx.KindValidation, errorx.CodeInvalidState, "blocker and blocked are required")
	}
	if blocker == blocked {
		return nil, errorx.ErrSelfAction
	}

	if existing, err := r.store.GetBlock(ctx, blocker, blocked); err == nil {
		return existing, nil
	} else if !errorx.IsKind(err, errorx.KindNotFound) {
		return nil, err
	}

	rel := &models.BlockRelation{BlockerID: blocker, BlockedID: blocked}
	if err := r.store.CreateBlock(ctx, rel); err != nil {
		if errors.Is(err, errorx.ErrDuplicate) {
			// Lost the race against an identical request.
			return r.store.GetBlock(ctx, blocker, blocked)
		}
		return nil, err
	}

	zap.L().Info("block created", zap.String("blocker", blocker), zap.String("blocked", blocked))
	r.events.Emit(ctx, events.Event{Type: events.BlockCreated, Key: blocker, Actor: blocker,
		Attributes: map[string]string{"blocked": blocked}})
	return rel, nil
}

// Remove deletes the relation if present.
func (r *Registry) Remove(ctx context.Context, blocker, blocked string) error {
	if err := r.store.DeleteBlock(ctx, blocker, blocked); err != nil {
		return err
	}
	r.events.Emit(ctx, events.Event{Type: events.BlockRemoved, Key: blocker, Actor: blocker,
		Attributes: map[string]string{"blocked": blocked}})
	return nil
}

// Exists reports a block between a and b in either direction.
func (r *Registry) Exists(ctx context.Context, a, b string) (bool, error) {
	return r.store.BlockExists(ctx, a, b)
}

func (r *Registry) ListByBlocker(ctx context.Context, blocker string) ([]*models.BlockRelation, error) {
	return r.store.ListBlocksByBlocker(ctx, blocker)
}

// Counterparts returns every identity that identity must not interact with.
func (r *Registry) Counterparts(ctx context.Context, identity string) (map[string]struct{}, error) {
	ids, err := r.store.ListBlockedCounterparts(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
