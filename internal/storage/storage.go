// Package storage persists profiles, matches, blocks, threads, messages,
// meetings and reports, and carries room events between gateway instances.
//
// Service is the production backend (PostgreSQL through gorm, Redis pub/sub).
// Memory is an in-process backend with the same semantics, used for tests and
// local development.
package storage

import (
	"context"
	"errors"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileStore is the contract with the external profile store.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p *models.Profile) error
	GetProfileByIdentity(ctx context.Context, identity string) (*models.Profile, error)
	// ListActiveProfiles returns every active profile except exclude's.
	ListActiveProfiles(ctx context.Context, exclude string) ([]*models.Profile, error)
	SetProfileActive(ctx context.Context, identity string, active bool) error
}

// MatchTransition describes a conditional status change on a match.
type MatchTransition struct {
	From  []models.MatchStatus
	To    models.MatchStatus
	Actor string
}

type MatchStore interface {
	// CreateMatch inserts a new record. A record for the same pair already
	// existing is reported as errorx.ErrDuplicate.
	CreateMatch(ctx context.Context, m *models.MatchRecord) error
	GetMatchByID(ctx context.Context, id string) (*models.MatchRecord, error)
	GetMatchByPair(ctx context.Context, a, b string) (*models.MatchRecord, error)
	// TransitionMatch applies t only if the current status is one of t.From.
	// It reports whether the record changed.
	TransitionMatch(ctx context.Context, id string, t MatchTransition) (bool, error)
	ListMatchesForIdentity(ctx context.Context, identity string, statuses ...models.MatchStatus) ([]*models.MatchRecord, error)
}

type BlockStore interface {
	CreateBlock(ctx context.Context, b *models.BlockRelation) error
	GetBlock(ctx context.Context, blocker, blocked string) (*models.BlockRelation, error)
	DeleteBlock(ctx context.Context, blocker, blocked string) error
	// BlockExists checks both directions.
	BlockExists(ctx context.Context, a, b string) (bool, error)
	ListBlocksByBlocker(ctx context.Context, blocker string) ([]*models.BlockRelation, error)
	// ListBlockedCounterparts returns every identity with a block relation to
	// identity in either direction.
	ListBlockedCounterparts(ctx context.Context, identity string) ([]string, error)
}

type ThreadStore interface {
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	FindThread(ctx context.Context, a, b, contextID string) (*models.Thread, error)
	// PersistMessage atomically creates thread if it has no ID yet (reusing
	// the existing one for the same pair and context), stores msg, updates
	// the thread's last message and increments the recipient's unread counter.
	// thread is refreshed with the stored state.
	PersistMessage(ctx context.Context, thread *models.Thread, msg *models.Message) error
	ListThreadsForIdentity(ctx context.Context, identity string) ([]*models.Thread, error)
	ListMessages(ctx context.Context, threadID string, before time.Time, limit int) ([]*models.Message, error)
	MarkDelivered(ctx context.Context, messageID string) error
	// MarkThreadRead marks reader's incoming messages read and clears reader's
	// unread counter. It returns how many messages changed.
	MarkThreadRead(ctx context.Context, threadID, reader string) (int64, error)
}

type MeetingStore interface {
	CreateMeeting(ctx context.Context, m *models.Meeting) error
	GetMeeting(ctx context.Context, id string) (*models.Meeting, error)
	ListMeetingsForMatch(ctx context.Context, matchID string) ([]*models.Meeting, error)
	UpdateMeetingStatus(ctx context.Context, id string, from []models.MeetingStatus, to models.MeetingStatus) (bool, error)
}

type ReportStore interface {
	CreateReport(ctx context.Context, r *models.Report) error
	// ListReportsAgainst returns reports filed against reported since the
	// given time, newest first.
	ListReportsAgainst(ctx context.Context, reported string, since time.Time) ([]*models.Report, error)
}

// Broadcaster carries room events to every gateway instance.
type Broadcaster interface {
	PublishRoomEvent(ctx context.Context, ev models.RoomEvent) error
	// SubscribeRoomEvents delivers events until ctx is done.
	SubscribeRoomEvents(ctx context.Context) (<-chan models.RoomEvent, error)
}

// Storage is everything the service needs from its backend.
type Storage interface {
	ProfileStore
	MatchStore
	BlockStore
	ThreadStore
	MeetingStore
	ReportStore
	Broadcaster
}

// BroadcastChannel is the Redis channel room events are published on.
const BroadcastChannel = "chat:broadcast"

// Service is the PostgreSQL + Redis backend.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

var _ Storage = (*Service)(nil)

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.MatchRecord{},
		&models.BlockRelation{},
		&models.Thread{},
		&models.Message{},
		&models.Meeting{},
		&models.Report{},
	)
}

// translate maps gorm and context errors onto the errorx taxonomy. notFound is
// returned for missing records.
func translate(err error, notFound *errorx.CodeError, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errorx.Wrap(err, errorx.KindConflict, errorx.CodeDuplicate, op+": record already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return errorx.Wrap(err, errorx.KindTimeout, errorx.CodeTimeout, op+": timed out")
	default:
		zap.L().Error("storage operation failed", zap.String("op", op), zap.Error(err))
		return errorx.Internal(err, op)
	}
}
