package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"
)

// Memory is an in-process Storage. Every entity kind lives in its own keyed
// collection and is copied on the way in and out, so callers never share
// state with the store. All operations are guarded by one lock, which makes
// conditional updates atomic the same way a single SQL UPDATE is.
type Memory struct {
	mu sync.RWMutex

	profiles map[string]*models.Profile     // identity -> profile
	matches  map[string]*models.MatchRecord // id -> match
	pairs    map[string]string              // pair key -> match id
	blocks   map[[2]string]*models.BlockRelation
	threads  map[string]*models.Thread  // id -> thread
	threadIx map[string]string          // pair key + context -> thread id
	messages map[string]*models.Message // id -> message
	byThread map[string][]string        // thread id -> message ids in persistence order
	meetings map[string]*models.Meeting
	reports  []*models.Report

	subMu sync.Mutex
	subs  map[chan models.RoomEvent]struct{}
}

var _ Storage = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]*models.Profile),
		matches:  make(map[string]*models.MatchRecord),
		pairs:    make(map[string]string),
		blocks:   make(map[[2]string]*models.BlockRelation),
		threads:  make(map[string]*models.Thread),
		threadIx: make(map[string]string),
		messages: make(map[string]*models.Message),
		byThread: make(map[string][]string),
		meetings: make(map[string]*models.Meeting),
		subs:     make(map[chan models.RoomEvent]struct{}),
	}
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errorx.Wrap(err, errorx.KindTimeout, errorx.CodeTimeout, "storage call cancelled")
	}
	return nil
}

// Profiles

func (m *Memory) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.profiles[p.IdentityID]; ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		_ = p.BeforeCreate(nil)
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	}
	p.UpdatedAt = now
	cp := *p
	m.profiles[p.IdentityID] = &cp
	return nil
}

func (m *Memory) GetProfileByIdentity(ctx context.Context, identity string) (*models.Profile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[identity]
	if !ok {
		return nil, errorx.ErrProfileMissing
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListActiveProfiles(ctx context.Context, exclude string) ([]*models.Profile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Profile, 0, len(m.profiles))
	for identity, p := range m.profiles {
		if identity == exclude || !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SetProfileActive(ctx context.Context, identity string, active bool) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[identity]
	if !ok {
		return errorx.ErrProfileMissing
	}
	p.IsActive = active
	p.UpdatedAt = time.Now()
	return nil
}

// Matches

func (m *Memory) CreateMatch(ctx context.Context, rec *models.MatchRecord) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pairs[rec.PairKey]; exists {
		return errorx.ErrDuplicate
	}
	_ = rec.BeforeCreate(nil)
	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	cp := *rec
	m.matches[rec.ID] = &cp
	m.pairs[rec.PairKey] = rec.ID
	return nil
}

func (m *Memory) GetMatchByID(ctx context.Context, id string) (*models.MatchRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.matches[id]
	if !ok {
		return nil, errorx.ErrMatchNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) GetMatchByPair(ctx context.Context, a, b string) (*models.MatchRecord, error) {
	key, _, _ := models.PairKey(a, b)
	m.mu.RLock()
	id, ok := m.pairs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, errorx.ErrMatchNotFound
	}
	return m.GetMatchByID(ctx, id)
}

func (m *Memory) TransitionMatch(ctx context.Context, id string, t MatchTransition) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.matches[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range t.From {
		if rec.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}

	now := time.Now()
	rec.Status = t.To
	rec.UpdatedAt = now
	switch t.To {
	case models.MatchConfirmed:
		rec.ConfirmedBy = t.Actor
		rec.ConfirmedAt = &now
	case models.MatchDeclined:
		rec.DeclinedBy = t.Actor
	case models.MatchCancelled:
		rec.CancelledBy = t.Actor
	case models.MatchPending:
		rec.InitiatorID = t.Actor
		rec.CancelledBy = ""
	}
	return true, nil
}

func (m *Memory) ListMatchesForIdentity(ctx context.Context, identity string, statuses ...models.MatchStatus) ([]*models.MatchRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.MatchRecord
	for _, rec := range m.matches {
		if !rec.Involves(identity) {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, rec.Status) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func containsStatus(list []models.MatchStatus, s models.MatchStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Blocks

func (m *Memory) CreateBlock(ctx context.Context, b *models.BlockRelation) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]string{b.BlockerID, b.BlockedID}
	if _, exists := m.blocks[key]; exists {
		return errorx.ErrDuplicate
	}
	_ = b.BeforeCreate(nil)
	b.CreatedAt = time.Now()
	cp := *b
	m.blocks[key] = &cp
	return nil
}

func (m *Memory) GetBlock(ctx context.Context, blocker, blocked string) (*models.BlockRelation, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blocks[[2]string{blocker, blocked}]
	if !ok {
		return nil, errBlockMissing
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) DeleteBlock(ctx context.Context, blocker, blocked string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blocks, [2]string{blocker, blocked})
	return nil
}

func (m *Memory) BlockExists(ctx context.Context, a, b string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ab := m.blocks[[2]string{a, b}]
	_, ba := m.blocks[[2]string{b, a}]
	return ab || ba, nil
}

func (m *Memory) ListBlocksByBlocker(ctx context.Context, blocker string) ([]*models.BlockRelation, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.BlockRelation
	for key, b := range m.blocks {
		if key[0] == blocker {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListBlockedCounterparts(ctx context.Context, identity string) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for key := range m.blocks {
		switch identity {
		case key[0]:
			out = append(out, key[1])
		case key[1]:
			out = append(out, key[0])
		}
	}
	return out, nil
}

// Threads and messages

func threadIndexKey(pairKey, contextID string) string {
	return pairKey + "#" + contextID
}

func (m *Memory) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.threads[id]
	if !ok {
		return nil, errorx.ErrThreadNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) FindThread(ctx context.Context, a, b, contextID string) (*models.Thread, error) {
	key, _, _ := models.PairKey(a, b)
	m.mu.RLock()
	id, ok := m.threadIx[threadIndexKey(key, contextID)]
	m.mu.RUnlock()
	if !ok {
		return nil, errorx.ErrThreadNotFound
	}
	return m.GetThread(ctx, id)
}

func (m *Memory) PersistMessage(ctx context.Context, thread *models.Thread, msg *models.Message) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var stored *models.Thread
	if thread.ID == "" {
		ix := threadIndexKey(thread.PairKey, thread.ContextID)
		if id, ok := m.threadIx[ix]; ok {
			stored = m.threads[id]
		} else {
			cp := *thread
			_ = cp.BeforeCreate(nil)
			cp.CreatedAt, cp.UpdatedAt = now, now
			m.threads[cp.ID] = &cp
			m.threadIx[ix] = cp.ID
			stored = &cp
		}
	} else {
		var ok bool
		if stored, ok = m.threads[thread.ID]; !ok {
			return errorx.ErrThreadNotFound
		}
	}

	_ = msg.BeforeCreate(nil)
	msg.ThreadID = stored.ID
	if msg.Status == "" {
		msg.Status = models.MessageSent
	}
	msg.CreatedAt = now
	cp := *msg
	m.messages[msg.ID] = &cp
	m.byThread[stored.ID] = append(m.byThread[stored.ID], msg.ID)

	stored.LastMessageID = msg.ID
	stored.LastMessageAt = &now
	stored.IncrementUnread(msg.RecipientID)
	stored.UpdatedAt = now
	*thread = *stored
	return nil
}

func (m *Memory) ListThreadsForIdentity(ctx context.Context, identity string) ([]*models.Thread, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Thread
	for _, t := range m.threads {
		if t.HasParticipant(identity) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})
	return out, nil
}

func (m *Memory) ListMessages(ctx context.Context, threadID string, before time.Time, limit int) ([]*models.Message, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byThread[threadID]
	var out []*models.Message
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		msg := m.messages[ids[i]]
		if !msg.CreatedAt.Before(before) {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *Memory) MarkDelivered(ctx context.Context, messageID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return errMessageMissing
	}
	if msg.Status == models.MessageSent {
		msg.Status = models.MessageDelivered
	}
	return nil
}

func (m *Memory) MarkThreadRead(ctx context.Context, threadID, reader string) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.threads[threadID]
	if !ok {
		return 0, errorx.ErrThreadNotFound
	}
	now := time.Now()
	var changed int64
	for _, id := range m.byThread[threadID] {
		msg := m.messages[id]
		if msg.RecipientID == reader && msg.Status != models.MessageRead {
			msg.Status = models.MessageRead
			readAt := now
			msg.ReadAt = &readAt
			changed++
		}
	}
	t.ResetUnread(reader)
	return changed, nil
}

// Meetings

func (m *Memory) CreateMeeting(ctx context.Context, mt *models.Meeting) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = mt.BeforeCreate(nil)
	now := time.Now()
	mt.CreatedAt, mt.UpdatedAt = now, now
	cp := *mt
	m.meetings[mt.ID] = &cp
	return nil
}

func (m *Memory) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	mt, ok := m.meetings[id]
	if !ok {
		return nil, errorx.ErrMeetingMissing
	}
	cp := *mt
	return &cp, nil
}

func (m *Memory) ListMeetingsForMatch(ctx context.Context, matchID string) ([]*models.Meeting, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Meeting
	for _, mt := range m.meetings {
		if mt.MatchID == matchID {
			cp := *mt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *Memory) UpdateMeetingStatus(ctx context.Context, id string, from []models.MeetingStatus, to models.MeetingStatus) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.meetings[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if mt.Status == s {
			mt.Status = to
			mt.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

// Reports

func (m *Memory) CreateReport(ctx context.Context, r *models.Report) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = r.BeforeCreate(nil)
	r.CreatedAt = time.Now()
	cp := *r
	m.reports = append(m.reports, &cp)
	return nil
}

func (m *Memory) ListReportsAgainst(ctx context.Context, reported string, since time.Time) ([]*models.Report, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Report
	for i := len(m.reports) - 1; i >= 0; i-- {
		r := m.reports[i]
		if r.ReportedID == reported && !r.CreatedAt.Before(since) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Room events

func (m *Memory) PublishRoomEvent(ctx context.Context, ev models.RoomEvent) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; broadcast is best-effort.
		}
	}
	return nil
}

func (m *Memory) SubscribeRoomEvents(ctx context.Context) (<-chan models.RoomEvent, error) {
	ch := make(chan models.RoomEvent, 256)
	m.subMu.Lock()
	m.subs[ch] = struct{}{}
	m.subMu.Unlock()

	go func() {
		<-ctx.Done()
		m.subMu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.subMu.Unlock()
	}()
	return ch, nil
}
