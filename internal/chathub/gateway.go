package chathub

import (
	"context"
	"errors"
	"strings"
	"time"

	"roomies/backend/internal/analysis"
	"roomies/backend/internal/errorx"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"

	"go.uber.org/zap"
)

const (
	maxContentLength    = 4000
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var (
	errEmptyContent = errorx.New(errorx.KindValidation, "empty_content", "message content is required")
	errLongContent  = errorx.New(errorx.KindValidation, "content_too_long", "message content is too long")
	errNoTarget     = errorx.New(errorx.KindValidation, "missing_thread", "thread_id or recipient_id is required")
	errUnknownFrame = errorx.New(errorx.KindValidation, "unknown_frame", "unknown frame type")
)

// SendRequest addresses a message either to an existing thread or to a
// recipient, in which case the thread for (sender, recipient, context) is
// created on first use.
type SendRequest struct {
	ThreadID    string
	RecipientID string
	ContextID   string
	Content     string
}

// Join authorizes identity to enter a thread's room.
func (m *ManagerService) Join(ctx context.Context, identity, threadID string) (*models.Thread, error) {
	thread, err := m.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, identity, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// authorize checks participation and block state. It is called for every
// join and every send, never cached.
func (m *ManagerService) authorize(ctx context.Context, identity string, thread *models.Thread) error {
	if !thread.HasParticipant(identity) {
		return errorx.ErrNotParticipant
	}
	blocked, err := m.blocks.Exists(ctx, identity, thread.Other(identity))
	if err != nil {
		return err
	}
	if blocked {
		return errorx.ErrBlocked
	}
	return nil
}

// SendMessage authorizes, scans, persists and then publishes a message.
// Nothing is published unless persistence succeeded.
func (m *ManagerService) SendMessage(ctx context.Context, identity string, req SendRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errEmptyContent
	}
	if len(content) > maxContentLength {
		return nil, errLongContent
	}

	thread, err := m.resolveThread(ctx, identity, req)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, identity, thread); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:    identity,
		RecipientID: thread.Other(identity),
		Content:     content,
		Status:      models.MessageSent,
		Flags:       analysis.ScanContent(content),
	}
	if err := m.store.PersistMessage(ctx, thread, msg); err != nil {
		return nil, err
	}

	// The message is stored; a failed publish only costs live delivery.
	if err := m.store.PublishRoomEvent(ctx, models.RoomEvent{ThreadID: thread.ID, Message: *msg}); err != nil {
		zap.L().Warn("failed to publish room event", zap.String("message_id", msg.ID), zap.Error(err))
	}

	if msg.Flagged() {
		zap.L().Info("message flagged", zap.String("message_id", msg.ID),
			zap.String("thread_id", thread.ID), zap.Strings("flags", msg.Flags))
		m.events.Emit(ctx, events.Event{Type: events.MessageFlagged, Key: thread.ID, Actor: identity,
			Attributes: map[string]string{"message_id": msg.ID, "flags": strings.Join(msg.Flags, ",")}})
	}
	return msg, nil
}

// resolveThread finds the addressed thread. A thread addressed by recipient
// that does not exist yet is returned unsaved, to be created together with
// its first message, provided the recipient has a profile.
func (m *ManagerService) resolveThread(ctx context.Context, identity string, req SendRequest) (*models.Thread, error) {
	if req.ThreadID != "" {
		return m.store.GetThread(ctx, req.ThreadID)
	}
	if req.RecipientID == "" {
		return nil, errNoTarget
	}
	if req.RecipientID == identity {
		return nil, errorx.ErrSelfAction
	}
	thread, err := m.store.FindThread(ctx, identity, req.RecipientID, req.ContextID)
	if !errors.Is(err, errorx.ErrThreadNotFound) {
		return thread, err
	}
	if _, err := m.store.GetProfileByIdentity(ctx, req.RecipientID); err != nil {
		return nil, err
	}
	return models.NewThread(identity, req.RecipientID, req.ContextID), nil
}

// MarkRead marks identity's incoming messages in the thread as read and
// clears identity's unread counter.
func (m *ManagerService) MarkRead(ctx context.Context, identity, threadID string) (int64, error) {
	thread, err := m.store.GetThread(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if !thread.HasParticipant(identity) {
		return 0, errorx.ErrNotParticipant
	}
	return m.store.MarkThreadRead(ctx, threadID, identity)
}

// ListThreads returns identity's threads, most recently active first.
func (m *ManagerService) ListThreads(ctx context.Context, identity string) ([]*models.Thread, error) {
	return m.store.ListThreadsForIdentity(ctx, identity)
}

// History returns up to limit messages older than before, oldest first.
func (m *ManagerService) History(ctx context.Context, identity, threadID string, before time.Time, limit int) ([]*models.Message, error) {
	thread, err := m.store.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(identity) {
		return nil, errorx.ErrNotParticipant
	}
	if before.IsZero() {
		before = time.Now().Add(time.Second)
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return m.store.ListMessages(ctx, threadID, before, limit)
}

// OpContext bounds one gateway operation with the configured timeout.
func (m *ManagerService) OpContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.cfg.OpTimeout)
}

// Dispatch handles one frame from c. Results and errors are sent only to c.
func (m *ManagerService) Dispatch(c Client, f models.ClientFrame) {
	ctx, cancel := m.OpContext(context.Background())
	defer cancel()

	identity := c.GetIdentity()
	switch f.Type {
	case models.FrameJoin:
		thread, err := m.Join(ctx, identity, f.ThreadID)
		if err != nil {
			m.replyError(c, f, AsTimeout(ctx, err))
			return
		}
		m.joinRoom(c, thread.ID)
		m.deliver(c, models.ServerFrame{Type: models.FrameJoined, ThreadID: thread.ID, RequestID: f.RequestID})

	case models.FrameLeave:
		threadID := m.leaveRoom(c)
		m.deliver(c, models.ServerFrame{Type: models.FrameAck, ThreadID: threadID, RequestID: f.RequestID})

	case models.FrameSend:
		msg, err := m.SendMessage(ctx, identity, SendRequest{
			ThreadID:    f.ThreadID,
			RecipientID: f.RecipientID,
			ContextID:   f.ContextID,
			Content:     f.Content,
		})
		if err != nil {
			m.replyError(c, f, AsTimeout(ctx, err))
			return
		}
		m.deliver(c, models.ServerFrame{Type: models.FrameAck, ThreadID: msg.ThreadID, RequestID: f.RequestID, Message: msg})

	case models.FrameRead:
		if _, err := m.MarkRead(ctx, identity, f.ThreadID); err != nil {
			m.replyError(c, f, AsTimeout(ctx, err))
			return
		}
		m.deliver(c, models.ServerFrame{Type: models.FrameAck, ThreadID: f.ThreadID, RequestID: f.RequestID})

	default:
		m.replyError(c, f, errUnknownFrame)
	}
}

func (m *ManagerService) replyError(c Client, f models.ClientFrame, err error) {
	code := errorx.CodeOf(err)
	msg := err.Error()
	if errorx.KindOf(err) == errorx.KindInternal {
		zap.L().Error("gateway operation failed", zap.String("conn_id", c.GetID()),
			zap.String("frame", f.Type), zap.Error(err))
		msg = "internal error"
	}
	m.deliver(c, models.ServerFrame{
		Type:      models.FrameError,
		ThreadID:  f.ThreadID,
		RequestID: f.RequestID,
		Code:      code,
		Error:     msg,
	})
}

// AsTimeout reports an exceeded operation deadline as a timeout whatever
// layer surfaced it.
func AsTimeout(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errorx.Wrap(err, errorx.KindTimeout, errorx.CodeTimeout, "operation timed out")
	}
	return err
}
