package storage

import (
	"context"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMessageMissing = errorx.New(errorx.KindNotFound, "message_not_found", "message not found")

func (s *Service) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var t models.Thread
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err, errorx.ErrThreadNotFound, "get thread")
	}
	return &t, nil
}

func (s *Service) FindThread(ctx context.Context, a, b, contextID string) (*models.Thread, error) {
	key, _, _ := models.PairKey(a, b)
	var t models.Thread
	err := s.DB.WithContext(ctx).
		Where("pair_key = ? AND context_id = ?", key, contextID).
		First(&t).Error
	if err != nil {
		return nil, translate(err, errorx.ErrThreadNotFound, "find thread")
	}
	return &t, nil
}

func (s *Service) PersistMessage(ctx context.Context, thread *models.Thread, msg *models.Message) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if thread.ID == "" {
			// A concurrent first message may create the same thread; the
			// unique (pair_key, context_id) index makes one insert a no-op.
			candidate := *thread
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
				return err
			}
			if err := tx.Where("pair_key = ? AND context_id = ?", thread.PairKey, thread.ContextID).
				First(thread).Error; err != nil {
				return err
			}
		}

		msg.ThreadID = thread.ID
		if msg.Status == "" {
			msg.Status = models.MessageSent
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		col := thread.UnreadColumn(msg.RecipientID)
		res := tx.Model(&models.Thread{}).Where("id = ?", thread.ID).Updates(map[string]interface{}{
			"last_message_id": msg.ID,
			"last_message_at": msg.CreatedAt,
			col:               gorm.Expr(col + " + 1"),
			"updated_at":      time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", thread.ID).First(thread).Error
	})
	return translate(err, errorx.ErrThreadNotFound, "persist message")
}

func (s *Service) ListThreadsForIdentity(ctx context.Context, identity string) ([]*models.Thread, error) {
	var out []*models.Thread
	err := s.DB.WithContext(ctx).
		Where("participant1_id = ? OR participant2_id = ?", identity, identity).
		Order("last_message_at desc nulls last").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, errorx.ErrThreadNotFound, "list threads")
	}
	return out, nil
}

// ListMessages returns up to limit messages older than before, oldest first.
func (s *Service) ListMessages(ctx context.Context, threadID string, before time.Time, limit int) ([]*models.Message, error) {
	var out []*models.Message
	err := s.DB.WithContext(ctx).
		Where("thread_id = ? AND created_at < ?", threadID, before).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, errorx.ErrThreadNotFound, "list messages")
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Service) MarkDelivered(ctx context.Context, messageID string) error {
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", messageID, models.MessageSent).
		Update("status", models.MessageDelivered).Error
	return translate(err, errMessageMissing, "mark delivered")
}

func (s *Service) MarkThreadRead(ctx context.Context, threadID, reader string) (int64, error) {
	var changed int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Thread
		if err := tx.Where("id = ?", threadID).First(&t).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Message{}).
			Where("thread_id = ? AND recipient_id = ? AND status <> ?", threadID, reader, models.MessageRead).
			Updates(map[string]interface{}{"status": models.MessageRead, "read_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected
		return tx.Model(&models.Thread{}).Where("id = ?", threadID).
			Update(t.UnreadColumn(reader), 0).Error
	})
	if err != nil {
		return 0, translate(err, errorx.ErrThreadNotFound, "mark thread read")
	}
	return changed, nil
}
