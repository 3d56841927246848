package storage

import (
	"context"
	"encoding/json"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"

	"go.uber.org/zap"
)

// PublishRoomEvent publishes ev on the Redis broadcast channel.
func (s *Service) PublishRoomEvent(ctx context.Context, ev models.RoomEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errorx.Internal(err, "encode room event")
	}
	if err := s.Redis.Publish(ctx, BroadcastChannel, payload).Err(); err != nil {
		return errorx.Internal(err, "publish room event")
	}
	return nil
}

// SubscribeRoomEvents listens on the Redis broadcast channel until ctx is done.
func (s *Service) SubscribeRoomEvents(ctx context.Context) (<-chan models.RoomEvent, error) {
	pubsub := s.Redis.Subscribe(ctx, BroadcastChannel)
	// Wait for the subscription confirmation so no event published after
	// this call returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errorx.Internal(err, "subscribe room events")
	}

	out := make(chan models.RoomEvent, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev models.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					zap.L().Warn("dropping malformed room event", zap.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
