// Package events emits domain events (match transitions, blocks, meetings,
// flagged messages, reports) to the external analytics collaborator over Kafka.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"roomies/backend/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types.
const (
	MatchInterest   = "match.interest"
	MatchConfirmed  = "match.confirmed"
	MatchDeclined   = "match.declined"
	MatchCancelled  = "match.cancelled"
	BlockCreated    = "block.created"
	BlockRemoved    = "block.removed"
	MeetingCreated  = "meeting.scheduled"
	MeetingUpdated  = "meeting.updated"
	MessageFlagged  = "message.flagged"
	ProfileDisabled = "profile.deactivated"
	ReportFiled     = "report.filed"
	ProfileSuspend  = "profile.suspended"
)

// Event is one domain event. Key groups related events on one partition.
type Event struct {
	Type       string            `json:"type"`
	Key        string            `json:"key"`
	Actor      string            `json:"actor,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher accepts domain events. Emit never fails the calling operation;
// delivery problems are logged.
type Publisher interface {
	Emit(ctx context.Context, ev Event)
	Close() error
}

// New returns a Kafka publisher when brokers are configured and a no-op
// publisher otherwise.
func New(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		zap.L().Info("kafka brokers not configured, domain events disabled")
		return Noop{}
	}
	return NewKafka(cfg)
}

// Kafka writes events as JSON to a single topic.
// Kafka queues events and writes them from a background goroutine, so Emit
// never waits on the brokers. Events are dropped when the queue is full.
type Kafka struct {
	writer  *kafka.Writer
	timeout time.Duration
	queue   chan kafka.Message

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

const (
	defaultWriteTimeout = 5 * time.Second
	queueSize           = 1024
	maxBatch            = 100
)

func NewKafka(cfg config.KafkaConfig) *Kafka {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWriteTimeout
	}
	k := &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              maxBatch,
			BatchTimeout:           10 * time.Millisecond,
			MaxAttempts:            3,
			WriteTimeout:           cfg.Timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		timeout: cfg.Timeout,
		queue:   make(chan kafka.Message, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *Kafka) Emit(_ context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("failed to encode event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	select {
	case <-k.done:
		zap.L().Warn("event dropped, publisher closed", zap.String("type", ev.Type))
		return
	default:
	}
	select {
	case k.queue <- kafka.Message{Key: []byte(ev.Key), Value: payload}:
	default:
		zap.L().Warn("event queue full, dropping event", zap.String("type", ev.Type))
	}
}

func (k *Kafka) run() {
	defer close(k.stopped)
	for {
		select {
		case msg := <-k.queue:
			k.write(k.batch(msg))
		case <-k.done:
			for {
				select {
				case msg := <-k.queue:
					k.write(k.batch(msg))
				default:
					return
				}
			}
		}
	}
}

// batch collects whatever is already queued behind first.
func (k *Kafka) batch(first kafka.Message) []kafka.Message {
	msgs := []kafka.Message{first}
	for len(msgs) < maxBatch {
		select {
		case msg := <-k.queue:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
	return msgs
}

func (k *Kafka) write(msgs []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		zap.L().Warn("failed to publish events", zap.Int("count", len(msgs)), zap.Error(err))
	}
}

// Close flushes the queued events, each write bounded by the configured
// timeout, and closes the writer.
func (k *Kafka) Close() error {
	k.closeOnce.Do(func() {
		close(k.done)
		<-k.stopped
		k.closeErr = k.writer.Close()
	})
	return k.closeErr
}

// Noop drops every event.
type Noop struct{}

func (Noop) Emit(context.Context, Event) {}
func (Noop) Close() error                { return nil }

// Recorder keeps events in memory. Tests use it to assert on emissions.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Close() error { return nil }

// Types returns the recorded event types in emission order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
