// Package chathub is the real-time messaging gateway. Connections join thread
// rooms; every join and every send re-checks participation and block state.
// Persisted messages are published on the broadcast channel, and every
// gateway instance delivers them to the connections joined to the room.
package chathub

import (
	"context"
	"sync"
	"time"

	"roomies/backend/internal/config"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"
	"roomies/backend/internal/storage"

	"go.uber.org/zap"
)

// Store is the part of storage the gateway needs.
type Store interface {
	storage.ThreadStore
	storage.Broadcaster
	GetProfileByIdentity(ctx context.Context, identity string) (*models.Profile, error)
}

// BlockChecker reports whether a block exists between two identities in
// either direction.
type BlockChecker interface {
	Exists(ctx context.Context, a, b string) (bool, error)
}

// ManagerService is the hub. Registration goes through RegisterCh and
// UnregisterCh, processed by Run. The room registry is guarded by mu because
// frames are dispatched from each connection's own read pump.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client            // conn id -> client
	rooms   map[string]map[string]Client // thread id -> conn id -> client
	joined  map[string]string            // conn id -> thread id

	RegisterCh   chan Client
	UnregisterCh chan Client
	done         chan struct{}

	store  Store
	blocks BlockChecker
	events events.Publisher
	cfg    config.GatewayConfig
}

func NewManagerService(store Store, blocks BlockChecker, pub events.Publisher, cfg config.GatewayConfig) *ManagerService {
	if pub == nil {
		pub = events.Noop{}
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	return &ManagerService{
		clients:      make(map[string]Client),
		rooms:        make(map[string]map[string]Client),
		joined:       make(map[string]string),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		done:         make(chan struct{}),
		store:        store,
		blocks:       blocks,
		events:       pub,
		cfg:          cfg,
	}
}

// Run subscribes to room events and processes registrations until ctx is done.
func (m *ManagerService) Run(ctx context.Context) error {
	defer close(m.done)

	roomEvents, err := m.store.SubscribeRoomEvents(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("chat hub started")

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			zap.L().Info("chat hub stopped")
			return nil

		case c := <-m.RegisterCh:
			m.register(c)

		case c := <-m.UnregisterCh:
			m.unregister(c)

		case ev, ok := <-roomEvents:
			if !ok {
				m.closeAll()
				return nil
			}
			m.fanOut(ev)
		}
	}
}

// Register hands c to the hub, which starts its pumps.
func (m *ManagerService) Register(c Client) {
	select {
	case m.RegisterCh <- c:
	case <-m.done:
		c.Close()
	}
}

// Unregister removes c from the hub and closes it.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

func (m *ManagerService) register(c Client) {
	m.mu.Lock()
	m.clients[c.GetID()] = c
	m.mu.Unlock()

	zap.L().Debug("client registered", zap.String("conn_id", c.GetID()), zap.String("identity", c.GetIdentity()))
	c.Run()
}

func (m *ManagerService) unregister(c Client) {
	m.mu.Lock()
	_, ok := m.clients[c.GetID()]
	if ok {
		delete(m.clients, c.GetID())
		m.leaveLocked(c.GetID())
	}
	m.mu.Unlock()

	if ok {
		// After removal no deliver call can reach the send channel.
		c.Close()
		zap.L().Debug("client unregistered", zap.String("conn_id", c.GetID()))
	}
}

func (m *ManagerService) closeAll() {
	m.mu.Lock()
	clients := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]Client)
	m.rooms = make(map[string]map[string]Client)
	m.joined = make(map[string]string)
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// joinRoom moves the connection into threadID's room. A connection is in at
// most one room.
func (m *ManagerService) joinRoom(c Client, threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[c.GetID()]; !ok {
		return false
	}
	m.leaveLocked(c.GetID())
	room := m.rooms[threadID]
	if room == nil {
		room = make(map[string]Client)
		m.rooms[threadID] = room
	}
	room[c.GetID()] = c
	m.joined[c.GetID()] = threadID
	return true
}

func (m *ManagerService) leaveRoom(c Client) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(c.GetID())
}

func (m *ManagerService) leaveLocked(connID string) string {
	threadID, ok := m.joined[connID]
	if !ok {
		return ""
	}
	delete(m.joined, connID)
	if room := m.rooms[threadID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(m.rooms, threadID)
		}
	}
	return threadID
}

// RoomSize returns how many connections are joined to threadID.
func (m *ManagerService) RoomSize(threadID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[threadID])
}

// ClientCount returns how many connections are registered.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// deliver queues f for c without blocking. Frames for a client whose buffer
// is full are dropped; delivery is best-effort.
func (m *ManagerService) deliver(c Client, f models.ServerFrame) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.clients[c.GetID()]; !ok {
		return false
	}
	select {
	case c.GetSendChannel() <- f:
		return true
	default:
		zap.L().Warn("client send buffer full, dropping frame",
			zap.String("conn_id", c.GetID()), zap.String("type", f.Type))
		return false
	}
}

// fanOut delivers a room event to every local connection joined to its
// thread. A delivery to the recipient marks the message delivered.
func (m *ManagerService) fanOut(ev models.RoomEvent) {
	msg := ev.Message
	frame := models.ServerFrame{Type: models.FrameMessage, ThreadID: ev.ThreadID, Message: &msg}

	recipientReached := false
	m.mu.RLock()
	for _, c := range m.rooms[ev.ThreadID] {
		select {
		case c.GetSendChannel() <- frame:
			if c.GetIdentity() == msg.RecipientID {
				recipientReached = true
			}
		default:
			zap.L().Warn("client send buffer full, dropping message",
				zap.String("conn_id", c.GetID()), zap.String("message_id", msg.ID))
		}
	}
	m.mu.RUnlock()

	if recipientReached && msg.Status == models.MessageSent {
		go m.markDelivered(msg.ID)
	}
}

func (m *ManagerService) markDelivered(messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.OpTimeout)
	defer cancel()
	if err := m.store.MarkDelivered(ctx, messageID); err != nil {
		zap.L().Warn("failed to mark message delivered", zap.String("message_id", messageID), zap.Error(err))
	}
}
