package chathub_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roomies/backend/internal/blocking"
	"roomies/backend/internal/chathub"
	"roomies/backend/internal/config"
	"roomies/backend/internal/errorx"
	"roomies/backend/internal/events"
	"roomies/backend/internal/models"
	"roomies/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHub struct {
	hub    *chathub.ManagerService
	mem    *storage.Memory
	blocks *blocking.Registry
}

func newTestHub(t *testing.T, store chathub.Store, checker chathub.BlockChecker, timeout time.Duration) *chathub.ManagerService {
	t.Helper()
	return runHub(t, chathub.NewManagerService(store, checker, nil, config.GatewayConfig{OpTimeout: timeout}))
}

// runHub runs hub until the test ends.
func runHub(t *testing.T, hub *chathub.ManagerService) *chathub.ManagerService {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func setup(t *testing.T) testHub {
	t.Helper()
	mem := storage.NewMemory()
	blocks := blocking.NewRegistry(mem, nil)
	addProfiles(t, mem, "alice", "bob")
	return testHub{hub: newTestHub(t, mem, blocks, time.Second), mem: mem, blocks: blocks}
}

// addProfiles stores a bare profile for every identity so threads can be
// opened towards it.
func addProfiles(t *testing.T, mem *storage.Memory, identities ...string) {
	t.Helper()
	for _, id := range identities {
		require.NoError(t, mem.UpsertProfile(context.Background(), &models.Profile{IdentityID: id, IsActive: true}))
	}
}

func connect(t *testing.T, hub *chathub.ManagerService, id, identity string) *MockClient {
	t.Helper()
	c := newMockClient(id, identity)
	want := hub.ClientCount() + 1
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == want }, time.Second, 5*time.Millisecond)
	return c
}

// seedThread creates the alice/bob thread with one message.
func seedThread(t *testing.T, th testHub) *models.Thread {
	t.Helper()
	addProfiles(t, th.mem, "alice", "bob")
	msg, err := th.hub.SendMessage(context.Background(), "alice", chathub.SendRequest{RecipientID: "bob", Content: "hi"})
	require.NoError(t, err)
	thread, err := th.mem.GetThread(context.Background(), msg.ThreadID)
	require.NoError(t, err)
	return thread
}

func TestManager_RegisterUnregister(t *testing.T) {
	th := setup(t)

	client := connect(t, th.hub, "conn-1", "alice")
	assert.True(t, client.started.Load(), "hub starts the client's pumps")

	th.hub.Unregister(client)
	require.Eventually(t, func() bool { return th.hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, client.closed.Load())
}

func TestGateway_JoinAndBroadcast(t *testing.T) {
	th := setup(t)
	thread := seedThread(t, th)

	alice := connect(t, th.hub, "conn-a", "alice")
	bob := connect(t, th.hub, "conn-b", "bob")

	th.hub.Dispatch(alice, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	alice.waitFor(t, models.FrameJoined)
	th.hub.Dispatch(bob, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID, RequestID: "r1"})
	joined := bob.waitFor(t, models.FrameJoined)
	assert.Equal(t, "r1", joined.RequestID)
	assert.Equal(t, 2, th.hub.RoomSize(thread.ID))

	th.hub.Dispatch(alice, models.ClientFrame{Type: models.FrameSend, ThreadID: thread.ID, Content: "is the room still free?", RequestID: "r2"})

	ack := alice.waitFor(t, models.FrameAck)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "r2", ack.RequestID)

	got := bob.waitFor(t, models.FrameMessage)
	require.NotNil(t, got.Message)
	assert.Equal(t, ack.Message.ID, got.Message.ID)
	assert.Equal(t, "bob", got.Message.RecipientID)

	// Reaching the recipient marks the message delivered.
	require.Eventually(t, func() bool {
		msgs, err := th.mem.ListMessages(context.Background(), thread.ID, time.Now().Add(time.Second), 10)
		return err == nil && len(msgs) == 2 && msgs[1].Status == models.MessageDelivered
	}, time.Second, 5*time.Millisecond)
}

func TestGateway_JoinRejectsNonParticipant(t *testing.T) {
	th := setup(t)
	thread := seedThread(t, th)

	mallory := connect(t, th.hub, "conn-m", "mallory")
	th.hub.Dispatch(mallory, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})

	f := mallory.waitFor(t, models.FrameError)
	assert.Equal(t, errorx.CodeNotParticipant, f.Code)
	assert.Equal(t, 0, th.hub.RoomSize(thread.ID))

	_, err := th.hub.SendMessage(context.Background(), "mallory", chathub.SendRequest{ThreadID: thread.ID, Content: "hello"})
	assert.ErrorIs(t, err, errorx.ErrNotParticipant)
}

func TestGateway_UnknownThread(t *testing.T) {
	th := setup(t)
	alice := connect(t, th.hub, "conn-a", "alice")

	th.hub.Dispatch(alice, models.ClientFrame{Type: models.FrameJoin, ThreadID: "missing"})
	assert.Equal(t, errorx.CodeThreadNotFound, alice.waitFor(t, models.FrameError).Code)
}

func TestGateway_BlockAfterJoin(t *testing.T) {
	th := setup(t)
	thread := seedThread(t, th)
	ctx := context.Background()

	alice := connect(t, th.hub, "conn-a", "alice")
	bob := connect(t, th.hub, "conn-b", "bob")
	th.hub.Dispatch(alice, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	alice.waitFor(t, models.FrameJoined)
	th.hub.Dispatch(bob, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	bob.waitFor(t, models.FrameJoined)

	// Bob blocks alice after both joined; the block is directed but applies
	// both ways.
	_, err := th.blocks.Create(ctx, "bob", "alice")
	require.NoError(t, err)

	th.hub.Dispatch(alice, models.ClientFrame{Type: models.FrameSend, ThreadID: thread.ID, Content: "hello?"})
	assert.Equal(t, errorx.CodeBlocked, alice.waitFor(t, models.FrameError).Code)
	bob.assertNoFrame(t, models.FrameMessage, 50*time.Millisecond)

	th.hub.Dispatch(bob, models.ClientFrame{Type: models.FrameSend, ThreadID: thread.ID, Content: "bye"})
	assert.Equal(t, errorx.CodeBlocked, bob.waitFor(t, models.FrameError).Code)

	th.hub.Dispatch(alice, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	assert.Equal(t, errorx.CodeBlocked, alice.waitFor(t, models.FrameError).Code)

	// Lifting the block restores messaging.
	require.NoError(t, th.blocks.Remove(ctx, "bob", "alice"))
	_, err = th.hub.SendMessage(ctx, "alice", chathub.SendRequest{ThreadID: thread.ID, Content: "sorry"})
	assert.NoError(t, err)
}

func TestGateway_FlaggedMessageIsDelivered(t *testing.T) {
	th := setup(t)
	thread := seedThread(t, th)

	bob := connect(t, th.hub, "conn-b", "bob")
	th.hub.Dispatch(bob, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	bob.waitFor(t, models.FrameJoined)

	msg, err := th.hub.SendMessage(context.Background(), "alice", chathub.SendRequest{
		ThreadID: thread.ID,
		Content:  "Please send the deposit via Western Union today",
	})
	require.NoError(t, err)
	assert.True(t, msg.Flagged())
	assert.Contains(t, []string(msg.Flags), "off_platform_payment")

	got := bob.waitFor(t, models.FrameMessage)
	require.NotNil(t, got.Message)
	assert.Equal(t, msg.ID, got.Message.ID)
	assert.NotEmpty(t, got.Message.Flags)
}

func TestGateway_UnreadCounter(t *testing.T) {
	th := setup(t)
	ctx := context.Background()

	const n = 5
	var threadID string
	for i := 0; i < n; i++ {
		msg, err := th.hub.SendMessage(ctx, "alice", chathub.SendRequest{RecipientID: "bob", ContextID: "listing-7", Content: "ping"})
		require.NoError(t, err)
		if threadID == "" {
			threadID = msg.ThreadID
		}
		assert.Equal(t, threadID, msg.ThreadID, "one thread per pair and context")
	}

	thread, err := th.mem.GetThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, n, thread.UnreadFor("bob"))
	assert.Equal(t, 0, thread.UnreadFor("alice"))
	assert.Equal(t, "listing-7", thread.ContextID)

	changed, err := th.hub.MarkRead(ctx, "bob", threadID)
	require.NoError(t, err)
	assert.EqualValues(t, n, changed)

	thread, err = th.mem.GetThread(ctx, threadID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.UnreadFor("bob"))
}

func TestGateway_ConcurrentFirstMessagesShareThread(t *testing.T) {
	th := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := th.hub.SendMessage(ctx, pair[0], chathub.SendRequest{RecipientID: pair[1], Content: "hey"})
			if assert.NoError(t, err) {
				ids[i] = msg.ThreadID
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, ids[0], ids[1])
	threads, err := th.mem.ListThreadsForIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}

func TestGateway_SendValidation(t *testing.T) {
	th := setup(t)
	ctx := context.Background()

	_, err := th.hub.SendMessage(ctx, "alice", chathub.SendRequest{RecipientID: "bob", Content: "   "})
	assert.True(t, errorx.IsKind(err, errorx.KindValidation))

	_, err = th.hub.SendMessage(ctx, "alice", chathub.SendRequest{RecipientID: "alice", Content: "me"})
	assert.ErrorIs(t, err, errorx.ErrSelfAction)

	_, err = th.hub.SendMessage(ctx, "alice", chathub.SendRequest{Content: "to nobody"})
	assert.True(t, errorx.IsKind(err, errorx.KindValidation))
}

func TestGateway_UnknownRecipient(t *testing.T) {
	th := setup(t)
	ctx := context.Background()

	_, err := th.hub.SendMessage(ctx, "alice", chathub.SendRequest{RecipientID: "no-such-user", Content: "hello?"})
	assert.ErrorIs(t, err, errorx.ErrProfileMissing)

	threads, err := th.mem.ListThreadsForIdentity(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, threads, "no thread is opened towards an unknown identity")
}

// heldPublisher holds every Emit until release is closed.
type heldPublisher struct {
	release chan struct{}
	emitted chan events.Event
}

func (p heldPublisher) Emit(_ context.Context, ev events.Event) {
	<-p.release
	p.emitted <- ev
}

func (heldPublisher) Close() error { return nil }

// TestGateway_SlowEventSinkDoesNotDelayDelivery checks a flagged message
// reaches the room before the flag event is emitted.
func TestGateway_SlowEventSinkDoesNotDelayDelivery(t *testing.T) {
	mem := storage.NewMemory()
	blocks := blocking.NewRegistry(mem, nil)
	thread := seedThread(t, testHub{hub: chathub.NewManagerService(mem, blocks, nil, config.GatewayConfig{}), mem: mem})

	pub := heldPublisher{release: make(chan struct{}), emitted: make(chan events.Event, 1)}
	release := sync.OnceFunc(func() { close(pub.release) })
	t.Cleanup(release)
	hub := runHub(t, chathub.NewManagerService(mem, blocks, pub, config.GatewayConfig{OpTimeout: time.Second}))

	bob := connect(t, hub, "conn-b", "bob")
	hub.Dispatch(bob, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	bob.waitFor(t, models.FrameJoined)

	sent := make(chan error, 1)
	go func() {
		_, err := hub.SendMessage(context.Background(), "alice", chathub.SendRequest{
			ThreadID: thread.ID,
			Content:  "Please send the deposit via Western Union today",
		})
		sent <- err
	}()

	got := bob.waitFor(t, models.FrameMessage)
	require.NotNil(t, got.Message)
	assert.NotEmpty(t, got.Message.Flags)
	assert.Empty(t, pub.emitted, "delivered while the flag event is still pending")

	release()
	select {
	case ev := <-pub.emitted:
		assert.Equal(t, events.MessageFlagged, ev.Type)
		assert.Equal(t, thread.ID, ev.Key)
	case <-time.After(time.Second):
		t.Fatal("flag event was never emitted")
	}
	require.NoError(t, <-sent)
}

// failingPersist stores nothing and reports an infrastructure error.
type failingPersist struct {
	*storage.Memory
}

func (failingPersist) PersistMessage(context.Context, *models.Thread, *models.Message) error {
	return errorx.Internal(errors.New("connection reset"), "persist message")
}

func TestGateway_PersistFailureDoesNotBroadcast(t *testing.T) {
	mem := storage.NewMemory()
	blocks := blocking.NewRegistry(mem, nil)

	seed := testHub{hub: chathub.NewManagerService(mem, blocks, nil, config.GatewayConfig{}), mem: mem}
	thread := seedThread(t, seed)

	hub := newTestHub(t, failingPersist{mem}, blocks, time.Second)
	alice := connect(t, hub, "conn-a", "alice")
	bob := connect(t, hub, "conn-b", "bob")
	hub.Dispatch(bob, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	bob.waitFor(t, models.FrameJoined)

	hub.Dispatch(alice, models.ClientFrame{Type: models.FrameSend, ThreadID: thread.ID, Content: "lost"})

	f := alice.waitFor(t, models.FrameError)
	assert.Equal(t, errorx.CodeInternal, f.Code)
	assert.Equal(t, "internal error", f.Error)
	bob.assertNoFrame(t, models.FrameMessage, 50*time.Millisecond)
	bob.assertNoFrame(t, models.FrameError, 10*time.Millisecond)
}

// stalledBlocks never answers before the deadline.
type stalledBlocks struct{}

func (stalledBlocks) Exists(ctx context.Context, _, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestGateway_TimeoutReportedToSender(t *testing.T) {
	mem := storage.NewMemory()
	seed := testHub{hub: chathub.NewManagerService(mem, blocking.NewRegistry(mem, nil), nil, config.GatewayConfig{}), mem: mem}
	thread := seedThread(t, seed)

	hub := newTestHub(t, mem, stalledBlocks{}, 20*time.Millisecond)
	alice := connect(t, hub, "conn-a", "alice")

	hub.Dispatch(alice, models.ClientFrame{Type: models.FrameSend, ThreadID: thread.ID, Content: "slow"})
	assert.Equal(t, errorx.CodeTimeout, alice.waitFor(t, models.FrameError).Code)

	msgs, err := mem.ListMessages(context.Background(), thread.ID, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "nothing persisted after a timeout")
}

func TestGateway_LeaveStopsDelivery(t *testing.T) {
	th := setup(t)
	thread := seedThread(t, th)

	bob := connect(t, th.hub, "conn-b", "bob")
	th.hub.Dispatch(bob, models.ClientFrame{Type: models.FrameJoin, ThreadID: thread.ID})
	bob.waitFor(t, models.FrameJoined)
	th.hub.Dispatch(bob, models.ClientFrame{Type: models.FrameLeave})
	assert.Equal(t, thread.ID, bob.waitFor(t, models.FrameAck).ThreadID)

	_, err := th.hub.SendMessage(context.Background(), "alice", chathub.SendRequest{ThreadID: thread.ID, Content: "anyone?"})
	require.NoError(t, err)
	bob.assertNoFrame(t, models.FrameMessage, 50*time.Millisecond)
}
