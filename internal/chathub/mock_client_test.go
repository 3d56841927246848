package chathub_test

import (
	"sync/atomic"
	"testing"
	"time"

	"roomies/backend/internal/models"
)

type MockClient struct {
	id       string
	identity string
	send     chan models.ServerFrame
	started  atomic.Bool
	closed   atomic.Bool
}

func newMockClient(id, identity string) *MockClient {
	return &MockClient{
		id:       id,
		identity: identity,
		send:     make(chan models.ServerFrame, 32),
	}
}

func (c *MockClient) GetID() string                             { return c.id }
func (c *MockClient) GetIdentity() string                       { return c.identity }
func (c *MockClient) GetSendChannel() chan<- models.ServerFrame { return c.send }
func (c *MockClient) Run()                                      { c.started.Store(true) }
func (c *MockClient) Close()                                    { c.closed.Store(true) }

// waitFor returns the next frame of the given type, skipping others.
func (c *MockClient) waitFor(t *testing.T, frameType string) models.ServerFrame {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case f := <-c.send:
			if f.Type == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("client %s: no %q frame received", c.id, frameType)
			return models.ServerFrame{}
		}
	}
}

// assertNoFrame fails if a frame of the given type arrives within d.
func (c *MockClient) assertNoFrame(t *testing.T, frameType string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case f := <-c.send:
			if f.Type == frameType {
				t.Fatalf("client %s: unexpected %q frame: %+v", c.id, frameType, f)
			}
		case <-deadline:
			return
		}
	}
}
