package chathub

import "roomies/backend/internal/models"

// Client is one live connection to the gateway. It abstracts the transport so
// the hub can manage WebSocket connections and test doubles uniformly.
type Client interface {
	// GetID returns the connection ID. One identity may hold several
	// connections.
	GetID() string
	// GetIdentity returns the verified identity the connection was opened with.
	GetIdentity() string

	// GetSendChannel returns the channel the hub writes outgoing frames to.
	GetSendChannel() chan<- models.ServerFrame

	// Run starts the client's read and write pumps. The hub calls it once the
	// client is registered.
	Run()
	// Close shuts the connection down. The hub calls it after unregistering.
	Close()
}
