package models

// Frame types exchanged over the WebSocket connection.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameSend    = "send"
	FrameRead    = "read"
	FrameMessage = "message"
	FrameJoined  = "joined"
	FrameAck     = "ack"
	FrameError   = "error"
)

// ClientFrame is what a connected client sends to the gateway.
type ClientFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	// RecipientID and ContextID address a thread that may not exist yet.
	RecipientID string `json:"recipient_id,omitempty"`
	ContextID   string `json:"context_id,omitempty"`
	Content     string `json:"content,omitempty"`
	// RequestID is echoed back in acks and errors so the client can correlate.
	RequestID string `json:"request_id,omitempty"`
}

// ServerFrame is what the gateway sends to a connected client.
type ServerFrame struct {
	Type      string   `json:"type"`
	ThreadID  string   `json:"thread_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Code      string   `json:"code,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// RoomEvent is published on the broadcast channel after a message is
// persisted. Every gateway instance delivers it to the connections joined to
// the thread's room.
type RoomEvent struct {
	ThreadID string  `json:"thread_id"`
	Message  Message `json:"message"`
}
