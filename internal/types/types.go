package types

import (
	"time"

	"github.com/coder/websocket"
)

// PresenceRecord is the last reported liveness state for one identity.
type PresenceRecord struct {
	Status    string    `json:"status"` // "active", "idle" or "on_call"
	Name      string    `json:"name,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PresenceEntry is a PresenceRecord keyed by its identity, the shape
// broadcast to admin observers and returned in snapshots.
type PresenceEntry struct {
	UserID string `json:"userId"`
	PresenceRecord
}

// Handshake carries the raw connect-time fields supplied by a client.
// All fields are optional; anonymous connections are allowed.
type Handshake struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	Branch     string `json:"branch"`
	Name       string `json:"name"`
	ClientType string `json:"clientType"` // "app" or absent/other => web
	Status     string `json:"status"`
}

// Event is the envelope for every JSON message on a websocket, in both
// directions. Data is forwarded verbatim for notifications.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Notification is the /emit request body: an opaque payload plus at
// most one target descriptor. TargetUserID is any because upstream
// callers send identities as either strings or numbers.
type Notification struct {
	Notification any    `json:"notification"`
	TargetUserID any    `json:"targetUserId,omitempty"`
	TargetRole   string `json:"targetRole,omitempty"`
	TargetBranch string `json:"targetBranch,omitempty"`
}

// WebSocketConnection is one live channel to one client. Send is
// drained by a per-connection write pump; publishers enqueue without
// blocking so one slow client cannot delay its siblings.
type WebSocketConnection struct {
	Conn     *websocket.Conn
	ID       string // connection id, unique per accept
	Identity string // empty for anonymous connections
	Send     chan []byte
}
