// Package client is a Go client for the presence relay: it dials the
// websocket endpoint with handshake fields, reports liveness status
// and surfaces server events through an EventHandler.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	cidpkg "presencehub/internal/cid"
	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// Config holds the handshake fields sent when dialing the relay. All
// fields except ServerURL are optional; an empty UserID connects
// anonymously.
type Config struct {
	ServerURL  string // base URL, e.g. "ws://localhost:4000"
	UserID     string
	Role       string
	Branch     string
	Name       string
	ClientType string // "app" or empty for web
	Status     string // initial status for tracked roles
	UserAgent  string
}

// EventHandler defines callbacks for handling server events.
type EventHandler interface {
	OnConnected()
	OnDisconnected()
	OnNotification(payload any)
	OnPresence(entry types.PresenceEntry)
	OnPresenceSnapshot(entries []types.PresenceEntry)
	OnPresenceLeft(userID string)
	OnServerEvent(eventType string, data any)
}

// DefaultEventHandler provides a basic logging implementation of EventHandler.
type DefaultEventHandler struct{}

func (h *DefaultEventHandler) OnConnected()    { log.Printf("connected to relay") }
func (h *DefaultEventHandler) OnDisconnected() { log.Printf("disconnected from relay") }
func (h *DefaultEventHandler) OnNotification(payload any) {
	log.Printf("notification: %v", payload)
}
func (h *DefaultEventHandler) OnPresence(entry types.PresenceEntry) {
	log.Printf("presence: %s is %s", entry.UserID, entry.Status)
}
func (h *DefaultEventHandler) OnPresenceSnapshot(entries []types.PresenceEntry) {
	log.Printf("presence snapshot: %d entries", len(entries))
}
func (h *DefaultEventHandler) OnPresenceLeft(userID string) {
	log.Printf("presence left: %s", userID)
}
func (h *DefaultEventHandler) OnServerEvent(eventType string, data any) {
	log.Printf("event: %s", eventType)
}

// Client is one connection to the relay.
type Client struct {
	config    Config
	conn      *websocket.Conn
	connected bool
	handler   EventHandler
}

func New(config Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = "presencehub-client/1.0"
	}
	return &Client{config: config, handler: &DefaultEventHandler{}}
}

// SetEventHandler sets a custom event handler.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.handler = handler
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.connected
}

// DialURL returns the websocket URL including the handshake query.
func (c *Client) DialURL() (string, error) {
	u, err := url.Parse(c.config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	u.Path = "/ws"

	q := u.Query()
	set := func(key, val string) {
		if val != "" {
			q.Set(key, val)
		}
	}
	set("userId", c.config.UserID)
	set("role", c.config.Role)
	set("branch", c.config.Branch)
	set("name", c.config.Name)
	set("clientType", c.config.ClientType)
	set("status", c.config.Status)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	dialURL, err := c.DialURL()
	if err != nil {
		return err
	}

	headers := map[string][]string{"User-Agent": {c.config.UserAgent}}
	cidpkg.AddHeaderFromContext(headers, ctx)

	conn, _, err := websocket.Dial(ctx, dialURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.handler.OnConnected()
	return nil
}

// Disconnect closes the websocket connection.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	c.connected = false
	err := c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
	c.handler.OnDisconnected()
	return err
}

// ReportStatus sends a status report. The server coerces values
// outside the enum to "active".
func (c *Client) ReportStatus(ctx context.Context, status string) error {
	if !c.connected {
		return fmt.Errorf("client not connected")
	}
	return wsjson.Write(ctx, c.conn, types.Event{
		Type: protocol.EventStatusReport,
		Data: map[string]string{"status": status},
	})
}

// Listen reads server events until the context is canceled or the
// connection drops (blocking).
func (c *Client) Listen(ctx context.Context) error {
	for {
		var event types.Event
		if err := wsjson.Read(ctx, c.conn, &event); err != nil {
			c.connected = false
			return fmt.Errorf("read error: %w", err)
		}
		c.handleServerEvent(event)
	}
}

func (c *Client) handleServerEvent(event types.Event) {
	switch event.Type {
	case protocol.EventNotification:
		c.handler.OnNotification(event.Data)
	case protocol.EventPresence:
		var entry types.PresenceEntry
		if decodeInto(event.Data, &entry) == nil {
			c.handler.OnPresence(entry)
		}
	case protocol.EventPresenceSnapshot:
		var entries []types.PresenceEntry
		if decodeInto(event.Data, &entries) == nil {
			c.handler.OnPresenceSnapshot(entries)
		}
	case protocol.EventPresenceLeft:
		var left struct {
			UserID string `json:"userId"`
		}
		if decodeInto(event.Data, &left) == nil {
			c.handler.OnPresenceLeft(left.UserID)
		}
	default:
		c.handler.OnServerEvent(event.Type, event.Data)
	}
}

// decodeInto re-marshals a decoded JSON value into a typed structure.
func decodeInto(data any, target any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}
