package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presencehub/internal/auth"
	"presencehub/internal/config"
	"presencehub/internal/types"
)

func newTestServer() *Server {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 0,
			CORS: config.CORSConfig{AllowOrigins: []string{"http://allowed.example"}},
		},
		Auth: config.AuthConfig{JWTSecret: "test-secret"},
		Log:  config.LogConfig{Level: "info", Format: "json"},
	}
	return NewServer(cfg, zap.NewNop())
}

func testToken(t *testing.T, s *Server, claims auth.Claims) string {
	t.Helper()
	token, err := s.verifier.Sign(claims, time.Hour)
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return token
}

// fakeConn builds a registry-only connection whose deliveries can be
// inspected through its Send channel.
func fakeConn(id, identity string) *types.WebSocketConnection {
	return &types.WebSocketConnection{ID: id, Identity: identity, Send: make(chan []byte, 16)}
}

// takeEvent pops one delivered event from a fake connection, failing
// the test when none arrives in time.
func takeEvent(t *testing.T, conn *types.WebSocketConnection) types.Event {
	t.Helper()
	select {
	case msg := <-conn.Send:
		var event types.Event
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal delivered event: %v", err)
		}
		return event
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
		return types.Event{}
	}
}

// noEvent asserts nothing was delivered to a fake connection.
func noEvent(t *testing.T, conn *types.WebSocketConnection) {
	t.Helper()
	select {
	case msg := <-conn.Send:
		t.Fatalf("unexpected delivery: %s", msg)
	case <-time.After(150 * time.Millisecond):
	}
}

// readWSEvent reads one JSON event from a live websocket connection.
func readWSEvent(t *testing.T, conn *websocket.Conn) types.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("websocket read: %v", err)
	}
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal websocket event: %v", err)
	}
	return event
}

// eventDataMap returns an event's data as a JSON object.
func eventDataMap(t *testing.T, event types.Event) map[string]any {
	t.Helper()
	data, ok := event.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object event data, got %T", event.Data)
	}
	return data
}
