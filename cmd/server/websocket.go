package main

import (
	"context"
	"encoding/json"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"presencehub/internal/identity"
	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// sendBufferSize bounds the per-connection outbound queue; a client
// that falls this far behind starts losing messages, not blocking
// delivery to everyone else.
const sendBufferSize = 256

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	profile := identity.FromQuery(c.Request.URL.Query())
	wsConn := &types.WebSocketConnection{
		Conn:     conn,
		ID:       ksuid.New().String(),
		Identity: profile.UserID,
		Send:     make(chan []byte, sendBufferSize),
	}

	cm := &ConnectionManager{server: s, conn: wsConn, profile: profile}

	// The request context is unreliable once the connection is hijacked.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cm.writePump(ctx)

	cm.handleConnect()
	defer cm.handleDisconnect()

	cm.readLoop(ctx)
}

// ConnectionManager drives one connection's lifecycle: group joins and
// presence registration at connect, inbound status reports while
// active, app-presence retraction at disconnect.
type ConnectionManager struct {
	server  *Server
	conn    *types.WebSocketConnection
	profile identity.Profile
}

// handleConnect joins the connection to its delivery groups and, for
// tracked roles, registers initial presence. Memberships are computed
// once here; handshake attributes never change for a live connection.
func (cm *ConnectionManager) handleConnect() {
	s := cm.server
	p := cm.profile

	s.registry.Register(cm.conn)
	if p.UserID != "" {
		s.registry.Join(cm.conn, protocol.UserGroup(p.UserID))
	}
	if p.Role != "" {
		// Joined by raw role string: publishers target un-normalized roles.
		s.registry.Join(cm.conn, protocol.RoleGroup(p.Role))
	}
	if p.Branch != "" {
		s.registry.Join(cm.conn, protocol.BranchGroup(p.Branch))
	}

	if p.NormalizedRole == identity.RoleSuperAdmin && p.UserID != "" {
		s.registry.Join(cm.conn, protocol.GroupAdminPresence)
		if p.IsApp {
			s.registry.Join(cm.conn, protocol.GroupAdminPresenceApp)
			s.registry.PublishTo(cm.conn, types.Event{
				Type: protocol.EventPresenceSnapshot,
				Data: s.store.SnapshotApp(),
			})
		} else {
			s.registry.PublishTo(cm.conn, types.Event{
				Type: protocol.EventPresenceSnapshot,
				Data: s.store.Snapshot(),
			})
		}
	}

	if identity.Tracked(p.NormalizedRole) && p.UserID != "" {
		cm.reportStatus(p.Status)
	}

	s.log.Info("socket connected",
		zap.String("conn", cm.conn.ID),
		zap.String("userId", p.UserID),
		zap.String("role", p.Role),
		zap.String("branch", p.Branch),
	)
}

// handleDisconnect tears down group memberships and retracts the
// app-only presence entry. The primary-table entry is deliberately
// left as the identity's last known status.
func (cm *ConnectionManager) handleDisconnect() {
	s := cm.server
	p := cm.profile

	s.registry.Remove(cm.conn.ID)

	if p.IsApp && p.UserID != "" && identity.Tracked(p.NormalizedRole) {
		if s.store.RemoveApp(p.UserID) {
			s.registry.Publish(protocol.GroupAdminPresenceApp, types.Event{
				Type: protocol.EventPresenceLeft,
				Data: map[string]string{"userId": p.UserID},
			})
		}
	}

	s.log.Info("socket disconnected",
		zap.String("conn", cm.conn.ID),
		zap.String("userId", p.UserID),
	)
}

func (cm *ConnectionManager) readLoop(ctx context.Context) {
	for {
		_, data, err := cm.conn.Conn.Read(ctx)
		if err != nil {
			return
		}

		var event types.Event
		if err := json.Unmarshal(data, &event); err != nil {
			cm.server.log.Debug("unparseable message",
				zap.String("conn", cm.conn.ID), zap.Error(err))
			continue
		}

		switch event.Type {
		case protocol.EventStatusReport:
			cm.handleStatusReport(event)
		default:
			cm.server.log.Debug("ignoring event",
				zap.String("conn", cm.conn.ID), zap.String("type", event.Type))
		}
	}
}

// handleStatusReport applies a client-reported status change. An
// unrecognized status defaults to "active" rather than failing.
func (cm *ConnectionManager) handleStatusReport(event types.Event) {
	p := cm.profile
	if !identity.Tracked(p.NormalizedRole) || p.UserID == "" {
		return
	}

	status := ""
	if data, ok := event.Data.(map[string]any); ok {
		if v, ok := data["status"].(string); ok {
			status = v
		}
	}
	cm.reportStatus(status)
}

// reportStatus writes the (coerced) status into the primary table and
// broadcasts the record; app-typed connections additionally update and
// broadcast the app-only view.
func (cm *ConnectionManager) reportStatus(status string) {
	s := cm.server
	p := cm.profile

	rec := s.store.Report(p.UserID, status, p.Name, p.Branch)
	s.publishPresence(types.PresenceEntry{UserID: p.UserID, PresenceRecord: rec})

	if p.IsApp {
		appRec := s.store.ReportApp(p.UserID, status, p.Name, p.Branch)
		s.publishAppPresence(types.PresenceEntry{UserID: p.UserID, PresenceRecord: appRec})
	}
}

func (cm *ConnectionManager) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-cm.conn.Send:
			if err := cm.conn.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				cm.server.log.Debug("write failed",
					zap.String("conn", cm.conn.ID), zap.Error(err))
				return
			}
		}
	}
}
