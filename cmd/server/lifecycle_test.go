package main

import (
	"testing"

	"presencehub/internal/identity"
	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// newTestCM builds a ConnectionManager around a registry-only fake
// connection, bypassing the websocket accept path.
func newTestCM(s *Server, connID string, p identity.Profile) (*ConnectionManager, *types.WebSocketConnection) {
	conn := fakeConn(connID, p.UserID)
	return &ConnectionManager{server: s, conn: conn, profile: p}, conn
}

func profileFor(userID, role, branch, name, clientType, status string) identity.Profile {
	return identity.FromHandshake(userID, role, branch, name, clientType, status)
}

func TestConnectJoinsRawRoleGroup(t *testing.T) {
	s := newTestServer()
	cm, conn := newTestCM(s, "c1", profileFor("u1", "Branch Manager", "", "", "", ""))
	cm.handleConnect()

	// Publishers target the raw, un-normalized role string.
	if sent := s.registry.Publish(protocol.RoleGroup("Branch Manager"), types.Event{Type: "notification"}); sent != 1 {
		t.Fatalf("expected raw-role group membership, got %d deliveries", sent)
	}
	takeEvent(t, conn)
	if sent := s.registry.Publish(protocol.RoleGroup("branchmanager"), types.Event{Type: "notification"}); sent != 0 {
		t.Fatalf("normalized role must not be a delivery group")
	}
}

func TestAnonymousConnectJoinsNothingButReceivesBroadcasts(t *testing.T) {
	s := newTestServer()
	cm, conn := newTestCM(s, "c1", profileFor("", "", "", "", "", ""))
	cm.handleConnect()

	if sent := s.registry.Broadcast(types.Event{Type: "notification"}); sent != 1 {
		t.Fatalf("expected anonymous connection to receive global broadcasts, got %d", sent)
	}
	takeEvent(t, conn)
	if len(s.store.Snapshot()) != 0 {
		t.Fatalf("anonymous connections must not register presence")
	}
}

func TestSuperAdminWebGetsPrimarySnapshot(t *testing.T) {
	s := newTestServer()
	s.store.Report("42", "on_call", "Jo", "pune")
	s.store.ReportApp("77", "idle", "", "")

	cm, conn := newTestCM(s, "c1", profileFor("boss", "super_admin", "", "", "", ""))
	cm.handleConnect()

	event := takeEvent(t, conn)
	if event.Type != protocol.EventPresenceSnapshot {
		t.Fatalf("expected snapshot at admin join, got %q", event.Type)
	}
	entries, ok := event.Data.([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("expected primary table snapshot with one entry, got %v", event.Data)
	}
	entry := entries[0].(map[string]any)
	if entry["userId"] != "42" || entry["status"] != "on_call" {
		t.Fatalf("unexpected snapshot entry: %v", entry)
	}
	noEvent(t, conn)
}

func TestSuperAdminAppGetsAppSnapshotOnly(t *testing.T) {
	s := newTestServer()
	s.store.Report("42", "on_call", "", "")
	s.store.ReportApp("77", "idle", "", "")

	cm, conn := newTestCM(s, "c1", profileFor("boss", "Super Admin", "", "", "app", ""))
	cm.handleConnect()

	event := takeEvent(t, conn)
	if event.Type != protocol.EventPresenceSnapshot {
		t.Fatalf("expected snapshot, got %q", event.Type)
	}
	entries := event.Data.([]any)
	if len(entries) != 1 {
		t.Fatalf("expected app table snapshot, got %v", event.Data)
	}
	if entries[0].(map[string]any)["userId"] != "77" {
		t.Fatalf("expected app entry 77, got %v", entries[0])
	}
	// Exactly one snapshot, no re-send.
	noEvent(t, conn)
}

func TestSuperAdminWithoutIdentitySkipsAdminGroups(t *testing.T) {
	s := newTestServer()
	cm, conn := newTestCM(s, "c1", profileFor("", "super_admin", "", "", "", ""))
	cm.handleConnect()

	noEvent(t, conn)
	if sent := s.registry.Publish(protocol.GroupAdminPresence, types.Event{Type: protocol.EventPresence}); sent != 0 {
		t.Fatalf("identity-less super admin must not observe presence")
	}
}

func TestCounsellorConnectRegistersActivePresence(t *testing.T) {
	s := newTestServer()

	admin, adminConn := newTestCM(s, "admin", profileFor("boss", "super_admin", "", "", "", ""))
	admin.handleConnect()
	takeEvent(t, adminConn) // initial snapshot

	cm, _ := newTestCM(s, "c1", profileFor("42", "counsellor", "pune", "Jo", "", ""))
	cm.handleConnect()

	event := takeEvent(t, adminConn)
	if event.Type != protocol.EventPresence {
		t.Fatalf("expected presence broadcast, got %q", event.Type)
	}
	data := eventDataMap(t, event)
	if data["userId"] != "42" || data["status"] != "active" {
		t.Fatalf("expected active default on connect, got %v", data)
	}

	snap := s.store.Snapshot()
	if len(snap) != 1 || snap[0].Status != "active" || snap[0].Name != "Jo" {
		t.Fatalf("unexpected store state: %v", snap)
	}
}

func TestInvalidStatusReportBroadcastsActive(t *testing.T) {
	s := newTestServer()

	admin, adminConn := newTestCM(s, "admin", profileFor("boss", "super_admin", "", "", "", ""))
	admin.handleConnect()
	takeEvent(t, adminConn)

	cm, _ := newTestCM(s, "c1", profileFor("42", "telecaller", "", "", "", "idle"))
	cm.handleConnect()
	if ev := takeEvent(t, adminConn); eventDataMap(t, ev)["status"] != "idle" {
		t.Fatalf("expected idle handshake status honored")
	}

	cm.handleStatusReport(types.Event{
		Type: protocol.EventStatusReport,
		Data: map[string]any{"status": "banana"},
	})
	event := takeEvent(t, adminConn)
	if eventDataMap(t, event)["status"] != "active" {
		t.Fatalf("expected invalid report coerced to active, got %v", event.Data)
	}
}

func TestStatusReportIgnoredForUntrackedRole(t *testing.T) {
	s := newTestServer()
	cm, _ := newTestCM(s, "c1", profileFor("boss", "manager", "", "", "", ""))
	cm.handleConnect()

	cm.handleStatusReport(types.Event{
		Type: protocol.EventStatusReport,
		Data: map[string]any{"status": "active"},
	})
	if len(s.store.Snapshot()) != 0 {
		t.Fatalf("untracked roles must not write presence")
	}
}

func TestAppConnectionUpdatesBothTables(t *testing.T) {
	s := newTestServer()
	cm, _ := newTestCM(s, "c1", profileFor("42", "counsellor", "", "", "app", "on_call"))
	cm.handleConnect()

	if len(s.store.Snapshot()) != 1 || len(s.store.SnapshotApp()) != 1 {
		t.Fatalf("expected app connection in both tables")
	}
	if s.store.SnapshotApp()[0].Status != "on_call" {
		t.Fatalf("unexpected app status: %v", s.store.SnapshotApp())
	}
}

func TestAppDisconnectRetractsAppPresenceOnly(t *testing.T) {
	s := newTestServer()

	appAdmin, appAdminConn := newTestCM(s, "admin", profileFor("boss", "super_admin", "", "", "app", ""))
	appAdmin.handleConnect()
	takeEvent(t, appAdminConn) // app snapshot

	cm, _ := newTestCM(s, "c1", profileFor("42", "counsellor", "", "", "app", ""))
	cm.handleConnect()
	// The app admin observes both admin groups, so an app counsellor
	// connect produces a primary and an app-view presence event.
	takeEvent(t, appAdminConn)
	takeEvent(t, appAdminConn)

	cm.handleDisconnect()

	event := takeEvent(t, appAdminConn)
	if event.Type != protocol.EventPresenceLeft {
		t.Fatalf("expected left event on app disconnect, got %q", event.Type)
	}
	if eventDataMap(t, event)["userId"] != "42" {
		t.Fatalf("unexpected left payload: %v", event.Data)
	}

	if len(s.store.SnapshotApp()) != 0 {
		t.Fatalf("expected app table entry removed")
	}
	snap := s.store.Snapshot()
	if len(snap) != 1 || snap[0].UserID != "42" {
		t.Fatalf("expected stale primary entry preserved, got %v", snap)
	}
}

func TestWebDisconnectLeavesAppTableAlone(t *testing.T) {
	s := newTestServer()
	s.store.ReportApp("42", "active", "", "")

	cm, _ := newTestCM(s, "c1", profileFor("42", "counsellor", "", "", "", ""))
	cm.handleConnect()
	cm.handleDisconnect()

	if len(s.store.SnapshotApp()) != 1 {
		t.Fatalf("web disconnect must not retract app presence")
	}
}
