package protocol

// Event names shared between client and server
const (
	EventNotification     = "notification"
	EventPresence         = "counsellor:presence"
	EventPresenceSnapshot = "counsellor:presence:snapshot"
	EventPresenceLeft     = "counsellor:presence:left"

	// EventStatusReport is the only inbound event an already-connected
	// client can send to change its own status.
	EventStatusReport = "counsellor:status"
)

// Presence status values
const (
	StatusActive = "active"
	StatusIdle   = "idle"
	StatusOnCall = "on_call"
)

// Fixed administrative groups watched by super-admin observers
const (
	GroupAdminPresence    = "admin:presence"
	GroupAdminPresenceApp = "admin:presence:app"
)

// ValidStatus reports whether s is one of the three presence statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusIdle, StatusOnCall:
		return true
	}
	return false
}

// CoerceStatus maps an invalid or missing status to "active". Status
// reports never fail; out-of-enum values are coerced, not rejected.
func CoerceStatus(s string) string {
	if ValidStatus(s) {
		return s
	}
	return StatusActive
}

// UserGroup names the private delivery group for one identity.
func UserGroup(userID string) string { return "user:" + userID }

// RoleGroup names the delivery group for a raw (un-normalized) role.
// Publishers target by the role string as supplied upstream, so joins
// must use the same raw value.
func RoleGroup(role string) string { return "role:" + role }

// BranchGroup names the delivery group for a branch.
func BranchGroup(branch string) string { return "branch:" + branch }
