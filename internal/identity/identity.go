// Package identity normalizes the raw handshake fields a connection or
// request arrives with. Upstream callers are inconsistent about role
// casing and separators ("Super Admin", "super_admin", "superadmin"),
// so every role comparison in the process goes through NormalizeRole.
package identity

import (
	"net/url"
	"strings"
)

// RoleSuperAdmin is the normalized role granted presence observation.
const RoleSuperAdmin = "superadmin"

// Profile is a connection's attributes after boundary normalization.
// It is computed once at connect time; handshake attributes are
// immutable for the connection's lifetime.
type Profile struct {
	UserID         string
	Role           string // raw, as supplied — group joins use this
	NormalizedRole string
	Branch         string
	Name           string
	Status         string
	IsApp          bool
}

// NormalizeRole lower-cases a role and strips underscores and spaces.
func NormalizeRole(role string) string {
	r := strings.ToLower(role)
	r = strings.ReplaceAll(r, "_", "")
	r = strings.ReplaceAll(r, " ", "")
	return r
}

// IsApp reports whether a raw client type marks a mobile-app client.
func IsApp(clientType string) bool {
	return strings.EqualFold(clientType, "app")
}

// Tracked reports whether a normalized role has its presence recorded.
func Tracked(normalizedRole string) bool {
	switch normalizedRole {
	case "counsellor", "telecaller", "user":
		return true
	}
	return false
}

// FromHandshake derives a Profile from already-extracted fields.
// Missing fields normalize to empty/false; there are no error cases.
func FromHandshake(userID, role, branch, name, clientType, status string) Profile {
	return Profile{
		UserID:         userID,
		Role:           role,
		NormalizedRole: NormalizeRole(role),
		Branch:         branch,
		Name:           name,
		Status:         status,
		IsApp:          IsApp(clientType),
	}
}

// FromQuery derives a Profile from the websocket upgrade request's
// query values. The client-type key may arrive as "clientType" or
// "client_type" in any casing.
func FromQuery(q url.Values) Profile {
	return FromHandshake(
		q.Get("userId"),
		q.Get("role"),
		q.Get("branch"),
		q.Get("name"),
		ClientType(q),
		q.Get("status"),
	)
}

// ClientType extracts the raw client-type value from query values,
// accepting "clientType" and "client_type" case-insensitively.
func ClientType(q url.Values) string {
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		k := strings.ToLower(strings.ReplaceAll(key, "_", ""))
		if k == "clienttype" {
			return vals[0]
		}
	}
	return ""
}
