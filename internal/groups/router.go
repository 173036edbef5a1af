package groups

import (
	"strconv"

	"presencehub/internal/types"
	"presencehub/pkg/protocol"
)

// Router resolves a notification's target descriptor to exactly one
// delivery group. Precedence is fixed: user beats role beats branch;
// no target at all means a global broadcast. A caller supplying both a
// user and a role target gets only the user delivery.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Dispatch wraps the payload in a notification event and delivers it
// per target precedence. It returns the number of connections reached.
func (ro *Router) Dispatch(n types.Notification) int {
	event := types.Event{Type: protocol.EventNotification, Data: n.Notification}
	if userID := Stringify(n.TargetUserID); userID != "" {
		return ro.registry.Publish(protocol.UserGroup(userID), event)
	}
	if n.TargetRole != "" {
		return ro.registry.Publish(protocol.RoleGroup(n.TargetRole), event)
	}
	if n.TargetBranch != "" {
		return ro.registry.Publish(protocol.BranchGroup(n.TargetBranch), event)
	}
	return ro.registry.Broadcast(event)
}

// Stringify coerces a caller-supplied identity to its canonical string
// key. Upstream callers send identities as strings or JSON numbers.
func Stringify(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return ""
	}
}
