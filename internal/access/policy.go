// Package access implements the authorization capabilities of the API.
// A capability is a pure function from (caller, resource snapshot) to a
// tagged Allow/Deny verdict.  Nothing in this package performs I/O or
// touches the network, so every policy is unit-testable in isolation;
// loading the resource snapshot is the job of the HTTP middleware.
package access

import "go-task-tracker/internal/model"

// Principal identifies an authenticated caller.  It is built from the
// verified access token claims and carried through the request context.
type Principal struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// Decision is the tagged result of a capability check.  A denial always
// carries a reason for logging; the reason is never surfaced to the
// client, which only ever sees a uniform FORBIDDEN error.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns a positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a negative decision with the given internal reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// TaskPolicy decides whether a principal may act on a task snapshot.
type TaskPolicy func(p Principal, t model.Task) Decision

// TaskOwnerOrAdmin grants mutation rights on a task: only the owner of
// the task or an admin may change it.
func TaskOwnerOrAdmin(p Principal, t model.Task) Decision {
	if p.IsAdmin() {
		return Allow()
	}
	if t.OwnerID == p.UserID {
		return Allow()
	}
	return Deny("caller is not the task owner")
}

// TaskVisible grants read access on a task: public tasks are visible to
// everyone, private tasks only to their owner or an admin.
func TaskVisible(p Principal, t model.Task) Decision {
	if t.IsPublic {
		return Allow()
	}
	return TaskOwnerOrAdmin(p, t)
}

// RoleAllowed is the static role gate: it admits the principal iff its
// role is in the allowed set.  No resource snapshot is involved.
func RoleAllowed(p Principal, roles ...string) Decision {
	for _, r := range roles {
		if p.Role == r {
			return Allow()
		}
	}
	return Deny("role " + p.Role + " not permitted")
}
