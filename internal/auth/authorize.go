package auth

import (
	"fmt"
	"time"

	"shopdirect.dev/internal/audit"
	"shopdirect.dev/internal/obs"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
	Detail  string
}

// Err converts a denial into an error for guard paths that propagate
// failures instead of inspecting the decision. Allowed decisions
// return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPermissionDenied, d.Reason)
}

// Reason codes carried by Decision and audit events.
const (
	ReasonRoleMatch       = "ok_role"
	ReasonOwnershipMatch  = "ok_ownership"
	ReasonRoleMismatch    = "denied_role"
	ReasonNotOwner        = "denied_ownership"
	ReasonAnonymous       = "denied_anonymous"
	ReasonNoRequiredRoles = "denied_no_required_roles"
)

// CheckRole allows iff the principal holds at least one required role.
// An anonymous principal is always denied for a non-empty role set.
func CheckRole(p Principal, requiredRoles []string) Decision {
	required := dedupeRoles(requiredRoles)
	if len(required) == 0 {
		return Decision{Reason: ReasonNoRequiredRoles, Detail: "no roles would grant this action"}
	}
	if p.Anonymous() {
		return Decision{Reason: ReasonAnonymous, Detail: "authentication required"}
	}
	for _, role := range required {
		if p.HasRole(role) {
			return Decision{Allowed: true, Reason: ReasonRoleMatch, Detail: fmt.Sprintf("role %q grants access", role)}
		}
	}
	return Decision{Reason: ReasonRoleMismatch, Detail: "none of the required roles are held"}
}

// CheckOwnership allows iff the principal is the resource owner. The
// denial detail names the resource label, never the owner's identity.
func CheckOwnership(p Principal, resourceOwnerID, resourceLabel string) Decision {
	if p.Anonymous() {
		return Decision{Reason: ReasonAnonymous, Detail: "authentication required"}
	}
	if resourceOwnerID != "" && p.ID == resourceOwnerID {
		return Decision{Allowed: true, Reason: ReasonOwnershipMatch, Detail: fmt.Sprintf("owner of %s", resourceLabel)}
	}
	return Decision{Reason: ReasonNotOwner, Detail: fmt.Sprintf("not the owner of %s", resourceLabel)}
}

// CheckRoleOrOwnership allows iff the role check allows or the
// ownership check allows. The role check runs first: role holders
// bypass ownership entirely, ownership is a fallback, not a veto.
func CheckRoleOrOwnership(p Principal, requiredRoles []string, resourceOwnerID, actionLabel string) Decision {
	if d := CheckRole(p, requiredRoles); d.Allowed {
		if resourceOwnerID != "" && p.ID != resourceOwnerID {
			d.Reason = ReasonRoleMatch
			d.Detail = fmt.Sprintf("role bypasses ownership for %s", actionLabel)
		}
		return d
	}
	if d := CheckOwnership(p, resourceOwnerID, actionLabel); d.Allowed {
		return d
	}
	return Decision{Reason: ReasonNotOwner, Detail: fmt.Sprintf("requires a privileged role or ownership of %s", actionLabel)}
}

// Evaluator wraps the pure decision functions with audit emission.
// Every denial and every role-bypass-of-ownership is recorded.
type Evaluator struct {
	sink audit.Sink
	now  func() time.Time
}

// NewEvaluator builds an evaluator emitting to sink (nil means discard).
func NewEvaluator(sink audit.Sink) *Evaluator {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Evaluator{sink: sink, now: time.Now}
}

// RequireRole evaluates CheckRole and audits the outcome.
func (e *Evaluator) RequireRole(p Principal, requiredRoles []string, actionLabel string) Decision {
	d := CheckRole(p, requiredRoles)
	e.record(p, actionLabel, d, !d.Allowed)
	return d
}

// RequireOwnership evaluates CheckOwnership and audits the outcome.
func (e *Evaluator) RequireOwnership(p Principal, resourceOwnerID, resourceLabel string) Decision {
	d := CheckOwnership(p, resourceOwnerID, resourceLabel)
	e.record(p, resourceLabel, d, !d.Allowed)
	return d
}

// RequireRoleOrOwnership evaluates the combined check and audits every
// denial plus every allow where a role bypassed ownership.
func (e *Evaluator) RequireRoleOrOwnership(p Principal, requiredRoles []string, resourceOwnerID, actionLabel string) Decision {
	d := CheckRoleOrOwnership(p, requiredRoles, resourceOwnerID, actionLabel)
	bypass := d.Allowed && d.Reason == ReasonRoleMatch && resourceOwnerID != "" && p.ID != resourceOwnerID
	e.record(p, actionLabel, d, !d.Allowed || bypass)
	return d
}

func (e *Evaluator) record(p Principal, action string, d Decision, emit bool) {
	decision := "deny"
	if d.Allowed {
		decision = "allow"
	}
	obs.ObserveAuthDecision(action, decision, d.Reason)
	if !emit {
		return
	}
	e.sink.Emit(audit.Event{
		Timestamp:   e.now().UTC(),
		PrincipalID: p.ID,
		Action:      action,
		Decision:    decision,
		Reason:      d.Reason,
	})
}
