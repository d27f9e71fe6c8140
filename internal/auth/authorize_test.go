package auth

import (
	"errors"
	"strings"
	"testing"

	"shopdirect.dev/internal/audit"
)

func TestCheckRole(t *testing.T) {
	cases := []struct {
		name     string
		p        Principal
		required []string
		allowed  bool
		reason   string
	}{
		{"role match", Principal{ID: "u1", Roles: []string{"admin"}}, []string{"admin"}, true, ReasonRoleMatch},
		{"one of several", Principal{ID: "u1", Roles: []string{"viewer"}}, []string{"admin", "viewer"}, true, ReasonRoleMatch},
		{"case insensitive", Principal{ID: "u1", Roles: []string{"admin"}}, []string{"Admin"}, true, ReasonRoleMatch},
		{"missing role", Principal{ID: "u1", Roles: []string{"viewer"}}, []string{"admin"}, false, ReasonRoleMismatch},
		{"no roles at all", Principal{ID: "u1"}, []string{"admin"}, false, ReasonRoleMismatch},
		{"anonymous", Principal{}, []string{"admin"}, false, ReasonAnonymous},
		{"empty required set", Principal{ID: "u1", Roles: []string{"admin"}}, nil, false, ReasonNoRequiredRoles},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := CheckRole(tc.p, tc.required)
			if d.Allowed != tc.allowed {
				t.Fatalf("allowed = %v, want %v (%+v)", d.Allowed, tc.allowed, d)
			}
			if d.Reason != tc.reason {
				t.Fatalf("reason = %s, want %s", d.Reason, tc.reason)
			}
		})
	}
}

func TestCheckOwnership(t *testing.T) {
	owner := Principal{ID: "u1"}
	other := Principal{ID: "u2"}

	if d := CheckOwnership(owner, "u1", "order 55"); !d.Allowed || d.Reason != ReasonOwnershipMatch {
		t.Fatalf("owner was denied: %+v", d)
	}
	if d := CheckOwnership(other, "u1", "order 55"); d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("non-owner was allowed: %+v", d)
	}
	if d := CheckOwnership(Principal{}, "u1", "order 55"); d.Allowed || d.Reason != ReasonAnonymous {
		t.Fatalf("anonymous was allowed: %+v", d)
	}
}

func TestCheckOwnershipDetailHidesOwner(t *testing.T) {
	d := CheckOwnership(Principal{ID: "u2"}, "secret-owner-id", "order 55")
	if d.Allowed {
		t.Fatal("expected denial")
	}
	if strings.Contains(d.Detail, "secret-owner-id") {
		t.Fatalf("denial detail leaks the owner id: %s", d.Detail)
	}
	if !strings.Contains(d.Detail, "order 55") {
		t.Fatalf("denial detail should name the resource: %s", d.Detail)
	}
}

func TestCheckRoleOrOwnership(t *testing.T) {
	admin := Principal{ID: "a1", Roles: []string{"admin"}}
	owner := Principal{ID: "u1", Roles: []string{"viewer"}}
	other := Principal{ID: "u2", Roles: []string{"viewer"}}

	// Role match wins even when the principal is not the owner.
	if d := CheckRoleOrOwnership(admin, []string{"admin"}, "u1", "read_user"); !d.Allowed || d.Reason != ReasonRoleMatch {
		t.Fatalf("admin bypass failed: %+v", d)
	}
	// Ownership is the fallback.
	if d := CheckRoleOrOwnership(owner, []string{"admin"}, "u1", "read_user"); !d.Allowed || d.Reason != ReasonOwnershipMatch {
		t.Fatalf("ownership fallback failed: %+v", d)
	}
	if d := CheckRoleOrOwnership(other, []string{"admin"}, "u1", "read_user"); d.Allowed {
		t.Fatalf("unrelated principal was allowed: %+v", d)
	}
	if d := CheckRoleOrOwnership(Principal{}, []string{"admin"}, "u1", "read_user"); d.Allowed {
		t.Fatalf("anonymous was allowed: %+v", d)
	}
}

func TestDecisionErr(t *testing.T) {
	allowed := CheckRole(Principal{ID: "u1", Roles: []string{"admin"}}, []string{"admin"})
	if err := allowed.Err(); err != nil {
		t.Fatalf("allowed decision produced an error: %v", err)
	}

	denied := CheckRole(Principal{ID: "u1"}, []string{"admin"})
	err := denied.Err()
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if !strings.Contains(err.Error(), ReasonRoleMismatch) {
		t.Fatalf("error should carry the reason code: %v", err)
	}
}

func TestEvaluatorAuditsDenials(t *testing.T) {
	rec := &audit.Recorder{}
	e := NewEvaluator(rec)

	d := e.RequireRole(Principal{ID: "u1", Roles: []string{"viewer"}}, []string{"admin"}, "delete_user")
	if d.Allowed {
		t.Fatal("expected denial")
	}
	ev, ok := rec.Last()
	if !ok {
		t.Fatal("expected an audit event")
	}
	if ev.Action != "delete_user" || ev.Decision != "deny" || ev.Reason != ReasonRoleMismatch {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.PrincipalID != "u1" {
		t.Fatalf("unexpected principal: %s", ev.PrincipalID)
	}
}

func TestEvaluatorSilentOnPlainAllow(t *testing.T) {
	rec := &audit.Recorder{}
	e := NewEvaluator(rec)

	d := e.RequireRole(Principal{ID: "u1", Roles: []string{"admin"}}, []string{"admin"}, "delete_user")
	if !d.Allowed {
		t.Fatal("expected allow")
	}
	if _, ok := rec.Last(); ok {
		t.Fatal("plain allow should not be audited")
	}
}

func TestEvaluatorAuditsRoleBypass(t *testing.T) {
	rec := &audit.Recorder{}
	e := NewEvaluator(rec)

	// Admin reading another user's resource is allowed but notable.
	d := e.RequireRoleOrOwnership(Principal{ID: "a1", Roles: []string{"admin"}}, []string{"admin"}, "u9", "read_user")
	if !d.Allowed {
		t.Fatal("expected allow")
	}
	ev, ok := rec.Last()
	if !ok {
		t.Fatal("expected an audit event for the bypass")
	}
	if ev.Decision != "allow" || ev.Reason != ReasonRoleMatch {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// The owner reading their own resource is routine, no event.
	rec2 := &audit.Recorder{}
	e2 := NewEvaluator(rec2)
	if d := e2.RequireRoleOrOwnership(Principal{ID: "u9"}, []string{"admin"}, "u9", "read_user"); !d.Allowed {
		t.Fatal("expected allow")
	}
	if _, ok := rec2.Last(); ok {
		t.Fatal("owner access should not be audited")
	}
}
