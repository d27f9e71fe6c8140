package auth

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"shopdirect.dev/internal/audit"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokenService(t *testing.T, opts ...TokenOption) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, opts...)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenServiceShortSecret(t *testing.T) {
	if _, err := NewTokenService("too short"); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewTokenService(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestTokenService(t, WithIssuer("test-issuer"))

	tok, err := svc.Issue("user-42", []string{"Admin", "viewer", "admin"}, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.ID == "" {
		t.Fatal("expected a jti")
	}
	if !tok.ExpiresAt.After(tok.IssuedAt) {
		t.Fatalf("expiry %v not after issue %v", tok.ExpiresAt, tok.IssuedAt)
	}

	principal, err := svc.Verify(tok.Raw, KindAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if principal.ID != "user-42" {
		t.Fatalf("unexpected subject: %s", principal.ID)
	}
	if !slices.Contains(principal.Roles, "admin") || !slices.Contains(principal.Roles, "viewer") {
		t.Fatalf("roles were not preserved: %v", principal.Roles)
	}
	if len(principal.Roles) != 2 {
		t.Fatalf("roles were not deduplicated: %v", principal.Roles)
	}
}

func TestVerifyWrongKind(t *testing.T) {
	svc := newTestTokenService(t)

	refresh, err := svc.Issue("user-1", nil, KindRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(refresh.Raw, KindAccess); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}

	access, err := svc.Issue("user-1", nil, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(access.Raw, KindRefresh); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Now().UTC()
	clock := now
	svc := newTestTokenService(t, WithAccessTTL(time.Minute), WithClock(func() time.Time { return clock }))

	tok, err := svc.Issue("user-1", nil, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock = now.Add(time.Minute + time.Second)
	if _, err := svc.Verify(tok.Raw, KindAccess); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	svc := newTestTokenService(t)

	tok, err := svc.Issue("user-1", []string{"viewer"}, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Flip one byte in the payload segment.
	parts := strings.Split(tok.Raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %s", tok.Raw)
	}
	payload := []byte(parts[1])
	if payload[10] == 'A' {
		payload[10] = 'B'
	} else {
		payload[10] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := svc.Verify(tampered, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	a := newTestTokenService(t)
	b, err := NewTokenService("fedcba9876543210fedcba9876543210")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	tok, err := a.Issue("user-1", nil, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(tok.Raw, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	a := newTestTokenService(t, WithIssuer("service-a"))
	b := newTestTokenService(t, WithIssuer("service-b"))

	tok, err := a.Issue("user-1", nil, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(tok.Raw, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	svc := newTestTokenService(t)
	for _, raw := range []string{"", "   ", "not.a.jwt", "a.b"} {
		if _, err := svc.Verify(raw, KindAccess); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("raw %q: expected ErrTokenInvalid, got %v", raw, err)
		}
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	svc := newTestTokenService(t)
	if _, err := svc.Issue("", nil, KindAccess); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty subject, got %v", err)
	}
	if _, err := svc.Issue("user-1", nil, TokenKind("session")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}

func TestRefreshIssuesAccessToken(t *testing.T) {
	svc := newTestTokenService(t)

	refresh, err := svc.Issue("user-7", []string{"viewer"}, KindRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	access, err := svc.Refresh(refresh.Raw)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if access.Kind != KindAccess {
		t.Fatalf("expected access token, got %s", access.Kind)
	}
	if access.SubjectID != "user-7" {
		t.Fatalf("subject not carried over: %s", access.SubjectID)
	}
	if _, err := svc.Verify(access.Raw, KindAccess); err != nil {
		t.Fatalf("minted access token does not verify: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestTokenService(t)

	access, err := svc.Issue("user-7", nil, KindAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Refresh(access.Raw); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestVerifyFailureIsAudited(t *testing.T) {
	rec := &audit.Recorder{}
	svc := newTestTokenService(t, WithAuditSink(rec))

	if _, err := svc.Verify("garbage", KindAccess); err == nil {
		t.Fatal("expected error")
	}
	e, ok := rec.Last()
	if !ok {
		t.Fatal("expected an audit event")
	}
	if e.Action != "token.verify" || e.Decision != "deny" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.Reason == "" {
		t.Fatal("expected a reason code")
	}
}
