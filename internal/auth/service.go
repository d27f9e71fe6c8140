package auth

import (
	"context"
	"strings"
	"time"

	"shopdirect.dev/internal/audit"
)

// Service composes the credential hasher, token service and store into
// the login/refresh/revoke flows. Every failure collapses to
// ErrUnauthorized at the boundary; the precise reason is audited so a
// caller cannot learn which check failed.
type Service struct {
	tokens *TokenService
	store  Store
	sink   audit.Sink
	now    func() time.Time
}

// NewService wires the full auth flow. sink may be nil.
func NewService(tokens *TokenService, store Store, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{tokens: tokens, store: store, sink: sink, now: time.Now}
}

// Tokens exposes the underlying token service for request verification.
func (s *Service) Tokens() *TokenService { return s.tokens }

// TokenPair carries both freshly minted tokens and their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Login authenticates credentials and issues an access/refresh pair.
// The refresh token's jti is persisted so it can later be revoked.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, Principal{}, s.denyLogin(ctx, email, "missing_credentials")
	}
	user, err := s.store.Users(ctx).FindByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, Principal{}, s.denyLogin(ctx, email, "unknown_user")
	}
	if user.Status != UserStatusActive {
		return TokenPair{}, Principal{}, s.denyLogin(ctx, user.ID, "user_disabled")
	}
	if !VerifyPassword(user.PasswordHash, password) {
		return TokenPair{}, Principal{}, s.denyLogin(ctx, user.ID, "bad_password")
	}

	pair, principal, err := s.mintPair(ctx, user.ID, user.Roles)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	s.sink.Emit(audit.Event{
		Timestamp:   s.now().UTC(),
		PrincipalID: user.ID,
		Action:      "auth.login",
		Decision:    "allow",
		Reason:      "credentials_ok",
	})
	return pair, principal, nil
}

// Refresh rotates a refresh token: the presented token is verified,
// checked against the revocation list, revoked, and a new pair minted.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (TokenPair, Principal, error) {
	record, principal, err := s.lookupRefresh(ctx, rawRefresh, "auth.refresh")
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if err := s.store.RefreshTokens(ctx).MarkRevoked(ctx, record.ID); err != nil {
		return TokenPair{}, Principal{}, err
	}
	return s.mintAudited(ctx, principal)
}

// Revoke invalidates the presented refresh token.
func (s *Service) Revoke(ctx context.Context, rawRefresh string) error {
	record, _, err := s.lookupRefresh(ctx, rawRefresh, "auth.revoke")
	if err != nil {
		return err
	}
	return s.store.RefreshTokens(ctx).MarkRevoked(ctx, record.ID)
}

// RevokeAllForUser invalidates every refresh token held by the user.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.RefreshTokens(ctx).MarkRevokedByUser(ctx, userID)
}

// PurgeExpiredRefreshTokens removes expired records. Intended to be
// invoked by an external periodic trigger.
func (s *Service) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	return s.store.RefreshTokens(ctx).PurgeExpired(ctx, s.now().UTC())
}

func (s *Service) lookupRefresh(ctx context.Context, raw, action string) (*RefreshToken, Principal, error) {
	claims, err := s.tokens.verifyClaims(raw, KindRefresh)
	if err != nil {
		// Precise reason already audited by the token service.
		return nil, Principal{}, ErrUnauthorized
	}
	principal := Principal{
		ID:        claims.Subject,
		Roles:     dedupeRoles(claims.Roles),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	record, err := s.store.RefreshTokens(ctx).Find(ctx, claims.ID)
	if err != nil {
		return nil, Principal{}, s.denyAction(ctx, principal.ID, action, "unknown_refresh_token")
	}
	if record.Revoked {
		return nil, Principal{}, s.denyAction(ctx, principal.ID, action, "refresh_token_revoked")
	}
	if !s.now().UTC().Before(record.ExpiresAt) {
		return nil, Principal{}, s.denyAction(ctx, principal.ID, action, "refresh_token_expired")
	}
	if record.UserID != principal.ID {
		return nil, Principal{}, s.denyAction(ctx, principal.ID, action, "subject_mismatch")
	}
	return record, principal, nil
}

func (s *Service) mintAudited(ctx context.Context, principal Principal) (TokenPair, Principal, error) {
	pair, p, err := s.mintPair(ctx, principal.ID, principal.Roles)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	s.sink.Emit(audit.Event{
		Timestamp:   s.now().UTC(),
		PrincipalID: principal.ID,
		Action:      "auth.refresh",
		Decision:    "allow",
		Reason:      "rotation_ok",
	})
	return pair, p, nil
}

func (s *Service) mintPair(ctx context.Context, subjectID string, roles []string) (TokenPair, Principal, error) {
	access, err := s.tokens.Issue(subjectID, roles, KindAccess)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	refresh, err := s.tokens.Issue(subjectID, roles, KindRefresh)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	if err := s.store.RefreshTokens(ctx).Create(ctx, &RefreshToken{
		ID:        refresh.ID,
		UserID:    subjectID,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return TokenPair{}, Principal{}, err
	}
	return TokenPair{
		AccessToken:      access.Raw,
		RefreshToken:     refresh.Raw,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, Principal{ID: subjectID, Roles: dedupeRoles(roles), IssuedAt: access.IssuedAt, ExpiresAt: access.ExpiresAt}, nil
}

func (s *Service) denyLogin(ctx context.Context, subject, reason string) error {
	return s.denyAction(ctx, subject, "auth.login", reason)
}

func (s *Service) denyAction(_ context.Context, subject, action, reason string) error {
	s.sink.Emit(audit.Event{
		Timestamp:   s.now().UTC(),
		PrincipalID: subject,
		Action:      action,
		Decision:    "deny",
		Reason:      reason,
	})
	return ErrUnauthorized
}
