package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"shopdirect.dev/internal/audit"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour

	minSecretLength = 32
)

// TokenKind distinguishes short-lived access tokens from long-lived
// refresh tokens. A token of one kind is never accepted where the other
// is required.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Token is a signed, time-bounded assertion of a subject and its roles.
type Token struct {
	Raw       string
	ID        string
	Kind      TokenKind
	SubjectID string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload carried by both token kinds.
type Claims struct {
	Roles    []string `json:"roles,omitempty"`
	TokenUse string   `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed identity tokens. The signing
// secret is explicit constructor state, fixed at startup; there is no
// process-global key.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	sink       audit.Sink
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			s.issuer = issuer
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithAuditSink routes precise verification-failure reasons to the sink.
func WithAuditSink(sink audit.Sink) TokenOption {
	return func(s *TokenService) error {
		if sink != nil {
			s.sink = sink
		}
		return nil
	}
}

// NewTokenService constructs the service. A missing or short secret is
// a fatal configuration error surfaced here, not at request time.
func NewTokenService(secret string, opts ...TokenOption) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: signing secret must be at least %d bytes", minSecretLength)
	}
	s := &TokenService{
		secret:     []byte(secret),
		issuer:     "shopdirect",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
		sink:       audit.NopSink{},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// TTL returns the configured lifetime for the given kind.
func (s *TokenService) TTL(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Issue signs a token of the given kind for the subject and roles.
func (s *TokenService) Issue(subjectID string, roles []string, kind TokenKind) (Token, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return Token{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if kind != KindAccess && kind != KindRefresh {
		return Token{}, fmt.Errorf("%w: unknown token kind %q", ErrInvalidInput, kind)
	}

	now := s.now().UTC()
	exp := now.Add(s.TTL(kind))
	jti := uuid.NewString()
	normalized := dedupeRoles(roles)

	claims := Claims{
		Roles:    normalized,
		TokenUse: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		Raw:       signed,
		ID:        jti,
		Kind:      kind,
		SubjectID: subjectID,
		Roles:     normalized,
		IssuedAt:  now,
		ExpiresAt: exp,
	}, nil
}

// Verify checks signature, kind and expiry and returns the Principal
// the token asserts. Callers receive only the coarse error kinds; the
// precise cause is emitted to the audit sink.
func (s *TokenService) Verify(raw string, expectedKind TokenKind) (Principal, error) {
	claims, err := s.verifyClaims(raw, expectedKind)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID:        claims.Subject,
		Roles:     dedupeRoles(claims.Roles),
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh verifies a refresh token and issues a fresh access token for
// the same subject and roles. The refresh token's own lifetime is not
// extended, and without a revocation store the old refresh token stays
// usable until expiry; Service layers revocation on top.
func (s *TokenService) Refresh(rawRefresh string) (Token, error) {
	principal, err := s.Verify(rawRefresh, KindRefresh)
	if err != nil {
		return Token{}, err
	}
	return s.Issue(principal.ID, principal.Roles, KindAccess)
}

func (s *TokenService) verifyClaims(raw string, expectedKind TokenKind) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, s.deny("", expectedKind, "empty_token", ErrTokenInvalid)
	}

	// Claim validation is done by hand below so the check order is
	// deterministic: signature, then kind, then expiry.
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unsupported signing method")
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, s.deny("", expectedKind, "malformed_or_bad_signature", ErrTokenInvalid)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, s.deny("", expectedKind, "claims_type", ErrTokenInvalid)
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return nil, s.deny("", expectedKind, "subject_missing", ErrTokenInvalid)
	}
	if claims.Issuer != s.issuer {
		return nil, s.deny(subject, expectedKind, "unexpected_issuer", ErrTokenInvalid)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, s.deny(subject, expectedKind, "timestamps_missing", ErrTokenInvalid)
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return nil, s.deny(subject, expectedKind, "expiry_precedes_issue", ErrTokenInvalid)
	}
	if TokenKind(claims.TokenUse) != expectedKind {
		return nil, s.deny(subject, expectedKind, "wrong_token_kind", ErrWrongTokenKind)
	}

	now := s.now().UTC()
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, s.deny(subject, expectedKind, "token_expired", ErrTokenExpired)
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return nil, s.deny(subject, expectedKind, "issued_in_future", ErrTokenInvalid)
	}
	return claims, nil
}

func (s *TokenService) deny(subject string, kind TokenKind, reason string, err error) error {
	s.sink.Emit(audit.Event{
		Timestamp:   s.now().UTC(),
		PrincipalID: subject,
		Action:      "token.verify",
		Decision:    "deny",
		Reason:      reason,
		Fields:      map[string]any{"expected_kind": string(kind)},
	})
	return err
}
