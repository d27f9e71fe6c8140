package auth

import "time"

// User is a stored account. The password is kept only as a PHC-encoded
// argon2id hash; plaintext is never persisted or logged.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// RefreshToken is the persisted record of an issued refresh token,
// keyed by its jti. The signed token itself is never stored.
type RefreshToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
