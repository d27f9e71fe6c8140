// Package config loads the read-only service configuration from the
// environment exactly once at process start.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full configuration surface. Policy values are read-only
// after Load; anything unusable is rejected downstream by the component
// constructors at startup, never at request time.
type Config struct {
	ListenAddr string `env:"SHOPDIRECT_LISTEN_ADDR" envDefault:":8080"`

	AuthSecret      string        `env:"SHOPDIRECT_AUTH_SECRET"`
	Issuer          string        `env:"SHOPDIRECT_ISSUER" envDefault:"shopdirect"`
	AccessTokenTTL  time.Duration `env:"SHOPDIRECT_ACCESS_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"SHOPDIRECT_REFRESH_TTL" envDefault:"336h"`

	PostgresDSN string `env:"SHOPDIRECT_PG_DSN"`

	MaxUploadBytes    int64    `env:"SHOPDIRECT_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	AllowedMIMETypes  []string `env:"SHOPDIRECT_ALLOWED_MIME_TYPES" envDefault:"image/jpeg,image/png,image/webp,image/gif"`
	AllowedExtensions []string `env:"SHOPDIRECT_ALLOWED_EXTENSIONS" envDefault:".jpg,.jpeg,.png,.webp,.gif"`
	FilenameStrategy  string   `env:"SHOPDIRECT_FILENAME_STRATEGY" envDefault:"hash"`
	UploadDir         string   `env:"SHOPDIRECT_UPLOAD_DIR" envDefault:"uploads"`

	AuthRatePerMinute int `env:"SHOPDIRECT_AUTH_RATE_PER_MINUTE" envDefault:"5"`
	APIRatePerSecond  int `env:"SHOPDIRECT_API_RATE_PER_SECOND" envDefault:"50"`
	APIRateBurst      int `env:"SHOPDIRECT_API_RATE_BURST" envDefault:"100"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
