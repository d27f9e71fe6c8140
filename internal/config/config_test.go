package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.Issuer != "shopdirect" {
		t.Fatalf("Issuer = %s", cfg.Issuer)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 336*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxUploadBytes != 10485760 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedMIMETypes) != 4 {
		t.Fatalf("AllowedMIMETypes = %v", cfg.AllowedMIMETypes)
	}
	if cfg.FilenameStrategy != "hash" {
		t.Fatalf("FilenameStrategy = %s", cfg.FilenameStrategy)
	}
	if cfg.AuthRatePerMinute != 5 {
		t.Fatalf("AuthRatePerMinute = %d", cfg.AuthRatePerMinute)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SHOPDIRECT_LISTEN_ADDR", ":9090")
	t.Setenv("SHOPDIRECT_AUTH_SECRET", "a-very-long-signing-secret-value")
	t.Setenv("SHOPDIRECT_ACCESS_TTL", "5m")
	t.Setenv("SHOPDIRECT_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("SHOPDIRECT_ALLOWED_MIME_TYPES", "image/png,application/pdf")
	t.Setenv("SHOPDIRECT_FILENAME_STRATEGY", "random")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.AuthSecret != "a-very-long-signing-secret-value" {
		t.Fatalf("AuthSecret = %s", cfg.AuthSecret)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedMIMETypes) != 2 || cfg.AllowedMIMETypes[1] != "application/pdf" {
		t.Fatalf("AllowedMIMETypes = %v", cfg.AllowedMIMETypes)
	}
	if cfg.FilenameStrategy != "random" {
		t.Fatalf("FilenameStrategy = %s", cfg.FilenameStrategy)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SHOPDIRECT_ACCESS_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}
