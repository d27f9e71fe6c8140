package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shopdirect.dev/internal/audit"
	"shopdirect.dev/internal/auth"
	"shopdirect.dev/internal/config"
	"shopdirect.dev/internal/httpapi"
	"shopdirect.dev/internal/obs"
	"shopdirect.dev/internal/storage"
	"shopdirect.dev/internal/upload"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Database is optional: without a DSN the service runs on the
	// in-memory store, which is enough for local development.
	var db *sql.DB
	var store auth.Store
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Printf("no SHOPDIRECT_PG_DSN set, using in-memory store")
		store = auth.NewMemoryStore()
	}

	// Audit events flow through a buffered dispatcher so a slow sink
	// never blocks request handling.
	sink := audit.NewDispatcher(audit.LogSink{}, 256)
	defer sink.Close()

	tokens, err := auth.NewTokenService(cfg.AuthSecret,
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
		auth.WithAuditSink(sink),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	authSvc := auth.NewService(tokens, store, sink)
	evaluator := auth.NewEvaluator(sink)

	validator, err := upload.NewValidator(upload.Config{
		MaxSize:           cfg.MaxUploadBytes,
		AllowedTypes:      cfg.AllowedMIMETypes,
		AllowedExtensions: cfg.AllowedExtensions,
		NamingStrategy:    cfg.FilenameStrategy,
	})
	if err != nil {
		log.Fatalf("upload validator: %v", err)
	}

	blobs, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("upload dir: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Auth:      authSvc,
		Evaluator: evaluator,
		Validator: validator,
		Blobs:     blobs,
		Store:     store,
		Sink:      sink,
		Ready:     httpapi.ReadyProbe{DB: db},
		Version:   version,

		AuthRatePerMinute: cfg.AuthRatePerMinute,
		APIRatePerSecond:  cfg.APIRatePerSecond,
		APIRateBurst:      cfg.APIRateBurst,
		MaxBodyBytes:      cfg.MaxUploadBytes + 1<<20,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting shopdirect-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
