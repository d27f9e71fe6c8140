package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"shopdirect.dev/internal/audit"
	"shopdirect.dev/internal/auth"
	"shopdirect.dev/internal/obs"
	"shopdirect.dev/internal/storage"
	"shopdirect.dev/internal/upload"
)

// ReadyProbe reports readiness, e.g. by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the HTTP layer to the core components.
type Options struct {
	Auth      *auth.Service
	Evaluator *auth.Evaluator
	Validator *upload.Validator
	Blobs     storage.BlobStore
	Store     auth.Store
	Sink      audit.Sink
	Ready     ReadyProbe
	Version   string

	AuthRatePerMinute int
	APIRatePerSecond  int
	APIRateBurst      int

	// MaxBodyBytes caps every request body at the transport level. It
	// must leave room for the largest allowed upload.
	MaxBodyBytes int64
}

// API is the HTTP layer. It carries no business logic of its own: every
// decision is delegated to the auth, upload and storage components.
type API struct {
	mux  *http.ServeMux
	opts Options
}

func New(opts Options) *API {
	if opts.Sink == nil {
		opts.Sink = audit.NopSink{}
	}
	a := &API{
		mux:  http.NewServeMux(),
		opts: opts,
	}

	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	authLimit := a.authRateLimiter()
	a.mux.Handle("POST /v1/auth/login", authLimit(http.HandlerFunc(a.handleLogin)))
	a.mux.Handle("POST /v1/auth/refresh", authLimit(http.HandlerFunc(a.handleRefresh)))
	a.mux.Handle("POST /v1/auth/logout", authLimit(http.HandlerFunc(a.handleLogout)))

	a.mux.HandleFunc("GET /v1/me", a.handleMe)
	a.mux.HandleFunc("POST /v1/uploads", a.handleUpload)
	a.mux.HandleFunc("GET /v1/users/{id}", a.handleGetUser)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	if a.opts.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	}
	h = RateLimit(h, a.opts.APIRateBurst, a.opts.APIRatePerSecond)
	h = Logging(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "shopdirect-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.opts.Ready.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// maxJSONBody caps JSON request bodies independently of the global
// body limit, which must stay large enough for uploads.
const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
