package httpapi

import (
	"net/http"
	"strings"

	"shopdirect.dev/internal/auth"
)

// publicPaths are reachable without a bearer token. The auth endpoints
// carry their credential in the request body, not the Authorization
// header.
var publicPaths = map[string]bool{
	"/healthz":         true,
	"/readyz":          true,
	"/metrics":         true,
	"/v1/auth/login":   true,
	"/v1/auth/refresh": true,
	"/v1/auth/logout":  true,
}

// withAuth verifies the bearer token on protected routes and attaches
// the resulting principal to the request context. All token failures
// collapse to a single 401 body.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := extractBearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="shopdirect"`)
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}

		principal, err := a.opts.Auth.Tokens().Verify(raw, auth.KindAccess)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="shopdirect", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
