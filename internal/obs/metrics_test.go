package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/users/abc":             "/v1/users/:id",
		"/v1/users/abc?verbose=1":   "/v1/users/:id",
		"/v1/uploads":               "/v1/uploads",
		"/v1/auth/login":            "/v1/auth/login",
		"/v1/auth/refresh?limit=10": "/v1/auth/refresh",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
