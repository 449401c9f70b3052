package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"earnzy/internal/auth"
)

func TestRouterPathMapping(t *testing.T) {
	router := NewRouter()

	if router.Location() != auth.PageHome {
		t.Fatalf("fresh router location = %q, want %q", router.Location(), auth.PageHome)
	}
	if router.Path() != "/index.html" {
		t.Fatalf("home path = %q", router.Path())
	}

	router.GoTo(auth.PageLogin)
	if router.Path() != "/login.html" {
		t.Fatalf("login path = %q", router.Path())
	}

	router.GoTo(auth.PageDashboard)
	if router.Path() != "/dashboard.html" {
		t.Fatalf("dashboard path = %q", router.Path())
	}

	router.GoTo("unknown")
	if router.Path() != "/index.html" {
		t.Fatalf("unknown pages must fall back to the entry page, got %q", router.Path())
	}
}

func TestNormaliseBasePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"app", "/app"},
		{"/app/", "/app"},
		{"  /app  ", "/app"},
	}
	for _, tc := range cases {
		if got := normaliseBasePath(tc.in); got != tc.want {
			t.Fatalf("normaliseBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMountWithBasePath(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	handler := mountWithBasePath("/app", inner)

	cases := []struct {
		path     string
		status   int
		seenPath string
	}{
		{"/app/healthz", http.StatusOK, "/healthz"},
		{"/app", http.StatusOK, "/"},
		{"/application/healthz", http.StatusNotFound, ""},
		{"/other", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.path, rec.Code, tc.status)
		}
		if tc.seenPath != "" && rec.Header().Get("X-Seen-Path") != tc.seenPath {
			t.Fatalf("%s: inner path = %q, want %q", tc.path, rec.Header().Get("X-Seen-Path"), tc.seenPath)
		}
	}
}
