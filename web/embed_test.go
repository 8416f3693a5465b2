package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSPAHandlerServesClientRoutes(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/", "/sign-in", "/sign-up", "/interview", "/interview/abc", "/interview/abc/feedback"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `<div id="root">`) {
			t.Errorf("%s: expected index.html, got %d", path, w.Code)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("%s: expected no-cache shell, got %q", path, got)
		}
	}
}

func TestSPAHandlerNotFound(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/api/unknown", "/assets/missing.js", "/interview/abc/feedback/extra", "/ws/other"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestSPAHandlerRejectsWrites(t *testing.T) {
	w := httptest.NewRecorder()
	SPAHandler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestIsClientRoute(t *testing.T) {
	tests := map[string]bool{
		"/":                        true,
		"/interview/":              true,
		"/interview/i1/feedback/":  true,
		"/sign-out":                false,
		"/interview/i1/transcript": false,
	}
	for path, want := range tests {
		if got := isClientRoute(path); got != want {
			t.Errorf("isClientRoute(%q) = %v, want %v", path, got, want)
		}
	}
}
