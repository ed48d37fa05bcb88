package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCapacityHandlerGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capacity.json")
	if err := os.WriteFile(path, []byte(`{"freeBytes":123}`), 0o644); err != nil {
		t.Fatalf("write capacity file: %v", err)
	}

	handler := NewCapacityHandler(path)
	req := httptest.NewRequest(http.MethodGet, "/api/capacity", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Get() status = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Body.String() != `{"freeBytes":123}` {
		t.Errorf("Get() body = %q, want %q", w.Body.String(), `{"freeBytes":123}`)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", w.Header().Get("Cache-Control"))
	}
}

func TestCapacityHandlerGetMissing(t *testing.T) {
	handler := NewCapacityHandler(filepath.Join(t.TempDir(), "missing.json"))
	req := httptest.NewRequest(http.MethodGet, "/api/capacity", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Get() status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
