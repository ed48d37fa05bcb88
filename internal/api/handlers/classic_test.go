package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/classicstore"
	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/dbmodel"
)

func setupClassicTest(t *testing.T) (*ClassicHandler, *credentials.TokenService, string) {
	t.Helper()

	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	store := classicstore.NewStore(db, t.TempDir())
	tokens := credentials.NewTokenService("test-secret-at-least-32-bytes-long")
	token, err := tokens.Issue(1, "user-uuid-1", "classic@example.com", "dev-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return NewClassicHandler(store), tokens, token
}

func authedRequest(method, target, token, deviceUUID string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Device-UUID", deviceUUID)
	return req
}

func TestClassicHandlerUploadRawAndDownload(t *testing.T) {
	handler, tokens, token := setupClassicTest(t)

	uploadReq := authedRequest(http.MethodPost, "/api/upload/raw", token, "dev-1", strings.NewReader("hello world"))
	uploadReq.Header.Set("X-Filename", "note.txt")
	uploadW := httptest.NewRecorder()
	middleware.Auth(tokens)(http.HandlerFunc(handler.UploadRaw)).ServeHTTP(uploadW, uploadReq)

	if uploadW.Code != http.StatusOK {
		t.Fatalf("UploadRaw() status = %d, body = %s", uploadW.Code, uploadW.Body.String())
	}

	listReq := authedRequest(http.MethodGet, "/api/files", token, "dev-1", nil)
	listW := httptest.NewRecorder()
	middleware.Auth(tokens)(http.HandlerFunc(handler.List)).ServeHTTP(listW, listReq)

	if listW.Code != http.StatusOK {
		t.Fatalf("List() status = %d, body = %s", listW.Code, listW.Body.String())
	}

	var listResp struct {
		Files []any `json:"files"`
		Total int   `json:"total"`
	}
	if err := json.Unmarshal(listW.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if listResp.Total != 1 {
		t.Fatalf("Total = %d, want 1", listResp.Total)
	}
}

func TestClassicHandlerUploadRawMissingFilename(t *testing.T) {
	handler, tokens, token := setupClassicTest(t)

	req := authedRequest(http.MethodPost, "/api/upload/raw", token, "dev-1", strings.NewReader("data"))
	w := httptest.NewRecorder()
	middleware.Auth(tokens)(http.HandlerFunc(handler.UploadRaw)).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("UploadRaw() status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestClassicHandlerPurge(t *testing.T) {
	handler, tokens, token := setupClassicTest(t)

	uploadReq := authedRequest(http.MethodPost, "/api/upload/raw", token, "dev-1", strings.NewReader("data"))
	uploadReq.Header.Set("X-Filename", "a.bin")
	middleware.Auth(tokens)(http.HandlerFunc(handler.UploadRaw)).ServeHTTP(httptest.NewRecorder(), uploadReq)

	purgeReq := authedRequest(http.MethodPost, "/api/files/purge", token, "dev-1", nil)
	w := httptest.NewRecorder()
	middleware.Auth(tokens)(http.HandlerFunc(handler.Purge)).ServeHTTP(w, purgeReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Purge() status = %d, body = %s", w.Code, w.Body.String())
	}
}
