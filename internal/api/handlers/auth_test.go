package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/dbmodel"
)

func setupAuthTest(t *testing.T) *AuthHandler {
	t.Helper()

	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	creds := credentials.NewStore(db, 4, 14)
	tokens := credentials.NewTokenService("test-secret-at-least-32-bytes-long")
	return NewAuthHandler(creds, tokens)
}

func TestAuthHandlerRegister(t *testing.T) {
	handler := setupAuthTest(t)

	tests := []struct {
		name       string
		body       registerRequest
		wantStatus int
	}{
		{
			name:       "valid registration",
			body:       registerRequest{Email: "a@example.com", Password: "correct-horse", DeviceUUID: "dev-1", DeviceName: "iPhone", PlanGB: 50},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing email",
			body:       registerRequest{Password: "correct-horse", DeviceUUID: "dev-1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing device uuid",
			body:       registerRequest{Email: "b@example.com", Password: "correct-horse"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Register(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Register() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var resp sessionResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshal response: %v", err)
				}
				if resp.Token == "" {
					t.Error("expected a session token")
				}
			}
		})
	}
}

func TestAuthHandlerRegisterDuplicateEmail(t *testing.T) {
	handler := setupAuthTest(t)

	body, _ := json.Marshal(registerRequest{Email: "dup@example.com", Password: "correct-horse", DeviceUUID: "dev-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	handler.Register(httptest.NewRecorder(), req)

	req2 := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(body))
	w2 := httptest.NewRecorder()
	handler.Register(w2, req2)

	if w2.Code != http.StatusConflict {
		t.Fatalf("Register() status = %d, want %d", w2.Code, http.StatusConflict)
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	handler := setupAuthTest(t)

	registerBody, _ := json.Marshal(registerRequest{Email: "login@example.com", Password: "correct-horse", DeviceUUID: "dev-1"})
	handler.Register(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewReader(registerBody)))

	tests := []struct {
		name       string
		body       loginRequest
		wantStatus int
	}{
		{
			name:       "valid credentials",
			body:       loginRequest{Email: "login@example.com", Password: "correct-horse", DeviceUUID: "dev-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       loginRequest{Email: "login@example.com", Password: "wrong", DeviceUUID: "dev-1"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown email",
			body:       loginRequest{Email: "nobody@example.com", Password: "correct-horse", DeviceUUID: "dev-1"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Login() status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}
