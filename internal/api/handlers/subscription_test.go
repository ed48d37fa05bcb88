package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/subscription"
)

func setupSubscriptionTest(t *testing.T, webhookSecret string) (*SubscriptionHandler, *credentials.TokenService, *dbmodel.User) {
	t.Helper()

	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	creds := credentials.NewStore(db, 4, 14)
	user, err := creds.Register("subscriber@example.com", "correct-horse", 50)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := db.Model(&dbmodel.UserPlan{}).Where("user_id = ?", user.ID).
		Update("external_app_user_id", "app-1").Error; err != nil {
		t.Fatalf("bind app user id: %v", err)
	}

	resolver := subscription.NewResolver(db, 7)
	deliveryLog := subscription.NewDeliveryLog(10)
	webhook := subscription.NewWebhookHandler(db, deliveryLog)
	tokens := credentials.NewTokenService("test-secret-at-least-32-bytes-long")

	return NewSubscriptionHandler(resolver, webhook, deliveryLog, webhookSecret), tokens, user
}

func TestSubscriptionHandlerStatus(t *testing.T) {
	handler, tokens, user := setupSubscriptionTest(t, "hook-secret")

	token, err := tokens.Issue(user.ID, user.UserUUID, user.Email, "dev-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := authedRequest(http.MethodGet, "/api/subscription/status", token, "dev-1", nil)
	w := httptest.NewRecorder()
	middleware.Auth(tokens)(http.HandlerFunc(handler.Status)).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status() status = %d, body = %s", w.Code, w.Body.String())
	}

	var resolved subscription.Resolved
	if err := json.Unmarshal(w.Body.Bytes(), &resolved); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resolved.PlanGB != 50 {
		t.Errorf("PlanGB = %d, want 50", resolved.PlanGB)
	}
}

func TestSubscriptionHandlerWebhookAppliesEvent(t *testing.T) {
	handler, _, _ := setupSubscriptionTest(t, "hook-secret")

	event := subscription.Event{AppUserID: "app-1", Status: "active"}
	body, _ := json.Marshal(event)

	req := httptest.NewRequest(http.MethodPost, "/api/revenuecat/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer hook-secret")
	w := httptest.NewRecorder()

	handler.Webhook(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Webhook() status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSubscriptionHandlerWebhookRejectsBadSecret(t *testing.T) {
	handler, _, _ := setupSubscriptionTest(t, "hook-secret")

	event := subscription.Event{AppUserID: "app-1", Status: "active"}
	body, _ := json.Marshal(event)

	req := httptest.NewRequest(http.MethodPost, "/api/revenuecat/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong-secret")
	w := httptest.NewRecorder()

	handler.Webhook(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Webhook() status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestSubscriptionHandlerWebhookLogRecordsDeliveries(t *testing.T) {
	handler, _, _ := setupSubscriptionTest(t, "hook-secret")

	event := subscription.Event{AppUserID: "app-1", Status: "active"}
	body, _ := json.Marshal(event)
	req := httptest.NewRequest(http.MethodPost, "/api/revenuecat/webhook", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer hook-secret")
	handler.Webhook(httptest.NewRecorder(), req)

	logReq := httptest.NewRequest(http.MethodGet, "/api/admin/webhook-log", nil)
	logW := httptest.NewRecorder()
	handler.WebhookLog(logW, logReq)

	if logW.Code != http.StatusOK {
		t.Fatalf("WebhookLog() status = %d", logW.Code)
	}
	if logW.Body.Len() == 0 || logW.Body.String() == "null" {
		t.Errorf("expected at least one recorded delivery, got %s", logW.Body.String())
	}
}
