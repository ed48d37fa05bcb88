package subscription

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
)

// Event is one inbound RevenueCat-style subscription event, keyed by the
// plan's external app-user id. Login does not bind that id, so an event
// applies only to a plan whose external_app_user_id column is already set.
type Event struct {
	AppUserID string `json:"app_user_id"`
	Status    string `json:"status"`
	PlanGB    *int   `json:"plan_gb,omitempty"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
	GraceUntil *int64 `json:"grace_until,omitempty"`
}

// DeliveryLog is an append-only ring buffer of the last N webhook
// deliveries, exposed read-only at GET /api/admin/webhook-log. This is an
// operator diagnostic the original JS service had that the distilled spec
// dropped; Non-goals do not exclude it, so it's carried forward.
type DeliveryLog struct {
	mu       sync.Mutex
	capacity int
	entries  []DeliveryRecord
}

// DeliveryRecord is one logged webhook delivery.
type DeliveryRecord struct {
	ReceivedAt time.Time `json:"receivedAt"`
	Event      Event     `json:"event"`
	Error      string    `json:"error,omitempty"`
}

// NewDeliveryLog builds a ring buffer holding at most capacity records.
func NewDeliveryLog(capacity int) *DeliveryLog {
	return &DeliveryLog{capacity: capacity}
}

func (l *DeliveryLog) record(rec DeliveryRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, rec)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Recent returns the logged deliveries, most recent last.
func (l *DeliveryLog) Recent() []DeliveryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DeliveryRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

// WebhookHandler applies external subscription events keyed by app-user id.
type WebhookHandler struct {
	db  *gorm.DB
	log *DeliveryLog
}

// NewWebhookHandler builds a WebhookHandler writing delivery diagnostics to
// log.
func NewWebhookHandler(db *gorm.DB, log *DeliveryLog) *WebhookHandler {
	return &WebhookHandler{db: db, log: log}
}

// Apply atomically updates the plan row bound to event.AppUserID.
func (h *WebhookHandler) Apply(event Event) error {
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var plan dbmodel.UserPlan
		if err := tx.Where("external_app_user_id = ?", event.AppUserID).First(&plan).Error; err != nil {
			return fmt.Errorf("lookup plan for app_user_id %q: %w", event.AppUserID, err)
		}

		updates := map[string]any{"status": event.Status}
		if event.PlanGB != nil {
			updates["plan_gb"] = *event.PlanGB
		}
		if event.ExpiresAt != nil {
			updates["expires_at"] = *event.ExpiresAt
		}
		if event.GraceUntil != nil {
			updates["grace_until"] = *event.GraceUntil
		}

		return tx.Model(&plan).Updates(updates).Error
	})

	rec := DeliveryRecord{ReceivedAt: time.Now(), Event: event}
	if err != nil {
		rec.Error = err.Error()
	}
	h.log.record(rec)

	return err
}
