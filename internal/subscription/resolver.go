// Package subscription computes effective subscription state from a plan
// row and gates upload/read access against it (spec §4.C).
package subscription

import (
	"time"

	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
)

// Resolved is the state object handed back to callers and serialized for
// GET /api/subscription/status.
type Resolved struct {
	Allowed    bool   `json:"allowed"`
	Status     string `json:"status"`
	PlanGB     int    `json:"planGb"`
	ExpiresAt  int64  `json:"expiresAt,omitempty"`
	GraceUntil int64  `json:"graceUntil,omitempty"`
	TrialUntil int64  `json:"trialUntil,omitempty"`
	DeletedAt  int64  `json:"deletedAt,omitempty"`
}

// Gate names the access policy a caller wants enforced.
type Gate int

const (
	// GateUpload admits only active or trial status.
	GateUpload Gate = iota
	// GateRead admits any status except deleted.
	GateRead
)

// FailureCode is returned to the client alongside the gated HTTP status.
type FailureCode string

const (
	CodeSubscriptionRequired = FailureCode("SUBSCRIPTION_REQUIRED")
	CodeDataDeleted          = FailureCode("SUBSCRIPTION_DATA_DELETED")

	// CodeTrialExpiredSyncOnly and CodeSubscriptionExpiredSyncOnly are what
	// Check returns for a blocked upload: status != deleted already
	// satisfies the read gate above, so the account can keep
	// syncing/reading, just not uploading new chunks.
	CodeTrialExpiredSyncOnly        = FailureCode("TRIAL_EXPIRED_SYNC_ONLY")
	CodeSubscriptionExpiredSyncOnly = FailureCode("SUBSCRIPTION_EXPIRED_SYNC_ONLY")
)

// Resolver computes and persists subscription state transitions.
type Resolver struct {
	db         *gorm.DB
	graceDays  int
}

// NewResolver builds a Resolver that grants graceDays of grace after
// expiry.
func NewResolver(db *gorm.DB, graceDays int) *Resolver {
	return &Resolver{db: db, graceDays: graceDays}
}

// Resolve loads the user's plan, applies any due state transitions
// (idempotently persisting them), and returns the resolved view.
func (r *Resolver) Resolve(userID uint) (*Resolved, error) {
	var plan dbmodel.UserPlan
	if err := r.db.Where("user_id = ?", userID).First(&plan).Error; err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	changed := applyTransitions(&plan, now, r.graceDays)
	if changed {
		if err := r.db.Save(&plan).Error; err != nil {
			return nil, err
		}
	}

	return toResolved(&plan), nil
}

// applyTransitions mutates plan in place per §4.C's state machine and
// reports whether anything changed.
func applyTransitions(plan *dbmodel.UserPlan, now int64, graceDays int) bool {
	changed := false

	if plan.Status == dbmodel.StatusTrial && plan.TrialUntil != nil && *plan.TrialUntil <= now {
		plan.Status = dbmodel.StatusTrialExpired
		changed = true
	}

	if plan.ExpiresAt != nil && *plan.ExpiresAt <= now && plan.GraceUntil == nil {
		until := *plan.ExpiresAt + int64(graceDays)*86400000
		plan.GraceUntil = &until
		plan.Status = dbmodel.StatusGrace
		changed = true
	}

	// grace -> grace_expired is reported to callers but the actual tenant
	// deletion is performed by the sweeper worker, not here.
	if plan.Status == dbmodel.StatusGrace && plan.GraceUntil != nil && *plan.GraceUntil <= now {
		// status left as "grace" in storage; resolved view reports
		// grace_expired so callers see the effective state without this
		// resolver racing the sweeper's authoritative transition.
	}

	return changed
}

func toResolved(plan *dbmodel.UserPlan) *Resolved {
	status := plan.Status
	if status == dbmodel.StatusGrace && plan.GraceUntil != nil && *plan.GraceUntil <= time.Now().UnixMilli() {
		status = dbmodel.StatusGraceExpired
	}

	out := &Resolved{Status: status}
	if plan.PlanGB != nil {
		out.PlanGB = *plan.PlanGB
	}
	if plan.ExpiresAt != nil {
		out.ExpiresAt = *plan.ExpiresAt
	}
	if plan.GraceUntil != nil {
		out.GraceUntil = *plan.GraceUntil
	}
	if plan.TrialUntil != nil {
		out.TrialUntil = *plan.TrialUntil
	}
	if plan.DeletedAt != nil {
		out.DeletedAt = *plan.DeletedAt
	}
	out.Allowed = true
	return out
}

// Check evaluates gate against the resolved state and returns a failure
// code plus the HTTP status to use when access is denied; ok is true when
// access is permitted.
func Check(resolved *Resolved, gate Gate) (ok bool, code FailureCode, httpStatus int) {
	switch resolved.Status {
	case dbmodel.StatusDeleted:
		return false, CodeDataDeleted, 410
	}

	if gate == GateRead {
		return true, "", 0
	}

	switch resolved.Status {
	case dbmodel.StatusActive, dbmodel.StatusTrial:
		return true, "", 0
	case dbmodel.StatusTrialExpired:
		// Blocked from the upload gate only; the read gate above already
		// let anything but "deleted" through, so sync continues.
		return false, CodeTrialExpiredSyncOnly, 402
	case dbmodel.StatusGrace, dbmodel.StatusGraceExpired:
		return false, CodeSubscriptionExpiredSyncOnly, 402
	default:
		return false, CodeSubscriptionRequired, 402
	}
}
