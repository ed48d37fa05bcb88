// Package quota implements the per-tenant reservation core: a race-free
// admission check for incoming bytes, separate from the I/O that follows
// it (spec §4.D). The reservation key is the user id — quota is a
// per-account budget shared across that user's devices, distinct from the
// per-device tenant key used for on-disk isolation (internal/pathlayout).
package quota

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/photosync/backend/internal/metrics"
)

// Decision is the outcome of a Reserve call.
type Decision struct {
	Allowed        bool
	QuotaBytes     int64
	UsedBytes      int64
	ReservedBytes  int64
	RemainingBytes int64
}

// Release decrements the reserved counter exactly once; it is safe to wrap
// in a sync.Once at the response-lifecycle layer but Manager itself also
// only ever runs its internal release body once per successful Reserve.
type Release func()

// UsageFunc returns the currently committed bytes for a user (sum of
// stored chunk sizes); injected so Manager has no direct DB dependency.
type UsageFunc func(userID uint) (int64, error)

type userState struct {
	mu       sync.Mutex
	reserved int64
}

// Manager implements the contract in §4.D: acquire a per-user mutex,
// compute quota vs used+reserved+incoming, and admit or reject.
type Manager struct {
	mapMu sync.Mutex
	users map[uint]*userState

	usage  UsageFunc
	margin int64
}

// NewManager builds a Manager that calls usage to learn committed bytes and
// adds marginBytes of headroom on top of every plan quota.
func NewManager(usage UsageFunc, marginBytes int64) *Manager {
	return &Manager{
		users:  make(map[uint]*userState),
		usage:  usage,
		margin: marginBytes,
	}
}

func (m *Manager) stateFor(userID uint) *userState {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	st, ok := m.users[userID]
	if !ok {
		st = &userState{}
		m.users[userID] = st
	}
	return st
}

// planBytes converts a plan_gb value (0 meaning unlimited for non-gated
// callers) to bytes.
func planBytes(planGB int) int64 {
	return int64(planGB) * 1_000_000_000
}

// Reserve admits or rejects incomingBytes for userID against planGB.
// incoming <= 0 is always allowed and never locks. On success, release
// must be called exactly once to free the reservation.
func (m *Manager) Reserve(userID uint, planGB int, incomingBytes int64) (Decision, Release, error) {
	if incomingBytes <= 0 {
		return Decision{Allowed: true}, func() {}, nil
	}

	st := m.stateFor(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	quota := planBytes(planGB)

	used, err := m.usage(userID)
	if err != nil {
		return Decision{}, nil, fmt.Errorf("compute usage for user %d: %w", userID, err)
	}

	reserved := st.reserved
	unlimited := quota == 0

	admit := unlimited || used+reserved+incomingBytes+m.margin <= quota
	decision := Decision{
		Allowed:        admit,
		QuotaBytes:     quota,
		UsedBytes:      used,
		ReservedBytes:  reserved,
		RemainingBytes: max64(quota-used-reserved, 0),
	}

	if !admit {
		return decision, nil, nil
	}

	label := strconv.FormatUint(uint64(userID), 10)

	st.reserved += incomingBytes
	metrics.QuotaReservedBytes.WithLabelValues(label).Set(float64(st.reserved))
	metrics.QuotaUsedBytes.WithLabelValues(label).Set(float64(used))

	var once sync.Once
	release := func() {
		once.Do(func() {
			st.mu.Lock()
			st.reserved -= incomingBytes
			if st.reserved < 0 {
				st.reserved = 0
			}
			remaining := st.reserved
			st.mu.Unlock()

			metrics.QuotaReservedBytes.WithLabelValues(label).Set(float64(remaining))
			m.maybeEvict(userID)
		})
	}

	return decision, release, nil
}

// maybeEvict removes a user's state once its reservation chain has fully
// drained, so the map does not grow unboundedly with churned users.
func (m *Manager) maybeEvict(userID uint) {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	st, ok := m.users[userID]
	if !ok {
		return
	}
	st.mu.Lock()
	empty := st.reserved == 0
	st.mu.Unlock()
	if empty {
		delete(m.users, userID)
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
