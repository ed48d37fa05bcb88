package workers

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/photosync/backend/internal/dbmodel"
)

// CapacityReport is the JSON document served verbatim at GET /api/capacity,
// per spec §4.H item 1 and §6.
type CapacityReport struct {
	FreeBytes   int64          `json:"freeBytes"`
	TotalBytes  int64          `json:"totalBytes"`
	Tiers       []TierCapacity `json:"tiers"`
	GeneratedAt int64          `json:"generatedAt"`
}

// TierCapacity reports whether new accounts on a given plan size can
// currently be admitted, given both server-wide free space and the
// cumulative allocation already promised to existing accounts on that plan.
type TierCapacity struct {
	PlanGB         int   `json:"planGb"`
	ActiveAccounts int   `json:"activeAccounts"`
	AllocatedBytes int64 `json:"allocatedBytes"`
	CanCreate      bool  `json:"canCreate"`
}

// CapacityReporter computes free/total disk space on the cloud root and
// per-tier allocation headroom, writing the result atomically to a fixed
// path, per spec §4.H item 1.
type CapacityReporter struct {
	db          *gorm.DB
	cloudRoot   string
	outputPath  string
	marginBytes int64
}

// NewCapacityReporter builds a CapacityReporter that statts cloudRoot and
// writes its report to outputPath, reserving marginBytes of free space
// before declaring a tier able to admit new accounts.
func NewCapacityReporter(db *gorm.DB, cloudRoot, outputPath string, marginBytes int64) *CapacityReporter {
	return &CapacityReporter{db: db, cloudRoot: cloudRoot, outputPath: outputPath, marginBytes: marginBytes}
}

// Run computes and atomically writes the capacity report.
func (c *CapacityReporter) Run() error {
	free, total, err := statfs(c.cloudRoot)
	if err != nil {
		return fmt.Errorf("stat cloud root: %w", err)
	}

	tiers, err := c.tierCapacities(free)
	if err != nil {
		return fmt.Errorf("compute tier capacities: %w", err)
	}

	report := CapacityReport{
		FreeBytes:   free,
		TotalBytes:  total,
		Tiers:       tiers,
		GeneratedAt: time.Now().UnixMilli(),
	}

	return writeAtomic(c.outputPath, report)
}

// tierCapacities groups active plans by plan_gb and sums the bytes each
// tier has been promised (plan size plus the same per-account margin the
// quota core reserves), then compares the cumulative promise plus one more
// account's worth against free space.
func (c *CapacityReporter) tierCapacities(freeBytes int64) ([]TierCapacity, error) {
	var plans []dbmodel.UserPlan
	err := c.db.Where("status IN ?", []string{dbmodel.StatusActive, dbmodel.StatusTrial}).Find(&plans).Error
	if err != nil {
		return nil, err
	}

	byTier := make(map[int]*TierCapacity)
	for _, plan := range plans {
		if plan.PlanGB == nil {
			continue
		}
		planGB := *plan.PlanGB
		t, ok := byTier[planGB]
		if !ok {
			t = &TierCapacity{PlanGB: planGB}
			byTier[planGB] = t
		}
		t.ActiveAccounts++
		t.AllocatedBytes += int64(planGB)*1_000_000_000 + c.marginBytes
	}

	out := make([]TierCapacity, 0, len(byTier))
	for _, t := range byTier {
		additionalAccountBytes := int64(t.PlanGB)*1_000_000_000 + c.marginBytes
		t.CanCreate = freeBytes-c.marginBytes >= t.AllocatedBytes+additionalAccountBytes
		out = append(out, *t)
	}
	return out, nil
}

// statfs reports free and total bytes on the filesystem backing path.
// Grounded on the same stdlib syscall as internal/api/handlers/usage.go's
// serverFreeBytes; see DESIGN.md for why no pack library covers this.
func statfs(path string) (freeBytes, totalBytes int64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), int64(stat.Blocks) * int64(stat.Bsize), nil
}

// ReadCapacityReport loads the last report written to path, for CLI
// callers (`photosyncd capacity-report`) that want to print it without
// recomputing it.
func ReadCapacityReport(path string) (*CapacityReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report CapacityReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse capacity report: %w", err)
	}
	return &report, nil
}

// writeAtomic serializes v to JSON and writes it to path via a temp file
// plus rename, the same write-tmp-then-rename pattern every on-disk writer
// in this module uses.
func writeAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal capacity report: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write capacity report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize capacity report: %w", err)
	}
	return nil
}
