package workers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/dbmodel"
)

func TestCapacityReporterWritesReport(t *testing.T) {
	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := credentials.NewStore(db, 4, 14)
	_, err = store.Register("tier-a@example.com", "correct-horse", 100)
	require.NoError(t, err)
	_, err = store.Register("tier-b@example.com", "correct-horse", 100)
	require.NoError(t, err)
	_, err = store.Register("tier-c@example.com", "correct-horse", 20)
	require.NoError(t, err)

	cloudRoot := t.TempDir()
	outputPath := filepath.Join(t.TempDir(), "capacity.json")
	reporter := NewCapacityReporter(db, cloudRoot, outputPath, 0)

	require.NoError(t, reporter.Run())

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var report CapacityReport
	require.NoError(t, json.Unmarshal(data, &report))

	require.Positive(t, report.GeneratedAt)
	require.Positive(t, report.TotalBytes)

	byPlan := make(map[int]TierCapacity)
	for _, tier := range report.Tiers {
		byPlan[tier.PlanGB] = tier
	}

	require.Equal(t, 2, byPlan[100].ActiveAccounts)
	require.Equal(t, int64(200_000_000_000), byPlan[100].AllocatedBytes)
	require.Equal(t, 1, byPlan[20].ActiveAccounts)
	require.Equal(t, int64(20_000_000_000), byPlan[20].AllocatedBytes)
}

func TestCapacityReporterMarksTierUnableToCreateWhenFreeSpaceLow(t *testing.T) {
	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := credentials.NewStore(db, 4, 14)
	_, err = store.Register("tier-only@example.com", "correct-horse", 100)
	require.NoError(t, err)

	reporter := NewCapacityReporter(db, t.TempDir(), filepath.Join(t.TempDir(), "capacity.json"), 0)

	tiers, err := reporter.tierCapacities(50_000_000_000) // 50GB free, tier needs 100GB
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	require.False(t, tiers[0].CanCreate)
}

func TestCapacityReporterMarksTierAbleToCreateWhenFreeSpaceSufficient(t *testing.T) {
	db, err := dbmodel.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := credentials.NewStore(db, 4, 14)
	_, err = store.Register("tier-ok@example.com", "correct-horse", 10)
	require.NoError(t, err)

	reporter := NewCapacityReporter(db, t.TempDir(), filepath.Join(t.TempDir(), "capacity.json"), 0)

	tiers, err := reporter.tierCapacities(1_000_000_000_000) // 1TB free
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	require.True(t, tiers[0].CanCreate)
}

func TestStatfsReportsPositiveSpace(t *testing.T) {
	free, total, err := statfs(t.TempDir())
	require.NoError(t, err)
	require.Positive(t, free)
	require.Positive(t, total)
}
