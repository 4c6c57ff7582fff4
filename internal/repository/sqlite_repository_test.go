package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go-defect-inspector/pkg/models"
	"go-defect-inspector/pkg/validation"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteDefectRepository {
	t.Helper()
	repo, err := NewSQLiteDefectRepository(filepath.Join(t.TempDir(), "defects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleAnalysis(id, sensor string, ts time.Time) *models.DefectAnalysis {
	return &models.DefectAnalysis{
		ID:          id,
		SensorID:    sensor,
		ExposureURL: "https://example.org/darks/" + id + ".fits",
		Timestamp:   ts,
		ExpTime:     10,
		Ethresh:     5,
		Colthresh:   20,
		MaskPlane:   "BAD",
		BiasMethod:  "mean",
		Segments: []models.SegmentDefects{
			{
				Amp:            1,
				Channel:        "10",
				Threshold:      10,
				Gain:           5,
				BiasLevel:      1000.5,
				BrightColumns:  []int{7},
				BrightPixels:   []models.Pixel{{X: 3, Y: 4}, {X: 3, Y: 9}},
				Footprints:     2,
				DefectPixels:   14,
				DefectFraction: 0.014,
				ColumnCounts:   []int{0, 0, 0, 2, 0, 0, 0, 12},
				Stats:          models.SegmentStats{Mean: 2.25, Median: 0.5, StdDev: 4.75},
			},
			{
				Amp:           2,
				Channel:       "11",
				Threshold:     10,
				Gain:          5,
				BrightColumns: []int{},
				BrightPixels:  []models.Pixel{},
			},
		},
		TotalBrightPixels:  2,
		TotalBrightColumns: 1,
		Accepted:           false,
		Issues: []validation.DefectIssue{
			{Amp: 1, Channel: "10", Type: "defect_fraction", Message: "too many", Severity: "error", ActualValue: 0.014, Threshold: 0.005},
		},
		ProcessingTimeSec: 0.25,
	}
}

func TestSQLiteDefectRepository_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	want := sampleAnalysis("a1", "E2V-CCD250-112", time.Date(2024, 3, 1, 12, 0, 0, 123, time.UTC))
	require.NoError(t, repo.SaveAnalysis(ctx, want, []byte("SIMPLE  =                    T")))

	got, err := repo.GetAnalysis(ctx, "a1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("analysis mismatch (-want +got):\n%s", diff)
	}

	mask, err := repo.GetMask(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "SIMPLE  =                    T", string(mask))
}

func TestSQLiteDefectRepository_NotFound(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetAnalysis(ctx, "missing")
	assert.True(t, errors.Is(err, ErrAnalysisNotFound))

	_, err = repo.GetMask(ctx, "missing")
	assert.True(t, errors.Is(err, ErrAnalysisNotFound))

	require.NoError(t, repo.SaveAnalysis(ctx, sampleAnalysis("nomask", "S", time.Now()), nil))
	_, err = repo.GetMask(ctx, "nomask")
	assert.True(t, errors.Is(err, ErrAnalysisNotFound))
}

func TestSQLiteDefectRepository_DuplicateID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a := sampleAnalysis("dup", "S", time.Now())
	require.NoError(t, repo.SaveAnalysis(ctx, a, nil))
	assert.Error(t, repo.SaveAnalysis(ctx, a, nil))

	// the failed insert left nothing half-written
	got, err := repo.GetAnalysis(ctx, "dup")
	require.NoError(t, err)
	assert.Len(t, got.Segments[0].BrightPixels, 2)
}

func TestSQLiteDefectRepository_History(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		require.NoError(t, repo.SaveAnalysis(ctx, sampleAnalysis(id, "S1", base.Add(offsets[i])), nil))
	}
	require.NoError(t, repo.SaveAnalysis(ctx, sampleAnalysis("other", "S2", base), nil))

	history, err := repo.GetAnalysisHistory(ctx, "S1", 0)
	require.NoError(t, err)
	var ids []string
	for _, h := range history {
		ids = append(ids, h.ID)
		assert.Equal(t, "S1", h.SensorID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)

	history, err = repo.GetAnalysisHistory(ctx, "S1", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = repo.GetAnalysisHistory(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSQLiteDefectRepository_Migrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defects.db")
	repo, err := NewSQLiteDefectRepository(path)
	require.NoError(t, err)

	version, dirty, err := repo.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)
	require.NoError(t, repo.Close())

	// reopening an up-to-date catalog is a no-op
	repo, err = NewSQLiteDefectRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Close())
}
