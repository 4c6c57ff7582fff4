package analyzer

import (
	"image"
	"testing"

	apperrors "go-defect-inspector/internal/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestExtract_NothingAboveThreshold(t *testing.T) {
	img := newImage(10, 10, 0)
	img.Set(2, 2, 10) // equal to the threshold is not flagged

	spans, err := Extract(img, 5, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestExtract_SpansOrderedByRowThenColumn(t *testing.T) {
	img := newImage(4, 8, 0)
	for _, p := range []Pixel{{6, 0}, {1, 0}, {2, 0}, {0, 2}, {5, 2}, {6, 2}, {7, 2}, {3, 3}} {
		img.Set(p.Y, p.X, 100)
	}

	spans, err := Extract(img, 5, 10, 5)
	require.NoError(t, err)

	want := []Span{
		{Row: 0, X0: 1, X1: 2},
		{Row: 0, X0: 6, X1: 6},
		{Row: 2, X0: 0, X1: 0},
		{Row: 2, X0: 5, X1: 7},
		{Row: 3, X0: 3, X1: 3},
	}
	if diff := cmp.Diff(want, spans); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_EveryFlaggedPixelInExactlyOneSpan(t *testing.T) {
	img := randomDefects(7, 40, 30)
	spans, err := Extract(img, 5, 10, 5)
	require.NoError(t, err)

	seen := make(map[Pixel]int)
	for _, s := range spans {
		for x := s.X0; x <= s.X1; x++ {
			seen[Pixel{X: x, Y: s.Row}]++
		}
	}
	want := flagged(img, 10)
	assert.Len(t, seen, len(want))
	for p, n := range seen {
		assert.Equal(t, 1, n, "pixel %v covered %d times", p, n)
		assert.True(t, want[p], "pixel %v is not above threshold", p)
	}
}

func TestExtract_InvalidInput(t *testing.T) {
	tests := []struct {
		name                   string
		img                    mat.Matrix
		ethresh, exptime, gain float64
	}{
		{"nil image", nil, 5, 10, 5},
		{"zero gain", newImage(3, 3, 0), 5, 10, 0},
		{"negative exptime", newImage(3, 3, 0), 5, -1, 5},
		{"zero ethresh", newImage(3, 3, 0), 0, 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.img, tt.ethresh, tt.exptime, tt.gain)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))
		})
	}
}

func TestExtractFootprints_EightConnected(t *testing.T) {
	img := newImage(6, 8, 0)
	// diagonal pair: one footprint
	img.Set(0, 0, 100)
	img.Set(1, 1, 100)
	// isolated pixel two columns away from the pair
	img.Set(0, 3, 60)
	// U shape whose arms only join on the last row
	for y := 3; y < 6; y++ {
		img.Set(y, 3, 100)
		img.Set(y, 7, 100)
	}
	for x := 3; x <= 7; x++ {
		img.Set(5, x, 100)
	}
	img.Set(5, 0, 250)

	fps, err := ExtractFootprints(img, 5, 10, 5)
	require.NoError(t, err)
	require.Len(t, fps, 4)

	assert.Equal(t, 0, fps[0].ID)
	assert.Equal(t, image.Rect(0, 0, 2, 2), fps[0].BBox)
	assert.Equal(t, 2, fps[0].Area)

	assert.Equal(t, image.Rect(3, 0, 4, 1), fps[1].BBox)
	assert.Equal(t, 60.0, fps[1].Peak)

	u := fps[2]
	assert.Equal(t, image.Rect(3, 3, 8, 6), u.BBox)
	assert.Equal(t, 9, u.Area)
	assert.Equal(t, 100.0, u.Peak)

	// labelled after the U because its row is scanned later
	assert.Equal(t, image.Rect(0, 5, 1, 6), fps[3].BBox)
	assert.Equal(t, 250.0, fps[3].Peak)
	assert.Equal(t, 1, fps[3].Area)
}

func TestExtractFootprints_LongRunBridgesRegions(t *testing.T) {
	img := newImage(3, 9, 0)
	for _, x := range []int{0, 3, 6} {
		img.Set(0, x, 100)
	}
	for x := 0; x < 9; x++ {
		img.Set(1, x, 100)
	}
	img.Set(2, 8, 100)

	fps, err := ExtractFootprints(img, 5, 10, 5)
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, 3+9+1, fps[0].Area)
	assert.Len(t, fps[0].Spans, 5)
}

func TestExtract_Deterministic(t *testing.T) {
	img := randomDefects(42, 50, 50)
	first, err := Extract(img, 5, 10, 5)
	require.NoError(t, err)
	second, err := Extract(img, 5, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
