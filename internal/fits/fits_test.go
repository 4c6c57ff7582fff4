package fits

import (
	"bytes"
	"testing"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/internal/ccd/ccdtest"
	apperrors "go-defect-inspector/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestExposureRoundTrip(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	exp := ccdtest.NewExposure(geom, 30, 1000.5)
	ccdtest.AddHotPixel(exp, geom, 9, 4, 7, 300)

	var buf bytes.Buffer
	require.NoError(t, EncodeExposure(&buf, exp, geom))

	got, err := DecodeExposure(&buf)
	require.NoError(t, err)

	assert.Equal(t, 30.0, got.ExpTime)
	assert.Equal(t, "E2V-TEST-000", got.SensorID)
	assert.Equal(t, ccd.AllAmps(), got.Amps())
	require.NoError(t, got.Validate(geom))

	for _, amp := range got.Amps() {
		want, _ := exp.Segment(amp)
		seg, _ := got.Segment(amp)
		assert.True(t, mat.EqualApprox(want.Pixels, seg.Pixels, 1e-3), "amp %d", amp)
	}
}

func TestDecodeExposure_NotFITS(t *testing.T) {
	_, err := DecodeExposure(bytes.NewReader([]byte("SIMPLE? no")))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestEncodeMasks(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	opts := analyzer.DefaultOptions().WithThresholds(5, 3).WithGain(5)

	var results []*analyzer.SegmentResult
	for _, amp := range []int{1, 16} {
		mask, err := analyzer.Render(analyzer.Result{
			BrightColumns: []int{amp % 5},
			BrightPixels:  []analyzer.Pixel{{X: 10, Y: 2}},
		}, geom.Height, geom.Width)
		require.NoError(t, err)
		results = append(results, &analyzer.SegmentResult{Amp: amp, Mask: mask})
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeMasks(&buf, results, opts, geom))

	file, err := DecodeMasks(&buf)
	require.NoError(t, err)
	assert.Equal(t, MaskType, file.MaskType)
	assert.Equal(t, 5.0, file.Ethresh)
	assert.Equal(t, 3, file.Colthresh)
	assert.Equal(t, "BAD", file.Plane)
	assert.Equal(t, geom.DetSize(), file.DetSize)

	require.Len(t, file.Extensions, 2)
	assert.Equal(t, "AMP10", file.Extensions[0].Name)
	assert.Equal(t, "AMP00", file.Extensions[1].Name)
	detsec, _ := geom.DetSec(16)
	assert.Equal(t, detsec, file.Extensions[1].DetSec)

	for i, ext := range file.Extensions {
		assert.Equal(t, results[i].Mask.Bits, ext.Mask.Bits, ext.Name)
	}
}

func TestEncodeMasks_CustomPlane(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	opts := analyzer.DefaultOptions().WithGain(5).WithMaskPlane("hot")

	mask, err := analyzer.Render(analyzer.Result{BrightPixels: []analyzer.Pixel{{X: 1, Y: 1}}}, geom.Height, geom.Width)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeMasks(&buf, []*analyzer.SegmentResult{{Amp: 3, Mask: mask}}, opts, geom))

	file, err := DecodeMasks(&buf)
	require.NoError(t, err)
	assert.Equal(t, "HOT", file.Plane)
	require.Len(t, file.Extensions, 1)
	assert.True(t, file.Extensions[0].Mask.At(1, 1))
	assert.Equal(t, 1, file.Extensions[0].Mask.Count())
}

func TestEncodeMasks_Errors(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	opts := analyzer.DefaultOptions().WithGain(5)

	err := EncodeMasks(&bytes.Buffer{}, nil, opts, geom)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))

	err = EncodeMasks(&bytes.Buffer{}, []*analyzer.SegmentResult{{Amp: 1}}, opts, geom)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))
}

func TestPlaneBit(t *testing.T) {
	assert.Equal(t, 0, PlaneBit("bad"))
	assert.Equal(t, 3, PlaneBit("CR"))
	assert.Equal(t, len(MaskPlanes), PlaneBit("HOT"))
}
