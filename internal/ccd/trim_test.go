package ccd_test

import (
	"image"
	"testing"

	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/internal/ccd/ccdtest"
	apperrors "go-defect-inspector/internal/errors"
	"go-defect-inspector/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestUnbiasAndTrim(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	exp := ccdtest.NewExposure(geom, 10, 1000)
	ccdtest.AddHotPixel(exp, geom, 4, 3, 5, 250)
	seg, _ := exp.Segment(4)

	trimmed, err := ccd.UnbiasAndTrim(seg, geom, &strategy.MeanBiasStrategy{})
	require.NoError(t, err)

	assert.Equal(t, 4, trimmed.Amp())
	assert.Equal(t, image.Pt(2, 0), trimmed.Origin())
	h, w := trimmed.FullSize()
	assert.Equal(t, 14, h)
	assert.Equal(t, 20, w)

	rows, cols := trimmed.Imaging().Dims()
	assert.Equal(t, 12, rows)
	assert.Equal(t, 14, cols)
	assert.Equal(t, 250.0, trimmed.Imaging().At(5, 3))
	assert.Equal(t, 0.0, trimmed.Imaging().At(0, 0))
	assert.Len(t, trimmed.BiasLevels, 12)

	// the raw segment is untouched
	assert.Equal(t, 1250.0, seg.Pixels.At(5, 5))
}

func TestUnbiasAndTrim_RowBias(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	exp := ccdtest.NewExposure(geom, 10, 0)
	seg, _ := exp.Segment(1)
	// bias ramps by one DN per row
	seg.Pixels.Apply(func(i, _ int, v float64) float64 { return v + float64(i) }, seg.Pixels)

	trimmed, err := ccd.UnbiasAndTrim(seg, geom, &strategy.RowBiasStrategy{})
	require.NoError(t, err)
	assert.True(t, mat.Equal(trimmed.Imaging(), mat.NewDense(12, 14, nil)))
	assert.Equal(t, 11.0, trimmed.BiasLevels[11])
}

func TestUnbiasAndTrim_Errors(t *testing.T) {
	geom := ccdtest.SmallGeometry()
	exp := ccdtest.NewExposure(geom, 10, 0)
	seg, _ := exp.Segment(1)

	_, err := ccd.UnbiasAndTrim(nil, geom, &strategy.MeanBiasStrategy{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))

	_, err = ccd.UnbiasAndTrim(seg, geom, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidParameter))

	_, err = ccd.UnbiasAndTrim(seg, ccd.DefaultGeometry(), &strategy.MeanBiasStrategy{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDimension))
}

func TestExposureValidate(t *testing.T) {
	geom := ccdtest.SmallGeometry()

	exp := ccdtest.NewExposure(geom, 10, 0)
	require.NoError(t, exp.Validate(geom))
	assert.Equal(t, ccd.AllAmps(), exp.Amps())

	exp.ExpTime = 0
	assert.True(t, apperrors.IsType(exp.Validate(geom), apperrors.ErrorTypeInvalidParameter))

	exp = ccdtest.NewExposure(geom, 10, 0)
	exp.Segments[3].Amp = exp.Segments[2].Amp
	assert.True(t, apperrors.IsType(exp.Validate(geom), apperrors.ErrorTypeValidation))

	exp = ccdtest.NewExposure(geom, 10, 0)
	exp.Segments[0].Pixels = mat.NewDense(3, 3, nil)
	assert.True(t, apperrors.IsType(exp.Validate(geom), apperrors.ErrorTypeDimension))

	empty := &ccd.Exposure{ExpTime: 1}
	assert.True(t, apperrors.IsType(empty.Validate(geom), apperrors.ErrorTypeValidation))
}
