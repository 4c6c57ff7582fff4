// Package ccdtest builds small in-memory exposures for tests.
package ccdtest

import (
	"image"

	"go-defect-inspector/internal/ccd"

	"gonum.org/v1/gonum/mat"
)

// SmallGeometry is a 20x14 segment with a 14x12 imaging region at (2, 0), four
// overscan columns and two parallel overscan rows.
func SmallGeometry() ccd.Geometry {
	return ccd.Geometry{
		Width:          20,
		Height:         14,
		Imaging:        image.Rect(2, 0, 16, 12),
		SerialOverscan: image.Rect(16, 0, 20, 12),
	}
}

// NewExposure returns an exposure holding every amplifier, each segment set to
// the given bias level.
func NewExposure(geom ccd.Geometry, expTime, bias float64) *ccd.Exposure {
	exp := &ccd.Exposure{
		ExpTime:  expTime,
		SensorID: "E2V-TEST-000",
		Header:   map[string]string{"LSST_NUM": "E2V-TEST-000"},
	}
	for _, amp := range ccd.AllAmps() {
		pixels := mat.NewDense(geom.Height, geom.Width, nil)
		for i := 0; i < geom.Height; i++ {
			for j := 0; j < geom.Width; j++ {
				pixels.Set(i, j, bias)
			}
		}
		exp.Segments = append(exp.Segments, ccd.Segment{Amp: amp, Pixels: pixels})
	}
	return exp
}

// AddHotPixel adds v DN at imaging coordinate (x, y) of amp.
func AddHotPixel(exp *ccd.Exposure, geom ccd.Geometry, amp, x, y int, v float64) {
	seg, ok := exp.Segment(amp)
	if !ok {
		return
	}
	i, j := geom.Imaging.Min.Y+y, geom.Imaging.Min.X+x
	seg.Pixels.Set(i, j, seg.Pixels.At(i, j)+v)
}

// AddHotColumn adds v DN along the full imaging height of column x of amp.
func AddHotColumn(exp *ccd.Exposure, geom ccd.Geometry, amp, x int, v float64) {
	for y := 0; y < geom.Imaging.Dy(); y++ {
		AddHotPixel(exp, geom, amp, x, y, v)
	}
}
