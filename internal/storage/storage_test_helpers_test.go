package storage

import (
	"bytes"
	"testing"

	"go-defect-inspector/internal/ccd/ccdtest"
	"go-defect-inspector/internal/fits"
)

// exposureBytes returns a small encoded exposure with one hot pixel on amp 1.
func exposureBytes(t *testing.T) []byte {
	t.Helper()
	geom := ccdtest.SmallGeometry()
	exp := ccdtest.NewExposure(geom, 10, 500)
	ccdtest.AddHotPixel(exp, geom, 1, 2, 3, 200)

	var buf bytes.Buffer
	if err := fits.EncodeExposure(&buf, exp, geom); err != nil {
		t.Fatalf("encode exposure: %v", err)
	}
	return buf.Bytes()
}
