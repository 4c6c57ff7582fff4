// Package ccd describes the layout of an amplifier segment readout and turns raw
// segments into bias-corrected imaging regions.
package ccd

import (
	"fmt"
	"image"

	apperrors "go-defect-inspector/internal/errors"
)

// NumAmps is the number of amplifier segments on a sensor.
const NumAmps = 16

// channelIDs maps amplifier number to the readout channel label used in
// extension names.
var channelIDs = map[int]string{
	1: "10", 2: "11", 3: "12", 4: "13", 5: "14", 6: "15", 7: "16", 8: "17",
	9: "07", 10: "06", 11: "05", 12: "04", 13: "03", 14: "02", 15: "01", 16: "00",
}

// Geometry is the pixel layout of one untrimmed amplifier segment.
type Geometry struct {
	Width  int
	Height int
	// Imaging is the light-sensitive region; Min is its origin in segment pixels.
	Imaging image.Rectangle
	// SerialOverscan supplies the bias estimate for every imaging row.
	SerialOverscan image.Rectangle
}

// DefaultGeometry is the e2v segment: 10 prescan columns, a 512x2002 imaging
// region, 20 serial and 20 parallel overscan pixels.
func DefaultGeometry() Geometry {
	return Geometry{
		Width:          542,
		Height:         2022,
		Imaging:        image.Rect(10, 0, 522, 2002),
		SerialOverscan: image.Rect(522, 0, 542, 2002),
	}
}

// Validate checks that both regions lie inside the segment and the overscan
// covers every imaging row.
func (g Geometry) Validate() error {
	bounds := image.Rect(0, 0, g.Width, g.Height)
	if bounds.Empty() {
		return apperrors.NewInvalidParameterError(
			fmt.Sprintf("segment dimensions must be > 0 (got %dx%d)", g.Width, g.Height), nil)
	}
	if g.Imaging.Empty() || !g.Imaging.In(bounds) {
		return apperrors.NewDimensionError("imaging region outside segment", nil).
			WithDetails("imaging=%v segment=%v", g.Imaging, bounds)
	}
	if g.SerialOverscan.Empty() || !g.SerialOverscan.In(bounds) {
		return apperrors.NewDimensionError("serial overscan outside segment", nil).
			WithDetails("overscan=%v segment=%v", g.SerialOverscan, bounds)
	}
	if g.SerialOverscan.Min.Y > g.Imaging.Min.Y || g.SerialOverscan.Max.Y < g.Imaging.Max.Y {
		return apperrors.NewDimensionError("serial overscan does not span the imaging rows", nil).
			WithDetails("imaging=%v overscan=%v", g.Imaging, g.SerialOverscan)
	}
	return nil
}

// Prescan returns the columns read out before the imaging region.
func (g Geometry) Prescan() image.Rectangle {
	return image.Rect(0, g.Imaging.Min.Y, g.Imaging.Min.X, g.Imaging.Max.Y)
}

// DetSize is the full sensor size in FITS section notation. Amplifiers sit in
// two rows of eight.
func (g Geometry) DetSize() string {
	return fmt.Sprintf("[1:%d,1:%d]", NumAmps/2*g.Imaging.Dx(), 2*g.Imaging.Dy())
}

// DetSec is the imaging region of amp in sensor coordinates. Amps 1-8 read the
// bottom half with x flipped; amps 9-16 read the top half with y flipped.
func (g Geometry) DetSec(amp int) (string, error) {
	if err := checkAmp(amp); err != nil {
		return "", err
	}
	dx, dy := g.Imaging.Dx(), g.Imaging.Dy()
	if amp <= NumAmps/2 {
		return fmt.Sprintf("[%d:%d,%d:%d]", amp*dx, (amp-1)*dx+1, 1, dy), nil
	}
	col := NumAmps - amp
	return fmt.Sprintf("[%d:%d,%d:%d]", col*dx+1, (col+1)*dx, 2*dy, dy+1), nil
}

// ChannelID returns the readout channel label of amp.
func ChannelID(amp int) (string, error) {
	if err := checkAmp(amp); err != nil {
		return "", err
	}
	return channelIDs[amp], nil
}

// AmpForChannel is the inverse of ChannelID.
func AmpForChannel(channel string) (int, bool) {
	for amp, id := range channelIDs {
		if id == channel {
			return amp, true
		}
	}
	return 0, false
}

// AllAmps lists amplifiers 1..NumAmps.
func AllAmps() []int {
	amps := make([]int, NumAmps)
	for i := range amps {
		amps[i] = i + 1
	}
	return amps
}

func checkAmp(amp int) error {
	if amp < 1 || amp > NumAmps {
		return apperrors.NewInvalidParameterError(
			fmt.Sprintf("amplifier must be in 1..%d (got %d)", NumAmps, amp), nil)
	}
	return nil
}
