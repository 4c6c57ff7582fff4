package fits

import (
	"fmt"
	"io"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"

	"github.com/astrogo/fitsio"
)

// MaskType tags the primary header of a bright pixel mask file.
const MaskType = "BRIGHT_PIXELS"

// EncodeMasks writes a mask file: an empty primary HDU carrying the detection
// thresholds, then one 16-bit image extension per result with the plane bit
// set on every defect pixel.
func EncodeMasks(w io.Writer, results []*analyzer.SegmentResult, opts analyzer.DetectionOptions, geom ccd.Geometry) error {
	if len(results) == 0 {
		return apperrors.NewInvalidParameterError("no segment results to write", nil)
	}
	bit := PlaneBit(opts.MaskPlane)
	if bit > 15 {
		return apperrors.NewInvalidParameterError(fmt.Sprintf("no free mask bit for plane %q", opts.MaskPlane), nil)
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return apperrors.NewInternalError("failed to create FITS stream", err)
	}
	defer f.Close()

	primary, err := fitsio.NewPrimaryHDU(fitsio.NewHeader([]fitsio.Card{
		{Name: "MASKTYPE", Value: MaskType},
		{Name: "ETHRESH", Value: opts.Ethresh, Comment: "e-/s/pixel"},
		{Name: "CTHRESH", Value: opts.Colthresh, Comment: "bright column pixel count"},
		{Name: "MASKPLN", Value: opts.MaskPlane},
	}, fitsio.IMAGE_HDU, 8, []int{}))
	if err != nil {
		return apperrors.NewInternalError("failed to build primary HDU", err)
	}
	if err := f.Write(primary); err != nil {
		return apperrors.NewInternalError("failed to write primary HDU", err)
	}

	for _, res := range results {
		if err := writeMask(f, res, opts.MaskPlane, bit, geom); err != nil {
			return fmt.Errorf("amp %d: %w", res.Amp, err)
		}
	}
	return nil
}

func writeMask(f *fitsio.File, res *analyzer.SegmentResult, plane string, bit int, geom ccd.Geometry) error {
	if res.Mask == nil {
		return apperrors.NewInvalidParameterError("segment result has no mask", nil)
	}
	channel, err := ccd.ChannelID(res.Amp)
	if err != nil {
		return err
	}
	detsec, err := geom.DetSec(res.Amp)
	if err != nil {
		return err
	}

	m := res.Mask
	data := make([]int16, m.Width*m.Height)
	for i, set := range m.Bits {
		if set {
			data[i] = 1 << uint(bit)
		}
	}

	img := fitsio.NewImage(16, []int{m.Width, m.Height})
	defer img.Close()

	cards := []fitsio.Card{
		{Name: "EXTNAME", Value: "AMP" + channel},
		{Name: "DETSIZE", Value: geom.DetSize()},
		{Name: "DETSEC", Value: detsec},
	}
	for i, p := range MaskPlanes {
		cards = append(cards, fitsio.Card{Name: "MP_" + p, Value: i})
	}
	if bit == len(MaskPlanes) {
		cards = append(cards, fitsio.Card{Name: "MP_" + plane, Value: bit})
	}
	if err := img.Header().Append(cards...); err != nil {
		return apperrors.NewInternalError("failed to build mask header", err)
	}
	if err := img.Write(&data); err != nil {
		return apperrors.NewInternalError("failed to encode mask", err)
	}
	if err := f.Write(img); err != nil {
		return apperrors.NewInternalError("failed to write mask HDU", err)
	}
	return nil
}

// EncodeExposure writes exp as a raw exposure with 32-bit float segments, the
// layout DecodeExposure reads.
func EncodeExposure(w io.Writer, exp *ccd.Exposure, geom ccd.Geometry) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return apperrors.NewInternalError("failed to create FITS stream", err)
	}
	defer f.Close()

	cards := []fitsio.Card{{Name: "EXPTIME", Value: exp.ExpTime, Comment: "s"}}
	if exp.SensorID != "" {
		cards = append(cards, fitsio.Card{Name: "LSST_NUM", Value: exp.SensorID})
	}
	primary, err := fitsio.NewPrimaryHDU(fitsio.NewHeader(cards, fitsio.IMAGE_HDU, 8, []int{}))
	if err != nil {
		return apperrors.NewInternalError("failed to build primary HDU", err)
	}
	if err := f.Write(primary); err != nil {
		return apperrors.NewInternalError("failed to write primary HDU", err)
	}

	for _, seg := range exp.Segments {
		channel, err := ccd.ChannelID(seg.Amp)
		if err != nil {
			return err
		}
		detsec, err := geom.DetSec(seg.Amp)
		if err != nil {
			return err
		}
		rows, cols := seg.Pixels.Dims()
		data := make([]float32, 0, rows*cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data = append(data, float32(seg.Pixels.At(i, j)))
			}
		}

		img := fitsio.NewImage(-32, []int{cols, rows})
		err = img.Header().Append(
			fitsio.Card{Name: "EXTNAME", Value: "AMP" + channel},
			fitsio.Card{Name: "DETSIZE", Value: geom.DetSize()},
			fitsio.Card{Name: "DETSEC", Value: detsec},
		)
		if err == nil {
			err = img.Write(&data)
		}
		if err == nil {
			err = f.Write(img)
		}
		img.Close()
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to write amp %d", seg.Amp), err)
		}
	}
	return nil
}
