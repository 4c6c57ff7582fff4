package fits

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"

	"github.com/astrogo/fitsio"
	"gonum.org/v1/gonum/mat"
)

// keptHeaderKeys are the primary header cards copied onto the exposure.
var keptHeaderKeys = []string{"EXPTIME", "LSST_NUM", "CCD_MANU", "CCDTEMP", "DATE-OBS", "IMAGETYP", "TESTTYPE"}

// DecodeExposure reads a raw exposure: EXPTIME from the primary header and one
// image extension per amplifier. Extensions are matched to amplifiers by their
// AMP<channel> name, falling back to their position.
func DecodeExposure(r io.Reader) (*ccd.Exposure, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, apperrors.NewValidationError("not a FITS file", err)
	}
	defer f.Close()

	hdus := f.HDUs()
	if len(hdus) < 2 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("exposure has %d HDUs, need a primary and at least one amplifier", len(hdus)), nil)
	}

	primary := hdus[0].Header()
	exp := &ccd.Exposure{Header: make(map[string]string)}
	for _, key := range keptHeaderKeys {
		if v, ok := cardString(primary, key); ok {
			exp.Header[key] = v
		}
	}
	expTime, ok := cardFloat(primary, "EXPTIME")
	if !ok {
		return nil, apperrors.NewValidationError("primary header has no EXPTIME", nil)
	}
	exp.ExpTime = expTime
	exp.SensorID = exp.Header["LSST_NUM"]

	for i, hdu := range hdus[1:] {
		img, ok := hdu.(fitsio.Image)
		if !ok || hdu.Type() != fitsio.IMAGE_HDU {
			continue
		}
		amp := i + 1
		if name := strings.ToUpper(strings.TrimSpace(hdu.Name())); strings.HasPrefix(name, "AMP") {
			a, ok := ccd.AmpForChannel(strings.TrimPrefix(name, "AMP"))
			if !ok {
				return nil, apperrors.NewValidationError(fmt.Sprintf("unknown amplifier extension %q", name), nil)
			}
			amp = a
		}
		pixels, err := readImage(img)
		if err != nil {
			return nil, fmt.Errorf("amp %d: %w", amp, err)
		}
		exp.Segments = append(exp.Segments, ccd.Segment{Amp: amp, Pixels: pixels})
	}

	sort.Slice(exp.Segments, func(i, j int) bool { return exp.Segments[i].Amp < exp.Segments[j].Amp })
	return exp, nil
}

// readImage decodes a 2-D image HDU into a rows x cols matrix, applying BSCALE
// and BZERO.
func readImage(img fitsio.Image) (*mat.Dense, error) {
	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 2 || axes[0] <= 0 || axes[1] <= 0 {
		return nil, apperrors.NewDimensionError("amplifier image is not 2-D", nil).
			WithDetails("axes=%v", axes)
	}
	cols, rows := axes[0], axes[1]
	n := rows * cols
	data := make([]float64, n)

	switch hdr.Bitpix() {
	case 8:
		raw := make([]byte, n)
		if err := img.Read(&raw); err != nil {
			return nil, apperrors.NewProcessingError("failed to read image data", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, apperrors.NewProcessingError("failed to read image data", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, apperrors.NewProcessingError("failed to read image data", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, apperrors.NewProcessingError("failed to read image data", err)
		}
		for i, v := range raw {
			data[i] = float64(v)
		}
	case -64:
		if err := img.Read(&data); err != nil {
			return nil, apperrors.NewProcessingError("failed to read image data", err)
		}
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported BITPIX %d", hdr.Bitpix()), nil)
	}

	scale, ok := cardFloat(hdr, "BSCALE")
	if !ok {
		scale = 1
	}
	zero, _ := cardFloat(hdr, "BZERO")
	if scale != 1 || zero != 0 {
		for i, v := range data {
			data[i] = v*scale + zero
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// MaskExtension is one amplifier plane of a mask file.
type MaskExtension struct {
	Name   string
	DetSec string
	Mask   *analyzer.DefectMask
}

// MaskFile is a decoded bright pixel mask file.
type MaskFile struct {
	MaskType   string
	Ethresh    float64
	Colthresh  int
	Plane      string
	DetSize    string
	Extensions []MaskExtension
}

// DecodeMasks reads a file written by EncodeMasks. A pixel is masked when the
// bit of the file's mask plane is set.
func DecodeMasks(r io.Reader) (*MaskFile, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, apperrors.NewValidationError("not a FITS file", err)
	}
	defer f.Close()

	hdus := f.HDUs()
	if len(hdus) == 0 {
		return nil, apperrors.NewValidationError("mask file is empty", nil)
	}
	primary := hdus[0].Header()
	out := &MaskFile{}
	out.MaskType, _ = cardString(primary, "MASKTYPE")
	out.Plane, _ = cardString(primary, "MASKPLN")
	out.Ethresh, _ = cardFloat(primary, "ETHRESH")
	cthresh, _ := cardFloat(primary, "CTHRESH")
	out.Colthresh = int(cthresh)
	if out.MaskType != MaskType {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unexpected MASKTYPE %q", out.MaskType), nil)
	}

	for _, hdu := range hdus[1:] {
		img, ok := hdu.(fitsio.Image)
		if !ok {
			continue
		}
		hdr := img.Header()
		bit := PlaneBit(out.Plane)
		if b, ok := cardFloat(hdr, "MP_"+out.Plane); ok {
			bit = int(b)
		}
		pixels, err := readImage(img)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", hdu.Name(), err)
		}
		rows, cols := pixels.Dims()
		mask := &analyzer.DefectMask{Width: cols, Height: rows, Bits: make([]bool, rows*cols)}
		for y := 0; y < rows; y++ {
			for x := 0; x < cols; x++ {
				mask.Bits[y*cols+x] = int64(pixels.At(y, x))&(1<<uint(bit)) != 0
			}
		}
		ext := MaskExtension{Name: hdu.Name(), Mask: mask}
		ext.DetSec, _ = cardString(hdr, "DETSEC")
		out.DetSize, _ = cardString(hdr, "DETSIZE")
		out.Extensions = append(out.Extensions, ext)
	}
	return out, nil
}
