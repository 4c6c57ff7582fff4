// Package fits reads raw multi-amplifier exposures and writes defect mask files
// in the FITS container format.
package fits

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// MaskPlanes are the standard mask planes and their bit numbers.
var MaskPlanes = []string{"BAD", "SAT", "INTRP", "CR", "EDGE", "DETECTED", "DETECTED_NEGATIVE", "SUSPECT"}

// PlaneBit returns the bit assigned to plane, adding unknown planes after the
// standard ones.
func PlaneBit(plane string) int {
	plane = strings.ToUpper(plane)
	for i, p := range MaskPlanes {
		if p == plane {
			return i
		}
	}
	return len(MaskPlanes)
}

func cardFloat(hdr *fitsio.Header, name string) (float64, bool) {
	card := hdr.Get(name)
	if card == nil {
		return 0, false
	}
	switch v := card.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func cardString(hdr *fitsio.Header, name string) (string, bool) {
	card := hdr.Get(name)
	if card == nil {
		return "", false
	}
	switch v := card.Value.(type) {
	case string:
		return strings.TrimSpace(v), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}
