package analyzer

import (
	"fmt"
	"sort"

	apperrors "go-defect-inspector/internal/errors"
)

// ColumnTally maps every column index to the rows flagged in it, in span order.
type ColumnTally [][]int

// Tally aggregates spans by column. Every column in [0, width) is present.
func Tally(spans []Span, width int) (ColumnTally, error) {
	if width <= 0 {
		return nil, apperrors.NewInvalidParameterError(fmt.Sprintf("width must be > 0 (got %d)", width), nil)
	}
	tally := make(ColumnTally, width)
	for _, s := range spans {
		if s.X0 < 0 || s.X1 >= width || s.X0 > s.X1 {
			return nil, apperrors.NewDimensionError("span outside tally columns", nil).
				WithDetails("row=%d x0=%d x1=%d width=%d", s.Row, s.X0, s.X1, width)
		}
		for x := s.X0; x <= s.X1; x++ {
			tally[x] = append(tally[x], s.Row)
		}
	}
	return tally, nil
}

// Counts returns the number of flagged rows in each column.
func (t ColumnTally) Counts() []int {
	counts := make([]int, len(t))
	for x, rows := range t {
		counts[x] = len(rows)
	}
	return counts
}

// Classify splits the flagged pixels of spans into bright columns, those holding
// more than colthresh flagged pixels, and the remaining bright pixels. Reported
// coordinates have (originX, originY) subtracted.
func Classify(spans []Span, width, colthresh, originX, originY int) (Result, error) {
	if width <= 0 {
		return Result{}, apperrors.NewInvalidParameterError(fmt.Sprintf("width must be > 0 (got %d)", width), nil)
	}
	if colthresh < 0 {
		return Result{}, apperrors.NewInvalidParameterError(fmt.Sprintf("colthresh must be >= 0 (got %d)", colthresh), nil)
	}
	tally, err := Tally(spans, width)
	if err != nil {
		return Result{}, err
	}
	return classifyTally(tally, colthresh, originX, originY), nil
}

func classifyTally(tally ColumnTally, colthresh, originX, originY int) Result {
	result := Result{
		BrightColumns: []int{},
		BrightPixels:  []Pixel{},
	}
	for x, rows := range tally {
		if len(rows) > colthresh {
			result.BrightColumns = append(result.BrightColumns, x-originX)
			continue
		}
		for _, y := range rows {
			result.BrightPixels = append(result.BrightPixels, Pixel{X: x - originX, Y: y - originY})
		}
	}

	sort.Ints(result.BrightColumns)
	sort.Slice(result.BrightPixels, func(i, j int) bool {
		a, b := result.BrightPixels[i], result.BrightPixels[j]
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return result
}
