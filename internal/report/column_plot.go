// Package report renders diagnostic plots of detection results.
package report

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	apperrors "go-defect-inspector/internal/errors"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 4 * vg.Inch
)

var (
	countColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	thresholdColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// ColumnPlot draws the flagged-pixel count of every imaging column of res with
// the column threshold as a dashed line. Bright columns are marked.
func ColumnPlot(res *analyzer.SegmentResult, colthresh int) (*plot.Plot, error) {
	if res == nil || len(res.ColumnCounts) == 0 {
		return nil, apperrors.NewInvalidParameterError("segment result has no column counts", nil)
	}
	channel, err := ccd.ChannelID(res.Amp)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Amp %d (channel %s) - flagged pixels per column", res.Amp, channel)
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Flagged pixels"

	pts := make(plotter.XYs, len(res.ColumnCounts))
	for x, n := range res.ColumnCounts {
		pts[x] = plotter.XY{X: float64(x), Y: float64(n)}
	}
	counts, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	counts.Color = countColor
	counts.Width = vg.Points(1)
	counts.StepStyle = plotter.MidStep
	p.Add(counts)
	p.Legend.Add("count", counts)

	threshold := plotter.NewFunction(func(float64) float64 { return float64(colthresh) })
	threshold.Color = thresholdColor
	threshold.Width = vg.Points(1)
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(threshold)
	p.Legend.Add(fmt.Sprintf("colthresh = %d", colthresh), threshold)

	if len(res.BrightColumns) > 0 {
		marks := make(plotter.XYs, 0, len(res.BrightColumns))
		for _, x := range res.BrightColumns {
			if x >= 0 && x < len(res.ColumnCounts) {
				marks = append(marks, plotter.XY{X: float64(x), Y: float64(res.ColumnCounts[x])})
			}
		}
		if len(marks) > 0 {
			bright, err := plotter.NewScatter(marks)
			if err != nil {
				return nil, err
			}
			bright.GlyphStyle.Color = thresholdColor
			bright.GlyphStyle.Shape = draw.CircleGlyph{}
			bright.GlyphStyle.Radius = vg.Points(3)
			p.Add(bright)
			p.Legend.Add("bright column", bright)
		}
	}

	// Keep the threshold visible when no column reaches it.
	p.Y.Min = 0
	if p.Y.Max < float64(colthresh)+1 {
		p.Y.Max = float64(colthresh) + 1
	}
	p.X.Min = 0
	p.X.Max = float64(len(res.ColumnCounts) - 1)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteColumnPlot renders the column plot of res as PNG to w.
func WriteColumnPlot(w io.Writer, res *analyzer.SegmentResult, colthresh int) error {
	p, err := ColumnPlot(res, colthresh)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// PlotFileName is the file name of the column plot of amp.
func PlotFileName(amp int) (string, error) {
	channel, err := ccd.ChannelID(amp)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("amp%s_column_counts.png", channel), nil
}

// SaveColumnPlots writes one PNG per result into dir and returns the paths written.
func SaveColumnPlots(dir string, results []*analyzer.SegmentResult, colthresh int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot directory: %w", err)
	}

	paths := make([]string, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		name, err := PlotFileName(res.Amp)
		if err != nil {
			return paths, err
		}
		p, err := ColumnPlot(res, colthresh)
		if err != nil {
			return paths, fmt.Errorf("amp %d: %w", res.Amp, err)
		}
		path := filepath.Join(dir, name)
		if err := p.Save(plotWidth, plotHeight, path); err != nil {
			return paths, fmt.Errorf("amp %d: %w", res.Amp, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
