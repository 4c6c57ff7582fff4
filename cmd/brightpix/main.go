// Command brightpix finds bright pixels and bright columns in every amplifier
// of a dark exposure and writes the defect mask file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go-defect-inspector/internal/analyzer"
	"go-defect-inspector/internal/ccd"
	"go-defect-inspector/internal/factory"
	"go-defect-inspector/internal/fits"
	"go-defect-inspector/internal/logger"
	"go-defect-inspector/internal/report"
	"go-defect-inspector/internal/service"
	"go-defect-inspector/internal/storage"
	"go-defect-inspector/internal/strategy"

	"github.com/sirupsen/logrus"
)

type cliOptions struct {
	in        string
	out       string
	plots     string
	gain      float64
	gains     map[int]float64
	ethresh   float64
	colthresh int
	maskPlane string
	bias      string
	workers   int
	timeout   time.Duration
	logLevel  string
	geometry  ccd.Geometry
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.SetOutput(os.Stderr)
	logger.SetLevel(opts.logLevel)
	if err := run(ctx, opts, os.Stdout); err != nil {
		logger.WithError(err).Error("brightpix failed")
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	defaults := analyzer.DefaultOptions()
	opts := cliOptions{geometry: ccd.DefaultGeometry()}

	fs := flag.NewFlagSet("brightpix", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.in, "in", "", "dark exposure: local path, file://, http(s):// or blob URL")
	fs.StringVar(&opts.out, "out", "bright_pix_mask.fits", "mask file to write")
	fs.StringVar(&opts.plots, "plots", "", "directory for per-amp column count plots (optional)")
	fs.Float64Var(&opts.gain, "gain", 0, "gain in e-/DN for every amplifier")
	gains := fs.String("gains", "", "per-amp gains, e.g. 1=5.1,2=4.9 (overrides -gain)")
	fs.Float64Var(&opts.ethresh, "ethresh", defaults.Ethresh, "bright pixel threshold in e-/s")
	fs.IntVar(&opts.colthresh, "colthresh", defaults.Colthresh, "flagged pixels a column must exceed to be bright")
	fs.StringVar(&opts.maskPlane, "mask-plane", defaults.MaskPlane, "mask plane name")
	fs.StringVar(&opts.bias, "bias", strategy.Mean, "overscan bias estimate: "+strings.Join(strategy.Names(), "|"))
	fs.IntVar(&opts.workers, "workers", 0, "amplifiers processed at once (0 = CPU count)")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall time limit")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.in == "" {
		return opts, errors.New("-in is required")
	}
	parsed, err := parseGains(*gains)
	if err != nil {
		return opts, err
	}
	opts.gains = parsed
	if opts.gain <= 0 && len(opts.gains) == 0 {
		return opts, errors.New("-gain or -gains is required")
	}
	return opts, nil
}

// parseGains reads amp=gain pairs separated by commas
func parseGains(s string) (map[int]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[int]float64)
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid gain '%s': want amp=gain", part)
		}
		amp, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid amp '%s': %w", k, err)
		}
		gain, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid gain '%s': %w", v, err)
		}
		out[amp] = gain
	}
	return out, nil
}

func run(ctx context.Context, opts cliOptions, stdout io.Writer) error {
	start := time.Now()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	detection := analyzer.DefaultOptions().
		WithThresholds(opts.ethresh, opts.colthresh).
		WithMaskPlane(opts.maskPlane).
		WithGain(opts.gain)
	if len(opts.gains) > 0 {
		detection = detection.WithAmpGains(opts.gains)
	}
	if err := detection.Validate(); err != nil {
		return err
	}
	bias, err := strategy.NewBiasStrategy(opts.bias)
	if err != nil {
		return err
	}

	components := factory.NewComponentFactory(factory.StorageOptions{
		FetchTimeout:      opts.timeout,
		MaxExposureSize:   4 * storage.DefaultMaxExposureSize,
		AllowAnyLocalPath: true,
	})
	exp, err := factory.NewRoutingFetcher(components.StorageFactory).FetchExposure(ctx, opts.in)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.in, err)
	}

	detector, err := components.DetectorFactory.CreateDetector(factory.BrightPixelDetector, opts.workers)
	if err != nil {
		return err
	}
	defer detector.Close()

	found, err := service.DetectExposure(ctx, exp, opts.geometry, detector, bias, detection)
	if err != nil {
		return err
	}

	if err := writeMask(opts.out, found.Results, detection, opts.geometry); err != nil {
		return err
	}
	if opts.plots != "" {
		paths, err := report.SaveColumnPlots(opts.plots, found.Results, opts.colthresh)
		if err != nil {
			return err
		}
		logger.WithField("plots", len(paths)).WithField("dir", opts.plots).Info("Wrote column plots")
	}

	for _, res := range found.Results {
		channel, err := ccd.ChannelID(res.Amp)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s %d %v\n", channel, len(res.BrightPixels), res.BrightColumns)
	}

	logger.WithFields(logrus.Fields{
		"sensor_id":   exp.SensorID,
		"mask":        opts.out,
		"n_pixels":    found.TotalBrightPixels(),
		"n_columns":   found.TotalBrightColumns(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Bright pixel search finished")
	return nil
}

func writeMask(path string, results []*analyzer.SegmentResult, opts analyzer.DetectionOptions, geom ccd.Geometry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mask file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fits.EncodeMasks(f, results, opts, geom)
}
