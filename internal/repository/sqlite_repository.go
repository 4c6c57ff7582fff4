package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-defect-inspector/pkg/models"
	"go-defect-inspector/pkg/validation"

	_ "modernc.org/sqlite"
)

// SQLiteDefectRepository implements DefectRepository on a SQLite database
type SQLiteDefectRepository struct {
	db *sql.DB
}

// NewSQLiteDefectRepository opens (creating if needed) the catalog at path and
// applies pending migrations
func NewSQLiteDefectRepository(path string) (*SQLiteDefectRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %w", ErrRepositoryUnavailable, pragma, err)
		}
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
	return &SQLiteDefectRepository{db: db}, nil
}

// SchemaVersion reports the applied migration version
func (r *SQLiteDefectRepository) SchemaVersion() (uint, bool, error) {
	return schemaVersion(r.db)
}

// SaveAnalysis stores analysis, its segments and bright pixels in one transaction
func (r *SQLiteDefectRepository) SaveAnalysis(ctx context.Context, a *models.DefectAnalysis, mask []byte) error {
	issues, err := json.Marshal(nonNilIssues(a.Issues))
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analyses (
			id, sensor_id, exposure_url, created_at, exptime, ethresh, colthresh,
			mask_plane, bias_method, total_bright_pixels, total_bright_columns,
			accepted, issues_json, processing_time_sec, mask
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SensorID, a.ExposureURL, a.Timestamp.UTC().UnixNano(), a.ExpTime, a.Ethresh, a.Colthresh,
		a.MaskPlane, a.BiasMethod, a.TotalBrightPixels, a.TotalBrightColumns,
		a.Accepted, string(issues), a.ProcessingTimeSec, mask,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	segStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segments (
			analysis_id, amp, channel, threshold, gain, bias_level, footprints,
			defect_pixels, defect_fraction, processing_time_ms, bright_columns_json, column_counts_json,
			mean_dn, median_dn, stddev_dn
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare segments: %w", err)
	}
	defer segStmt.Close()

	pixStmt, err := tx.PrepareContext(ctx, `INSERT INTO bright_pixels (analysis_id, amp, x, y) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare bright pixels: %w", err)
	}
	defer pixStmt.Close()

	for _, s := range a.Segments {
		columns, err := json.Marshal(nonNilInts(s.BrightColumns))
		if err != nil {
			return fmt.Errorf("encode columns: %w", err)
		}
		counts, err := json.Marshal(nonNilInts(s.ColumnCounts))
		if err != nil {
			return fmt.Errorf("encode column counts: %w", err)
		}
		if _, err := segStmt.ExecContext(ctx,
			a.ID, s.Amp, s.Channel, s.Threshold, s.Gain, s.BiasLevel, s.Footprints,
			s.DefectPixels, s.DefectFraction, s.ProcessingTimeMs, string(columns), string(counts),
			s.Stats.Mean, s.Stats.Median, s.Stats.StdDev,
		); err != nil {
			return fmt.Errorf("insert amp %d: %w", s.Amp, err)
		}
		for _, p := range s.BrightPixels {
			if _, err := pixStmt.ExecContext(ctx, a.ID, s.Amp, p.X, p.Y); err != nil {
				return fmt.Errorf("insert amp %d pixel: %w", s.Amp, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetAnalysis retrieves a stored analysis
func (r *SQLiteDefectRepository) GetAnalysis(ctx context.Context, id string) (*models.DefectAnalysis, error) {
	a := &models.DefectAnalysis{ID: id}
	var created int64
	var issues string
	err := r.db.QueryRowContext(ctx, `
		SELECT sensor_id, exposure_url, created_at, exptime, ethresh, colthresh, mask_plane,
		       bias_method, total_bright_pixels, total_bright_columns, accepted, issues_json,
		       processing_time_sec
		FROM analyses WHERE id = ?`, id,
	).Scan(&a.SensorID, &a.ExposureURL, &created, &a.ExpTime, &a.Ethresh, &a.Colthresh, &a.MaskPlane,
		&a.BiasMethod, &a.TotalBrightPixels, &a.TotalBrightColumns, &a.Accepted, &issues,
		&a.ProcessingTimeSec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	a.Timestamp = time.Unix(0, created).UTC()
	if err := json.Unmarshal([]byte(issues), &a.Issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	if len(a.Issues) == 0 {
		a.Issues = nil
	}

	if a.Segments, err = r.segments(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *SQLiteDefectRepository) segments(ctx context.Context, id string) ([]models.SegmentDefects, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT amp, channel, threshold, gain, bias_level, footprints, defect_pixels,
		       defect_fraction, processing_time_ms, bright_columns_json, column_counts_json,
		       mean_dn, median_dn, stddev_dn
		FROM segments WHERE analysis_id = ? ORDER BY amp`, id)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []models.SegmentDefects
	byAmp := make(map[int]int)
	for rows.Next() {
		var s models.SegmentDefects
		var columns, counts string
		if err := rows.Scan(&s.Amp, &s.Channel, &s.Threshold, &s.Gain, &s.BiasLevel, &s.Footprints,
			&s.DefectPixels, &s.DefectFraction, &s.ProcessingTimeMs, &columns, &counts,
			&s.Stats.Mean, &s.Stats.Median, &s.Stats.StdDev); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &s.BrightColumns); err != nil {
			return nil, fmt.Errorf("decode amp %d columns: %w", s.Amp, err)
		}
		if err := json.Unmarshal([]byte(counts), &s.ColumnCounts); err != nil {
			return nil, fmt.Errorf("decode amp %d column counts: %w", s.Amp, err)
		}
		if len(s.ColumnCounts) == 0 {
			s.ColumnCounts = nil
		}
		s.BrightPixels = []models.Pixel{}
		byAmp[s.Amp] = len(segments)
		segments = append(segments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}

	pix, err := r.db.QueryContext(ctx, `
		SELECT amp, x, y FROM bright_pixels WHERE analysis_id = ? ORDER BY amp, x, y`, id)
	if err != nil {
		return nil, fmt.Errorf("query bright pixels: %w", err)
	}
	defer pix.Close()
	for pix.Next() {
		var amp int
		var p models.Pixel
		if err := pix.Scan(&amp, &p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scan bright pixel: %w", err)
		}
		if i, ok := byAmp[amp]; ok {
			segments[i].BrightPixels = append(segments[i].BrightPixels, p)
		}
	}
	if err := pix.Err(); err != nil {
		return nil, fmt.Errorf("iterate bright pixels: %w", err)
	}
	return segments, nil
}

// GetMask retrieves the mask file of a stored analysis
func (r *SQLiteDefectRepository) GetMask(ctx context.Context, id string) ([]byte, error) {
	var mask []byte
	err := r.db.QueryRowContext(ctx, `SELECT mask FROM analyses WHERE id = ?`, id).Scan(&mask)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query mask: %w", err)
	}
	if len(mask) == 0 {
		return nil, ErrAnalysisNotFound
	}
	return mask, nil
}

// GetAnalysisHistory retrieves the analyses of a sensor, newest first. A
// non-positive limit returns every row.
func (r *SQLiteDefectRepository) GetAnalysisHistory(ctx context.Context, sensorID string, limit int) ([]models.AnalysisSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sensor_id, exposure_url, created_at, total_bright_pixels, total_bright_columns, accepted
		FROM analyses WHERE sensor_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`, sensorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []models.AnalysisSummary{}
	for rows.Next() {
		var s models.AnalysisSummary
		var created int64
		if err := rows.Scan(&s.ID, &s.SensorID, &s.ExposureURL, &created,
			&s.TotalBrightPixels, &s.TotalBrightColumns, &s.Accepted); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		s.Timestamp = time.Unix(0, created).UTC()
		history = append(history, s)
	}
	return history, rows.Err()
}

// Close closes the database
func (r *SQLiteDefectRepository) Close() error {
	return r.db.Close()
}

func nonNilIssues(issues []validation.DefectIssue) []validation.DefectIssue {
	if issues == nil {
		return []validation.DefectIssue{}
	}
	return issues
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
