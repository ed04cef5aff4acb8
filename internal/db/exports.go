package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/resume-onepage/internal/types"
)

// DefaultHistoryLimit bounds ListExports when the caller passes no limit
const DefaultHistoryLimit = 20

// NewExportRecord summarises one finished resolution for the audit table
func NewExportRecord(loadoutID, templateID string, st types.CompressionState, artifactBytes int, elapsed time.Duration) *ExportRecord {
	return &ExportRecord{
		LoadoutID:       loadoutID,
		TemplateID:      templateID,
		CanFit:          st.CanFit,
		FontScale:       st.FontScale,
		LineHeightScale: st.LineHeightScale,
		Iterations:      st.Iterations,
		Levers:          st.LeversApplied,
		Warning:         st.Warning,
		ArtifactBytes:   artifactBytes,
		Duration:        elapsed,
	}
}

// RecordExport inserts an export run and fills in its id and creation time
func (db *DB) RecordExport(ctx context.Context, rec *ExportRecord) error {
	levers := rec.Levers
	if levers == nil {
		levers = []types.Lever{}
	}
	leversJSON, err := json.Marshal(levers)
	if err != nil {
		return fmt.Errorf("failed to marshal levers: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO export_runs (loadout_id, template_id, can_fit, font_scale, line_height_scale,
		                          iterations, levers, warning, artifact_bytes, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		rec.LoadoutID, rec.TemplateID, rec.CanFit, rec.FontScale, rec.LineHeightScale,
		rec.Iterations, leversJSON, rec.Warning, rec.ArtifactBytes, rec.Duration.Milliseconds(),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}
	return nil
}

// ListExports returns the most recent export runs of a loadout, newest first
func (db *DB) ListExports(ctx context.Context, loadoutID string, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, loadout_id, template_id, can_fit, font_scale, line_height_scale,
		        iterations, levers, warning, artifact_bytes, duration_ms, created_at
		 FROM export_runs
		 WHERE loadout_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		loadoutID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	defer rows.Close()

	var records []ExportRecord
	for rows.Next() {
		var rec ExportRecord
		var leversJSON []byte
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.LoadoutID, &rec.TemplateID, &rec.CanFit,
			&rec.FontScale, &rec.LineHeightScale, &rec.Iterations, &leversJSON,
			&rec.Warning, &rec.ArtifactBytes, &durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		if leversJSON != nil {
			_ = json.Unmarshal(leversJSON, &rec.Levers)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating export runs: %w", err)
	}
	return records, nil
}
