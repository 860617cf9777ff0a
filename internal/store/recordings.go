package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Recording is the audio metadata of an uploaded asset.
type Recording struct {
	ID         string `json:"id"`
	AssetID    string `json:"assetId"`
	ProjectID  string `json:"projectId,omitempty"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	DurationMS int64  `json:"durationMs"`
	CreatedAt  string `json:"createdAt"`
}

// CreateRecording inserts a recording row for owner. The asset must exist.
func (s *Store) CreateRecording(ctx context.Context, owner string, r Recording) (Recording, error) {
	project := sql.NullString{String: r.ProjectID, Valid: r.ProjectID != ""}
	r.CreatedAt = s.stamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, owner, asset_id, project_id, sample_rate, channels, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, owner, r.AssetID, project, r.SampleRate, r.Channels, r.DurationMS, r.CreatedAt)
	if err != nil {
		return Recording{}, fmt.Errorf("create recording: %w", err)
	}
	return r, nil
}

// ListRecordings returns the owner's recordings, newest first.
func (s *Store) ListRecordings(ctx context.Context, owner string) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, project_id, sample_rate, channels, duration_ms, created_at
		FROM recordings
		WHERE owner = ?
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	out := []Recording{}
	for rows.Next() {
		var r Recording
		var project sql.NullString
		if err := rows.Scan(&r.ID, &r.AssetID, &project, &r.SampleRate, &r.Channels, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		r.ProjectID = project.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return out, nil
}
