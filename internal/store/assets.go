package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AssetKind classifies uploaded objects.
type AssetKind string

const (
	AssetAudio  AssetKind = "audio"
	AssetSample AssetKind = "sample"
	AssetImage  AssetKind = "image"
)

// Asset is an uploaded object's metadata row. Path is the object key in the
// blob bucket.
type Asset struct {
	ID        string    `json:"id"`
	Kind      AssetKind `json:"kind"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	MIME      string    `json:"mime"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

// CreateAsset inserts an asset row for owner. CreatedAt and UpdatedAt are
// filled in from the store clock.
func (s *Store) CreateAsset(ctx context.Context, owner string, a Asset) (Asset, error) {
	now := s.stamp()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, owner, kind, path, size, mime, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, owner, string(a.Kind), a.Path, a.Size, a.MIME, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Asset{}, fmt.Errorf("create asset: %w", err)
	}
	return a, nil
}

// GetAsset returns the owner's asset.
func (s *Store) GetAsset(ctx context.Context, owner, id string) (Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, path, size, mime, created_at, updated_at
		FROM assets
		WHERE owner = ? AND id = ?
	`, owner, id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, fmt.Errorf("get asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Asset{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return a, nil
}

// ListAssets returns the owner's assets, newest first.
// Returns an empty slice (not nil) if the owner has none.
func (s *Store) ListAssets(ctx context.Context, owner string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, path, size, mime, created_at, updated_at
		FROM assets
		WHERE owner = ?
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	out := []Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

// DeleteAsset removes the owner's asset row and, by cascade, recordings
// made from it. The blob object is the caller's concern.
func (s *Store) DeleteAsset(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return expectOne(res, "delete asset "+id)
}

func scanAsset(row rowScanner) (Asset, error) {
	var a Asset
	var kind string
	if err := row.Scan(&a.ID, &kind, &a.Path, &a.Size, &a.MIME, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Asset{}, err
	}
	a.Kind = AssetKind(kind)
	return a, nil
}
