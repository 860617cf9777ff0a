package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Share is a public link to a project.
type Share struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Slug      string     `json:"slug"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt string     `json:"createdAt"`
}

// CreateShare links slug to the owner's project. A nil expiresAt never
// expires.
//
// Returns ErrNotFound if the project does not belong to owner.
func (s *Store) CreateShare(ctx context.Context, owner string, sh Share) (Share, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM projects WHERE owner = ? AND id = ?`, owner, sh.ProjectID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Share{}, fmt.Errorf("create share: project %s: %w", sh.ProjectID, ErrNotFound)
	}
	if err != nil {
		return Share{}, fmt.Errorf("create share: %w", err)
	}

	var expires sql.NullString
	if sh.ExpiresAt != nil {
		expires = sql.NullString{String: formatTime(*sh.ExpiresAt), Valid: true}
	}
	sh.CreatedAt = s.stamp()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shares (id, project_id, owner, slug, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sh.ID, sh.ProjectID, owner, sh.Slug, expires, sh.CreatedAt)
	if err != nil {
		return Share{}, fmt.Errorf("create share: %w", err)
	}
	return sh, nil
}

// GetShare resolves a public slug to its project. It is the only lookup that
// is not scoped by owner.
//
// Returns ErrNotFound for an unknown slug and ErrExpired once the share's
// expiry has passed.
func (s *Store) GetShare(ctx context.Context, slug string) (Share, ProjectRecord, error) {
	var sh Share
	var owner string
	var expires sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, owner, slug, expires_at, created_at
		FROM shares
		WHERE slug = ?
	`, slug).Scan(&sh.ID, &sh.ProjectID, &owner, &sh.Slug, &expires, &sh.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Share{}, ProjectRecord{}, fmt.Errorf("get share %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return Share{}, ProjectRecord{}, fmt.Errorf("get share %s: %w", slug, err)
	}

	if expires.Valid {
		t, err := parseTime(expires.String)
		if err != nil {
			return Share{}, ProjectRecord{}, fmt.Errorf("get share %s: %w", slug, err)
		}
		sh.ExpiresAt = &t
		if !s.now().Before(t) {
			return Share{}, ProjectRecord{}, fmt.Errorf("get share %s: %w", slug, ErrExpired)
		}
	}

	rec, err := s.GetProject(ctx, owner, sh.ProjectID)
	if err != nil {
		return Share{}, ProjectRecord{}, fmt.Errorf("get share %s: %w", slug, err)
	}
	// Shared documents do not reveal the owner.
	rec.Project.Owner = ""
	return sh, rec, nil
}
