package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/beatlab/internal/music"
)

// ProjectSummary is a project row without its document.
type ProjectSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Revision  string `json:"revision"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ProjectRecord is a stored project with its row metadata.
type ProjectRecord struct {
	ProjectSummary
	Project music.Project `json:"project"`
}

// SaveProject inserts p or replaces the owner's existing row with the same id.
// The document is stored canonically, without owner and timestamps; those
// live on the row and created_at is preserved across updates.
//
// Returns ErrNotFound if the id exists under a different owner.
func (s *Store) SaveProject(ctx context.Context, owner string, p music.Project) (ProjectRecord, error) {
	if owner == "" {
		return ProjectRecord{}, fmt.Errorf("save project: empty owner")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("save project: begin: %w", err)
	}
	defer tx.Rollback()

	var existingOwner, createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT owner, created_at FROM projects WHERE id = ?`, p.ID,
	).Scan(&existingOwner, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt = ""
	case err != nil:
		return ProjectRecord{}, fmt.Errorf("save project: %w", err)
	case existingOwner != owner:
		return ProjectRecord{}, fmt.Errorf("save project %s: %w", p.ID, ErrNotFound)
	}

	now := s.now().UTC()
	if createdAt == "" {
		createdAt = formatTime(now)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("save project: %w", err)
	}

	p.Owner = owner
	p.CreatedAt = created
	p.UpdatedAt = now

	doc, err := music.Canonical(p)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("save project: %w", err)
	}
	rev, err := music.Revision(p)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("save project: %w", err)
	}

	updatedAt := formatTime(now)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, owner, title, json, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			json = excluded.json,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, p.ID, owner, p.Title, string(doc), rev, createdAt, updatedAt)
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("save project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ProjectRecord{}, fmt.Errorf("save project: commit: %w", err)
	}

	return ProjectRecord{
		ProjectSummary: ProjectSummary{
			ID:        p.ID,
			Title:     p.Title,
			Revision:  rev,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		Project: p,
	}, nil
}

// GetProject returns the owner's project.
func (s *Store) GetProject(ctx context.Context, owner, id string) (ProjectRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, revision, created_at, updated_at, json
		FROM projects
		WHERE owner = ? AND id = ?
	`, owner, id)
	rec, err := scanProject(row, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ProjectRecord{}, fmt.Errorf("get project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ProjectRecord{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return rec, nil
}

// ListProjects returns the owner's projects, most recently updated first.
// Returns an empty slice (not nil) if the owner has none.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, revision, created_at, updated_at
		FROM projects
		WHERE owner = ?
		ORDER BY updated_at DESC, id COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []ProjectSummary{}
	for rows.Next() {
		var ps ProjectSummary
		if err := rows.Scan(&ps.ID, &ps.Title, &ps.Revision, &ps.CreatedAt, &ps.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// DeleteProject removes the owner's project and, by cascade, its shares.
func (s *Store) DeleteProject(ctx context.Context, owner, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE owner = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return expectOne(res, "delete project "+id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner, owner string) (ProjectRecord, error) {
	var rec ProjectRecord
	var doc string
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt, &doc); err != nil {
		return ProjectRecord{}, err
	}
	if err := json.Unmarshal([]byte(doc), &rec.Project); err != nil {
		return ProjectRecord{}, fmt.Errorf("decode project json: %w", err)
	}
	created, err := parseTime(rec.CreatedAt)
	if err != nil {
		return ProjectRecord{}, err
	}
	updated, err := parseTime(rec.UpdatedAt)
	if err != nil {
		return ProjectRecord{}, err
	}
	rec.Project.Owner = owner
	rec.Project.CreatedAt = created
	rec.Project.UpdatedAt = updated
	return rec, nil
}

// expectOne maps a zero-row mutation to ErrNotFound.
func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
