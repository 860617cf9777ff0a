package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// AILog records one generation request, the raw model output and the
// repairs applied to it.
type AILog struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Response  string   `json:"response"`
	Repairs   []string `json:"repairs"`
	CreatedAt string   `json:"createdAt"`
}

// WriteAILog appends a generation log for owner.
func (s *Store) WriteAILog(ctx context.Context, owner string, l AILog) (AILog, error) {
	if l.Repairs == nil {
		l.Repairs = []string{}
	}
	repairs, err := json.Marshal(l.Repairs)
	if err != nil {
		return AILog{}, fmt.Errorf("write ai log: %w", err)
	}
	l.CreatedAt = s.stamp()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ai_logs (id, owner, kind, model, prompt, response, repairs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, owner, l.Kind, l.Model, l.Prompt, l.Response, string(repairs), l.CreatedAt)
	if err != nil {
		return AILog{}, fmt.Errorf("write ai log: %w", err)
	}
	return l, nil
}

// ListAILogs returns the owner's generation logs, newest first.
func (s *Store) ListAILogs(ctx context.Context, owner string) ([]AILog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, model, prompt, response, repairs, created_at
		FROM ai_logs
		WHERE owner = ?
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list ai logs: %w", err)
	}
	defer rows.Close()

	out := []AILog{}
	for rows.Next() {
		var l AILog
		var repairs string
		if err := rows.Scan(&l.ID, &l.Kind, &l.Model, &l.Prompt, &l.Response, &repairs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ai log: %w", err)
		}
		if err := json.Unmarshal([]byte(repairs), &l.Repairs); err != nil {
			return nil, fmt.Errorf("decode repairs: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai logs: %w", err)
	}
	return out, nil
}
