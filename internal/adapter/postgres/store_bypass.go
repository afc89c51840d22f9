package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/Sentinel/internal/port/statestore"
)

// RecordBypass inserts one audited override use.
func (s *Store) RecordBypass(ctx context.Context, rec *statestore.BypassRecord) error {
	const q = `
		INSERT INTO bypass_audit (session_id, pattern, kind, target, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.pool.QueryRow(ctx, q,
		rec.SessionID, rec.Pattern, rec.Kind, rec.Target, rec.Reason,
	).Scan(&rec.ID)
}

// ListBypasses returns all bypass records for a session, oldest first.
func (s *Store) ListBypasses(ctx context.Context, sessionID string) ([]statestore.BypassRecord, error) {
	const q = `
		SELECT id, session_id, pattern, kind, target, reason
		FROM bypass_audit
		WHERE session_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list bypasses: %w", err)
	}
	defer rows.Close()

	var result []statestore.BypassRecord
	for rows.Next() {
		var rec statestore.BypassRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Pattern, &rec.Kind, &rec.Target, &rec.Reason); err != nil {
			return nil, fmt.Errorf("scan bypass record: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
