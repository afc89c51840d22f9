package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// Store implements the statestore ports using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Sessions ---

func (s *Store) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, confidence, risk, turn, evidence, reads, token_estimate, created_at, updated_at
		 FROM sessions WHERE id = $1`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load session %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	evidenceJSON, err := json.Marshal(sess.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	readsJSON, err := json.Marshal(sess.Reads)
	if err != nil {
		return fmt.Errorf("marshal reads: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, confidence, risk, turn, evidence, reads, token_estimate, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (id) DO UPDATE SET
		   confidence = EXCLUDED.confidence,
		   risk = EXCLUDED.risk,
		   turn = EXCLUDED.turn,
		   evidence = EXCLUDED.evidence,
		   reads = EXCLUDED.reads,
		   token_estimate = EXCLUDED.token_estimate,
		   updated_at = now()`,
		sess.ID, sess.Confidence, sess.Risk, sess.Turn, evidenceJSON, readsJSON, sess.TokenEstimate, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

func scanSession(row scannable) (*session.Session, error) {
	var sess session.Session
	var evidenceJSON, readsJSON []byte
	err := row.Scan(&sess.ID, &sess.Confidence, &sess.Risk, &sess.Turn,
		&evidenceJSON, &readsJSON, &sess.TokenEstimate, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if evidenceJSON != nil {
		if err := json.Unmarshal(evidenceJSON, &sess.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", domain.ErrStateCorrupt)
		}
	}
	if readsJSON != nil {
		if err := json.Unmarshal(readsJSON, &sess.Reads); err != nil {
			return nil, fmt.Errorf("unmarshal reads: %w", domain.ErrStateCorrupt)
		}
	}
	if sess.Reads == nil {
		sess.Reads = make(map[string]int)
	}
	return &sess, nil
}
