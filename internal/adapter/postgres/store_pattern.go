package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
)

const patternColumns = `name, phase, thresholds, metrics, advisory, first_seen_turn, last_tuned_turn, updated_at`

func (s *Store) LoadPattern(ctx context.Context, name string) (*pattern.State, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE name = $1`, name)

	st, err := scanPattern(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load pattern %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load pattern %s: %w", name, err)
	}
	return st, nil
}

func (s *Store) ListPatterns(ctx context.Context) ([]pattern.State, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+patternColumns+` FROM patterns ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var states []pattern.State
	for rows.Next() {
		st, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *st)
	}
	return states, rows.Err()
}

// Update applies fn to the named pattern under a row lock, so concurrent
// sessions cannot lose metric increments. A missing row passes nil to fn,
// which may create the state by returning a new one.
func (s *Store) Update(ctx context.Context, name string, fn func(*pattern.State) (*pattern.State, error)) (*pattern.State, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE name = $1 FOR UPDATE`, name)

	stubbed := false
	st, err := scanPattern(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lock pattern %s: %w", name, err)
		}
		// FOR UPDATE cannot lock an absent row, so two creators would both
		// see nil and the loser's upsert would clobber the winner's
		// increments. Insert a stub to serialize on; if another transaction
		// wins the insert race, its committed state is picked up here.
		tag, insErr := tx.Exec(ctx,
			`INSERT INTO patterns (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
		if insErr != nil {
			return nil, fmt.Errorf("stub pattern %s: %w", name, insErr)
		}
		if tag.RowsAffected() == 1 {
			stubbed = true
			st = nil
		} else {
			row = tx.QueryRow(ctx,
				`SELECT `+patternColumns+` FROM patterns WHERE name = $1 FOR UPDATE`, name)
			st, err = scanPattern(row)
			if err != nil {
				return nil, fmt.Errorf("lock pattern %s: %w", name, err)
			}
		}
	}

	st, err = fn(st)
	if err != nil {
		return nil, err
	}
	if st == nil {
		if stubbed {
			// fn declined to create the pattern; roll the stub back.
			return nil, nil
		}
		return nil, tx.Commit(ctx)
	}

	thresholdsJSON, err := json.Marshal(st.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("marshal thresholds: %w", err)
	}
	metricsJSON, err := json.Marshal(st.Metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO patterns (name, phase, thresholds, metrics, advisory, first_seen_turn, last_tuned_turn, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (name) DO UPDATE SET
		   phase = EXCLUDED.phase,
		   thresholds = EXCLUDED.thresholds,
		   metrics = EXCLUDED.metrics,
		   advisory = EXCLUDED.advisory,
		   first_seen_turn = EXCLUDED.first_seen_turn,
		   last_tuned_turn = EXCLUDED.last_tuned_turn,
		   updated_at = now()`,
		st.Name, string(st.Phase), thresholdsJSON, metricsJSON, st.Advisory, st.FirstSeenTurn, st.LastTunedTurn)
	if err != nil {
		return nil, fmt.Errorf("upsert pattern %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pattern %s: %w", name, err)
	}
	return st, nil
}

func (s *Store) DeletePattern(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM patterns WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete pattern %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete pattern %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

func scanPattern(row scannable) (*pattern.State, error) {
	var st pattern.State
	var phase string
	var thresholdsJSON, metricsJSON []byte
	err := row.Scan(&st.Name, &phase, &thresholdsJSON, &metricsJSON,
		&st.Advisory, &st.FirstSeenTurn, &st.LastTunedTurn, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	st.Phase = pattern.Phase(phase)
	if thresholdsJSON != nil {
		if err := json.Unmarshal(thresholdsJSON, &st.Thresholds); err != nil {
			return nil, fmt.Errorf("unmarshal thresholds: %w", domain.ErrStateCorrupt)
		}
	}
	if metricsJSON != nil {
		if err := json.Unmarshal(metricsJSON, &st.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", domain.ErrStateCorrupt)
		}
	}
	if st.Thresholds == nil {
		st.Thresholds = make(map[string]float64)
	}
	return &st, nil
}
