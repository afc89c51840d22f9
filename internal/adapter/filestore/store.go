// Package filestore provides a file-backed state store for single-node
// deployments without PostgreSQL. Each session and pattern lives in its own
// JSON file; writes go through a temp file and rename so a crash never
// leaves a torn record.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/Sentinel/internal/domain"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/domain/session"
	"github.com/Strob0t/Sentinel/internal/port/statestore"
)

// Store implements the statestore ports on the local filesystem.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-record locks, keyed by relative path
}

// New creates the backing directories and returns a Store rooted at dir.
func New(dir string) (*Store, error) {
	for _, sub := range []string{"sessions", "patterns", "bypasses"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// lock returns the mutex guarding one record file, creating it on first use.
func (s *Store) lock(rel string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[rel]
	if !ok {
		l = &sync.Mutex{}
		s.locks[rel] = l
	}
	return l
}

// safeName flattens a record ID into a filename. IDs come from callers and
// must never escape the state directory.
func safeName(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(id) + ".json"
}

func (s *Store) readJSON(rel string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, rel)) //nolint:gosec // G304: rel is derived via safeName
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("read %s: %w", rel, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", rel, domain.ErrStateCorrupt)
	}
	return nil
}

// writeJSON persists v atomically: write to a temp file in the same
// directory, fsync, then rename over the target.
func (s *Store) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", rel, err)
	}

	path := filepath.Join(s.dir, rel)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", rel, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup on error paths

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}

// --- Sessions ---

func (s *Store) LoadSession(_ context.Context, id string) (*session.Session, error) {
	rel := filepath.Join("sessions", safeName(id))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	var sess session.Session
	if err := s.readJSON(rel, &sess); err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if sess.Reads == nil {
		sess.Reads = make(map[string]int)
	}
	return &sess, nil
}

func (s *Store) SaveSession(_ context.Context, sess *session.Session) error {
	rel := filepath.Join("sessions", safeName(sess.ID))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	if err := s.writeJSON(rel, sess); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// --- Patterns ---

func (s *Store) LoadPattern(_ context.Context, name string) (*pattern.State, error) {
	rel := filepath.Join("patterns", safeName(name))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	var st pattern.State
	if err := s.readJSON(rel, &st); err != nil {
		return nil, fmt.Errorf("load pattern %s: %w", name, err)
	}
	return &st, nil
}

func (s *Store) ListPatterns(_ context.Context) ([]pattern.State, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "patterns"))
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}

	var states []pattern.State
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rel := filepath.Join("patterns", e.Name())
		l := s.lock(rel)
		l.Lock()
		var st pattern.State
		err := s.readJSON(rel, &st)
		l.Unlock()
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// Update applies fn to the named pattern under the record lock.
func (s *Store) Update(_ context.Context, name string, fn func(*pattern.State) (*pattern.State, error)) (*pattern.State, error) {
	rel := filepath.Join("patterns", safeName(name))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	var cur *pattern.State
	var st pattern.State
	err := s.readJSON(rel, &st)
	switch {
	case err == nil:
		cur = &st
	case errors.Is(err, domain.ErrNotFound):
		cur = nil
	default:
		return nil, err
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	if err := s.writeJSON(rel, next); err != nil {
		return nil, fmt.Errorf("save pattern %s: %w", name, err)
	}
	return next, nil
}

func (s *Store) DeletePattern(_ context.Context, name string) error {
	rel := filepath.Join("patterns", safeName(name))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	err := os.Remove(filepath.Join(s.dir, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete pattern %s: %w", name, domain.ErrNotFound)
	}
	return err
}

// --- Bypass audit ---

// bypassLog is the per-session append-only audit file.
type bypassLog struct {
	Records []statestore.BypassRecord `json:"records"`
}

func (s *Store) RecordBypass(_ context.Context, rec *statestore.BypassRecord) error {
	rel := filepath.Join("bypasses", safeName(rec.SessionID))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	var log bypassLog
	if err := s.readJSON(rel, &log); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("record bypass: %w", err)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	log.Records = append(log.Records, *rec)

	if err := s.writeJSON(rel, &log); err != nil {
		return fmt.Errorf("record bypass: %w", err)
	}
	return nil
}

func (s *Store) ListBypasses(_ context.Context, sessionID string) ([]statestore.BypassRecord, error) {
	rel := filepath.Join("bypasses", safeName(sessionID))
	l := s.lock(rel)
	l.Lock()
	defer l.Unlock()

	var log bypassLog
	if err := s.readJSON(rel, &log); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bypasses: %w", err)
	}
	return log.Records, nil
}
