// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates a request failed domain validation.
var ErrValidation = errors.New("validation failed")

// ErrStateCorrupt indicates a persisted record could not be decoded.
// Callers fall back to conservative defaults instead of propagating it.
var ErrStateCorrupt = errors.New("persisted state is corrupt")

// ErrStoreUnavailable indicates the state store cannot be reached for writes.
// Decisions proceed on in-memory state and are flagged as non-durable.
var ErrStoreUnavailable = errors.New("state store unavailable")
