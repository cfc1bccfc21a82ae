// Package repository defines error types that are reused across the user
// stores. These sentinel values allow higher layers such as services and
// handlers to distinguish failure scenarios without knowing which database
// backs the store.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no record. Handlers
// translate this into an HTTP 404 response unless it is part of a login,
// where it becomes an invalid-credentials response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness
// constraint (username or email already taken). Stores translate their
// driver-specific duplicate key errors into this value.
var ErrConflict = errors.New("conflict")
