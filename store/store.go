// Package store provides the durable key-value implementations the session
// manager persists its state into: an in-memory map for tests and ephemeral
// processes, and a bun-backed sqlite table for anything that must survive a
// restart.
package store

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrKeyNotFound is returned by Get for absent keys.
var ErrKeyNotFound = goerrors.New("key not found", goerrors.CategoryNotFound).
	WithTextCode("KEY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)
