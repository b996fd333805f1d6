// Package repository implements the PostgreSQL access layer. Sentinel
// errors let the service layer distinguish failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist or is
// soft-deactivated.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update touched no rows
// because another writer got there first.
var ErrConflict = errors.New("conflict")
