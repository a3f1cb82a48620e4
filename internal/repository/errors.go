// Package repository defines error values reused across multiple
// repositories.  These sentinels let handlers distinguish failure
// scenarios: ErrForbidden means the caller is not allowed to touch a
// resource owned by someone else, while ErrConflict signals that an
// operation cannot proceed because of existing state (an overlapping
// approved reservation, a room that still has bookings, a request that
// was already processed).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert, update or delete cannot be
// performed because of conflicting state.  Handlers translate this into
// HTTP 409 or 422 depending on the endpoint's contract.
var ErrConflict = errors.New("conflict")
