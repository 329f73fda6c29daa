// Package repository implements MySQL persistence for seats,
// reservations and holders. Engine-facing failure modes (seat not
// found, seat unavailable, transaction conflict) use the sentinel
// errors defined in the engine package; this file holds the sentinels
// that only the repository layer produces.
package repository

import "errors"

// ErrHolderNotFound is returned when a holder lookup yields no rows.
var ErrHolderNotFound = errors.New("holder not found")

// ErrEmailTaken is returned when registration collides with an
// existing holder's email. Handlers should translate this into an
// HTTP 409 response.
var ErrEmailTaken = errors.New("email already registered")
