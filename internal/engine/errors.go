// Package engine implements the seat state reconciliation core: the
// per-seat state machine merging reservation and detection inputs, the
// reservation operations, and the expiry sweep. All status writes go
// through one per-seat transaction so the reservation-over-detection
// precedence rule is enforced under the row lock rather than by a
// separate guard read.
package engine

import "errors"

// ErrSeatNotFound is returned when an operation targets an unknown
// seat. Handlers should translate this into an HTTP 404 response.
var ErrSeatNotFound = errors.New("seat not found")

// ErrSeatUnavailable is returned when a reservation cannot be created
// because the seat already carries an active reservation. It is a
// user-facing conflict and is never retried automatically.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrReservationNotFound is returned when a reservation lookup yields
// no rows, including the case where the sweep already retired it.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrForbidden is returned when the caller attempts an operation on a
// reservation they do not hold.
var ErrForbidden = errors.New("forbidden")

// ErrTxConflict is returned when the store aborts a unit of work due
// to a deadlock or lock wait timeout. The expiry sweep retries these;
// interactive requests surface them immediately to avoid acting on
// stale reads.
var ErrTxConflict = errors.New("transaction conflict")
