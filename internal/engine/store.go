package engine

import (
	"context"
	"time"

	"seatwatch/internal/model"
)

// SeatTx groups the operations available inside one per-seat unit of
// work. The implementation holds an exclusive lock on the seat for the
// lifetime of the transaction; either every operation performed through
// it commits, or none do.
type SeatTx interface {
	// Seat returns the locked seat row as read at transaction start,
	// updated to reflect writes made through SetStatus.
	Seat() model.Seat
	// SetStatus writes the seat's status and occupied_since marker.
	SetStatus(ctx context.Context, status model.SeatStatus, occupiedSince *time.Time) error
	// ActiveReservation returns the seat's reservation with an end
	// time in the future, or nil when the seat has none.
	ActiveReservation(ctx context.Context) (*model.Reservation, error)
	// Reservation re-reads a reservation by ID under the transaction.
	Reservation(ctx context.Context, id uint64) (*model.Reservation, error)
	// CreateReservation inserts a reservation for the locked seat.
	CreateReservation(ctx context.Context, res *model.Reservation) error
	// DeleteReservation removes a reservation by ID.
	DeleteReservation(ctx context.Context, id uint64) error
}

// Store is the persistence contract the engine reconciles against. The
// store is the single source of truth; the engine never caches mutable
// status beyond one operation.
type Store interface {
	// InSeatTx runs fn inside a transaction that exclusively locks the
	// given seat. Returns ErrSeatNotFound for unknown seats and
	// ErrTxConflict when the store aborts the unit of work.
	InSeatTx(ctx context.Context, seatID uint64, fn func(SeatTx) error) error
	// Seats returns every seat with its geometry and current status.
	Seats(ctx context.Context) ([]model.Seat, error)
	// ActiveReservationByHolder returns the holder's active
	// reservation, or ErrReservationNotFound.
	ActiveReservationByHolder(ctx context.Context, holderID uint64) (*model.Reservation, error)
	// ReservationByID returns a reservation by primary key.
	ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error)
	// ExpiredReservations lists reservations with end_time <= now.
	ExpiredReservations(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// Notifier receives committed status transitions. Implementations must
// not block: delivery is fire-and-forget and happens after the
// transition's transaction has committed.
type Notifier interface {
	Publish(t model.StatusTransition)
}
