package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"seatwatch/internal/engine"
	"seatwatch/internal/model"
)

// Store is the MySQL-backed implementation of the engine's storage
// contract. Every mutation of a seat's status or its reservation runs
// inside InSeatTx, which holds an exclusive lock on the seat row for
// the duration of the unit of work. Two operations on different seats
// proceed independently; two on the same seat serialize on the lock.
type Store struct {
	db           *sql.DB
	seats        *SeatRepo
	reservations *ReservationRepo
}

// NewStore builds a Store over the shared DB handle.
func NewStore(db *sql.DB, seats *SeatRepo, reservations *ReservationRepo) *Store {
	return &Store{db: db, seats: seats, reservations: reservations}
}

// InSeatTx begins a transaction, locks the seat row, runs fn and
// commits. When fn returns an error the transaction is rolled back and
// nothing is applied, so a failure mid-unit can never leave a seat
// half-updated. Returns engine.ErrSeatNotFound when the seat does not exist.
func (s *Store) InSeatTx(ctx context.Context, seatID uint64, fn func(engine.SeatTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	seat, err := lockByIDTx(ctx, tx, seatID)
	if err != nil {
		return err
	}
	if err := fn(&seatTx{tx: tx, seat: seat}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapSQLError(err)
	}
	committed = true
	return nil
}

// Seats returns every seat with its geometry and current status.
func (s *Store) Seats(ctx context.Context) ([]model.Seat, error) {
	return s.seats.GetAll(ctx)
}

// ActiveReservationByHolder returns the holder's active reservation.
func (s *Store) ActiveReservationByHolder(ctx context.Context, holderID uint64) (*model.Reservation, error) {
	return s.reservations.ActiveByHolder(ctx, holderID)
}

// ReservationByID returns a reservation by primary key.
func (s *Store) ReservationByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// ExpiredReservations lists reservations whose end time has passed.
func (s *Store) ExpiredReservations(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return s.reservations.ListExpired(ctx, now)
}

// seatTx adapts a locked seat row and its transaction to the
// engine.SeatTx interface.
type seatTx struct {
	tx   *sql.Tx
	seat *model.Seat
}

func (t *seatTx) Seat() model.Seat { return *t.seat }

func (t *seatTx) SetStatus(ctx context.Context, status model.SeatStatus, occupiedSince *time.Time) error {
	if err := updateStatusTx(ctx, t.tx, t.seat.ID, status, occupiedSince); err != nil {
		return err
	}
	t.seat.Status = status
	t.seat.OccupiedSince = occupiedSince
	return nil
}

func (t *seatTx) ActiveReservation(ctx context.Context) (*model.Reservation, error) {
	return activeBySeatTx(ctx, t.tx, t.seat.ID)
}

func (t *seatTx) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getByIDTx(ctx, t.tx, id)
}

func (t *seatTx) CreateReservation(ctx context.Context, res *model.Reservation) error {
	res.SeatID = t.seat.ID
	return createTx(ctx, t.tx, res)
}

func (t *seatTx) DeleteReservation(ctx context.Context, id uint64) error {
	return deleteTx(ctx, t.tx, id)
}

// mapSQLError translates driver-level failures into the package's
// sentinel errors. Deadlocks (1213) and lock wait timeouts (1205) are
// serialization conflicts that idempotent callers may retry.
func mapSQLError(err error) error {
	if err == nil {
		return nil
	}
	var my *mysql.MySQLError
	if errors.As(err, &my) {
		switch my.Number {
		case 1213, 1205:
			return engine.ErrTxConflict
		}
	}
	return err
}
