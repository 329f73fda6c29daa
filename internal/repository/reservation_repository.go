package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"seatwatch/internal/engine"
	"seatwatch/internal/model"
)

// ReservationRepo provides CRUD operations for reservations.  A
// reservation ties a holder to a seat for a fixed window; at most one
// reservation per seat may have an end time in the future.  All
// timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `id, seat_id, holder_id, start_time, end_time, created_at`

// ActiveByHolder returns the holder's reservation whose end time is
// still in the future, or engine.ErrReservationNotFound when none exists.
func (r *ReservationRepo) ActiveByHolder(ctx context.Context, holderID uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + `
	           FROM reservations
	           WHERE holder_id = ? AND end_time > UTC_TIMESTAMP()
	           ORDER BY end_time DESC
	           LIMIT 1`
	return scanReservationRow(r.db.QueryRowContext(ctx, q, holderID))
}

// GetByID returns a reservation by primary key, or engine.ErrReservationNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	return scanReservationRow(r.db.QueryRowContext(ctx, q, id))
}

// ListExpired returns every reservation whose end time has passed the
// given instant. The sweep uses this as its work list; each returned
// reservation is then retired under its seat's row lock, where expiry
// is re-checked before anything is deleted.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + `
	           FROM reservations
	           WHERE end_time <= ?
	           ORDER BY end_time`
	rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, mapSQLError(err)
	}
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.SeatID, &res.HolderID, &res.StartTime, &res.EndTime, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// createTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID. The caller must hold the
// seat row lock and have verified that no active reservation exists.
func createTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (seat_id, holder_id, start_time, end_time)
	           VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.SeatID, res.HolderID,
		res.StartTime.UTC().Format("2006-01-02 15:04:05"),
		res.EndTime.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return mapSQLError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// activeBySeatTx returns the seat's active reservation within the
// caller's transaction, or nil when the seat has none.
func activeBySeatTx(ctx context.Context, tx *sql.Tx, seatID uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + `
	           FROM reservations
	           WHERE seat_id = ? AND end_time > UTC_TIMESTAMP()
	           LIMIT 1`
	res, err := scanReservationRow(tx.QueryRowContext(ctx, q, seatID))
	if err != nil {
		if errors.Is(err, engine.ErrReservationNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return res, nil
}

// getByIDTx re-reads a reservation under the caller's transaction so
// the sweep can confirm it still exists and is still expired before
// deleting it.
func getByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations WHERE id = ?`
	return scanReservationRow(tx.QueryRowContext(ctx, q, id))
}

// deleteTx removes a reservation within the caller's transaction.
// Deleting an already-deleted reservation returns engine.ErrReservationNotFound.
func deleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return mapSQLError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrReservationNotFound
	}
	return nil
}

func scanReservationRow(row *sql.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(&res.ID, &res.SeatID, &res.HolderID, &res.StartTime, &res.EndTime, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrReservationNotFound
		}
		return nil, mapSQLError(err)
	}
	res.StartTime = res.StartTime.UTC()
	res.EndTime = res.EndTime.UTC()
	return &res, nil
}
