package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives
	"errors"       // errors for sentinel comparisons
	"time"

	"seatwatch/internal/engine"
	"seatwatch/internal/model"
)

// SeatRepo provides methods to work with seats in the database.
// Status writes are only reachable through a seat transaction (see
// store.go) so that the reconciliation precedence rule is enforced
// under the row lock rather than by a separate guard read.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// Create inserts a single seat record. New seats start out Vacant.
// On success the seat's ID is populated.
func (r *SeatRepo) Create(ctx context.Context, s *model.Seat) error {
	const q = `INSERT INTO seats (label, x1, y1, x2, y2, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Label, s.Region.X1, s.Region.Y1, s.Region.X2, s.Region.Y2, model.StatusVacant)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Status = model.StatusVacant
	return nil
}

// CreateBulk inserts multiple seats in a single statement.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (label, x1, y1, x2, y2, status) VALUES `
	args := make([]interface{}, 0, len(seats)*6)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, s.Label, s.Region.X1, s.Region.Y1, s.Region.X2, s.Region.Y2, model.StatusVacant)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// GetAll retrieves every seat ordered by label. It is used both by the
// seat map endpoint and by the detection cycle when computing per-seat
// presence verdicts.
func (r *SeatRepo) GetAll(ctx context.Context) ([]model.Seat, error) {
	const q = `SELECT id, label, x1, y1, x2, y2, status, occupied_since, created_at, updated_at
	           FROM seats
	           ORDER BY label`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID retrieves a seat by its id without locking.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT id, label, x1, y1, x2, y2, status, occupied_since, created_at, updated_at
	           FROM seats WHERE id = ?`
	s, err := scanSeatRow(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrSeatNotFound
		}
		return nil, err
	}
	return s, nil
}

// CountByStatus returns the number of seats currently in the given status.
func (r *SeatRepo) CountByStatus(ctx context.Context, status model.SeatStatus) (int, error) {
	const q = `SELECT COUNT(*) FROM seats WHERE status = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, status).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// lockByIDTx loads a seat row under an exclusive lock. The lock is held
// until the surrounding transaction commits or rolls back, serializing
// all writers that target the same seat.
func lockByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Seat, error) {
	const q = `SELECT id, label, x1, y1, x2, y2, status, occupied_since, created_at, updated_at
	           FROM seats WHERE id = ? FOR UPDATE`
	s, err := scanSeatRow(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrSeatNotFound
		}
		return nil, mapSQLError(err)
	}
	return s, nil
}

// updateStatusTx writes a seat's status and occupied_since inside the
// caller's transaction. The caller must already hold the row lock.
func updateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.SeatStatus, occupiedSince *time.Time) error {
	const q = `UPDATE seats
	           SET status = ?, occupied_since = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	var since interface{}
	if occupiedSince != nil {
		since = occupiedSince.UTC().Format("2006-01-02 15:04:05")
	}
	res, err := tx.ExecContext(ctx, q, status, since, id)
	if err != nil {
		return mapSQLError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and for a no-op
		// write; the row was locked above, so only verify existence.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM seats WHERE id = ?`, id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return engine.ErrSeatNotFound
			}
			return mapSQLError(err)
		}
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for seat scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeat(rs rowScanner) (model.Seat, error) {
	var s model.Seat
	var status string
	var since sql.NullTime
	err := rs.Scan(
		&s.ID, &s.Label,
		&s.Region.X1, &s.Region.Y1, &s.Region.X2, &s.Region.Y2,
		&status, &since, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return model.Seat{}, err
	}
	s.Status = model.SeatStatus(status)
	if since.Valid {
		t := since.Time.UTC()
		s.OccupiedSince = &t
	}
	return s, nil
}

func scanSeatRow(row *sql.Row) (*model.Seat, error) {
	s, err := scanSeat(row)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
