package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"seatwatch/internal/model"
)

// HolderRepo provides data access to the holders table.
type HolderRepo struct {
	db *sql.DB
}

// NewHolderRepo returns a new HolderRepo bound to the given database.
func NewHolderRepo(db *sql.DB) *HolderRepo { return &HolderRepo{db: db} }

// Create inserts a new holder and populates the generated ID. A
// duplicate email surfaces as ErrEmailTaken.
func (r *HolderRepo) Create(ctx context.Context, h *model.Holder) error {
	const q = `INSERT INTO holders (name, email, password_hash) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, h.Name, h.Email, h.PasswordHash)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailTaken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// GetByEmail returns the holder with the given email.
func (r *HolderRepo) GetByEmail(ctx context.Context, email string) (*model.Holder, error) {
	const q = `SELECT id, name, email, password_hash, created_at FROM holders WHERE email = ?`
	return scanHolder(r.db.QueryRowContext(ctx, q, email))
}

// GetByID returns the holder with the given ID.
func (r *HolderRepo) GetByID(ctx context.Context, id uint64) (*model.Holder, error) {
	const q = `SELECT id, name, email, password_hash, created_at FROM holders WHERE id = ?`
	return scanHolder(r.db.QueryRowContext(ctx, q, id))
}

func scanHolder(row *sql.Row) (*model.Holder, error) {
	var h model.Holder
	err := row.Scan(&h.ID, &h.Name, &h.Email, &h.PasswordHash, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHolderNotFound
		}
		return nil, err
	}
	return &h, nil
}

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate
// entry for a unique key).
func isDuplicateKey(err error) bool {
	var my *mysql.MySQLError
	return errors.As(err, &my) && my.Number == 1062
}
