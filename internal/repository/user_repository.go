package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// ErrUserNotFound indicates that no user exists with the given id.
var ErrUserNotFound = errors.New("user not found")

// UserRepo reads and seeds the minimal users table.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Ensure inserts the user when no row with that id exists.  An existing
// row keeps its name.
func (r *UserRepo) Ensure(ctx context.Context, u model.User) error {
	const q = `INSERT INTO users (id, user_name) VALUES (?, ?) ON DUPLICATE KEY UPDATE id = id`
	if _, err := conn(ctx, r.db).ExecContext(ctx, q, u.ID, u.Name); err != nil {
		return fmt.Errorf("ensure user %d: %w", u.ID, err)
	}
	return nil
}

// EnsureDefault seeds u and reads it back, so startup fails early when the
// configured id cannot be stored or resolved.
func (r *UserRepo) EnsureDefault(ctx context.Context, u model.User) (*model.User, error) {
	if err := r.Ensure(ctx, u); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, u.ID)
}

// GetByID returns ErrUserNotFound when no row has the id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT id, user_name FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}
