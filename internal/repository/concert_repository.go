package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/concert-reservation/internal/model"
)

const concertColumns = `id, name, description, total_seats, reserved_count, cancelled_count, created_at, updated_at`

// ConcertRepo manages persistence for concerts.  Every method honours a
// transaction opened by TxManager.WithTx on the given context.
type ConcertRepo struct {
	db *sql.DB
}

// NewConcertRepo constructs a ConcertRepo with the given DB handle.
func NewConcertRepo(db *sql.DB) *ConcertRepo {
	return &ConcertRepo{db: db}
}

// Create inserts a new concert with zeroed counters and populates the
// generated ID and DB-default timestamps on c.
func (r *ConcertRepo) Create(ctx context.Context, c *model.Concert) error {
	const q = `INSERT INTO concerts (name, description, total_seats, reserved_count, cancelled_count) VALUES (?, ?, ?, 0, 0)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, c.Name, c.Description, c.TotalSeats)
	if err != nil {
		return fmt.Errorf("insert concert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert concert: %w", err)
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *created
	return nil
}

// GetByID retrieves a concert by its ID.  It returns ErrConcertNotFound if
// there is no matching row.
func (r *ConcertRepo) GetByID(ctx context.Context, id uint64) (*model.Concert, error) {
	return r.get(ctx, `SELECT `+concertColumns+` FROM concerts WHERE id = ?`, id)
}

// GetByIDForUpdate reads a concert and takes a row lock on it until the
// surrounding transaction ends.  Callers must run it inside WithTx; outside
// a transaction the lock is released as soon as the statement finishes.
func (r *ConcertRepo) GetByIDForUpdate(ctx context.Context, id uint64) (*model.Concert, error) {
	return r.get(ctx, `SELECT `+concertColumns+` FROM concerts WHERE id = ? FOR UPDATE`, id)
}

func (r *ConcertRepo) get(ctx context.Context, q string, id uint64) (*model.Concert, error) {
	c, err := scanConcert(conn(ctx, r.db).QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConcertNotFound
		}
		return nil, fmt.Errorf("get concert %d: %w", id, err)
	}
	return c, nil
}

// List returns every concert ordered by id ascending.  When no concerts
// exist it returns an empty slice and nil error.
func (r *ConcertRepo) List(ctx context.Context) ([]model.Concert, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT `+concertColumns+` FROM concerts ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list concerts: %w", err)
	}
	defer rows.Close()
	result := []model.Concert{}
	for rows.Next() {
		c, err := scanConcert(rows)
		if err != nil {
			return nil, fmt.Errorf("list concerts: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list concerts: %w", err)
	}
	return result, nil
}

// Stats sums capacity and counters across all concerts.  An empty table
// yields zeros.
func (r *ConcertRepo) Stats(ctx context.Context) (model.DashboardStats, error) {
	const q = `SELECT COALESCE(SUM(total_seats), 0), COALESCE(SUM(reserved_count), 0), COALESCE(SUM(cancelled_count), 0) FROM concerts`
	var s model.DashboardStats
	if err := conn(ctx, r.db).QueryRowContext(ctx, q).Scan(&s.TotalSeats, &s.TotalReserved, &s.TotalCancelled); err != nil {
		return model.DashboardStats{}, fmt.Errorf("concert stats: %w", err)
	}
	return s, nil
}

// UpdateCounters writes the reserved and cancelled counters of a concert.
// It is meant to follow GetByIDForUpdate in the same transaction.
func (r *ConcertRepo) UpdateCounters(ctx context.Context, id uint64, reserved, cancelled int) error {
	const q = `UPDATE concerts SET reserved_count = ?, cancelled_count = ? WHERE id = ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, reserved, cancelled, id)
	if err != nil {
		return fmt.Errorf("update concert %d: %w", id, err)
	}
	// MySQL reports 0 affected rows when values are unchanged, so only a
	// failed lookup distinguishes a missing row.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a concert row.  History rows must be removed first; see
// HistoryRepo.DeleteByConcert.  It returns ErrConcertNotFound when no row
// was deleted.
func (r *ConcertRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM concerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete concert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete concert %d: %w", id, err)
	}
	if n == 0 {
		return ErrConcertNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConcert(s rowScanner) (*model.Concert, error) {
	var c model.Concert
	if err := s.Scan(&c.ID, &c.Name, &c.Description, &c.TotalSeats, &c.ReservedCount, &c.CancelledCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
