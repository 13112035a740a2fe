package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// HistoryRepo provides append-only access to the history table and the
// joined reads used by the admin history page.  All timestamps are UTC.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a new HistoryRepo bound to the given database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Append inserts a history record and sets its generated ID.
func (r *HistoryRepo) Append(ctx context.Context, h *model.HistoryRecord) error {
	const q = `INSERT INTO history (concert_id, user_id, action, recorded_at) VALUES (?, ?, ?, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, h.ConcertID, h.UserID, string(h.Action), h.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	h.ID = uint64(id)
	return nil
}

// DeleteByConcert removes every history row referencing the concert and
// returns how many were deleted.
func (r *HistoryRepo) DeleteByConcert(ctx context.Context, concertID uint64) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM history WHERE concert_id = ?`, concertID)
	if err != nil {
		return 0, fmt.Errorf("delete history for concert %d: %w", concertID, err)
	}
	return res.RowsAffected()
}

const historyJoin = `SELECT h.id, h.concert_id, h.user_id, h.action, h.recorded_at,
       c.id, c.name, c.description, c.total_seats, c.reserved_count, c.cancelled_count, c.created_at, c.updated_at,
       u.id, u.user_name
FROM history h
JOIN concerts c ON c.id = h.concert_id
JOIN users u ON u.id = h.user_id`

// List returns all history joined with its concert and user, newest first.
// Records sharing a timestamp are ordered by id descending.
func (r *HistoryRepo) List(ctx context.Context) ([]model.HistoryEntry, error) {
	return r.list(ctx, historyJoin+` ORDER BY h.recorded_at DESC, h.id DESC`)
}

// ListByConcert is List restricted to a single concert.
func (r *HistoryRepo) ListByConcert(ctx context.Context, concertID uint64) ([]model.HistoryEntry, error) {
	return r.list(ctx, historyJoin+` WHERE h.concert_id = ? ORDER BY h.recorded_at DESC, h.id DESC`, concertID)
}

func (r *HistoryRepo) list(ctx context.Context, q string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	result := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e      model.HistoryEntry
			action string
		)
		if err := rows.Scan(
			&e.ID, &e.ConcertID, &e.UserID, &action, &e.RecordedAt,
			&e.Concert.ID, &e.Concert.Name, &e.Concert.Description, &e.Concert.TotalSeats,
			&e.Concert.ReservedCount, &e.Concert.CancelledCount, &e.Concert.CreatedAt, &e.Concert.UpdatedAt,
			&e.User.ID, &e.User.Name,
		); err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		e.Action = model.Action(action)
		e.RecordedAt = e.RecordedAt.UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return result, nil
}
