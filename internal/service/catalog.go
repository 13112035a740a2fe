package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/queue"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

// CatalogService creates, lists, aggregates and deletes concerts.
type CatalogService struct {
	concerts ConcertStore
	history  HistoryStore
	tx       Transactor
	deps
}

func NewCatalogService(concerts ConcertStore, history HistoryStore, tx Transactor, opts ...Option) *CatalogService {
	s := &CatalogService{concerts: concerts, history: history, tx: tx, deps: defaultDeps()}
	for _, opt := range opts {
		opt(&s.deps)
	}
	return s
}

// CreateConcert stores a new concert with both counters at zero.
func (s *CatalogService) CreateConcert(ctx context.Context, name string, totalSeats int, description string) (*model.Concert, error) {
	if totalSeats < 1 {
		return nil, repository.ErrInvalidCapacity
	}
	c := &model.Concert{Name: name, Description: description, TotalSeats: totalSeats}
	if err := s.concerts.Create(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("concert created", "concert_id", c.ID, "total_seats", c.TotalSeats)
	return c, nil
}

// ListConcerts returns a snapshot of all concerts ordered by id.
func (s *CatalogService) ListConcerts(ctx context.Context) ([]model.Concert, error) {
	return s.concerts.List(ctx)
}

func (s *CatalogService) GetConcert(ctx context.Context, id uint64) (*model.Concert, error) {
	return s.concerts.GetByID(ctx, id)
}

// GetAggregateStats sums seats and counters over the whole catalog.
func (s *CatalogService) GetAggregateStats(ctx context.Context) (model.DashboardStats, error) {
	return s.concerts.Stats(ctx)
}

// DeleteConcert removes the concert's history and then the concert in a
// single transaction.  It returns repository.ErrConcertNotFound when the
// id is unknown.
func (s *CatalogService) DeleteConcert(ctx context.Context, id uint64) error {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	var (
		deleted model.Concert
		removed int64
	)
	err = s.retry.run(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(ctx context.Context) error {
			c, err := s.concerts.GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			n, err := s.history.DeleteByConcert(ctx, id)
			if err != nil {
				return fmt.Errorf("cascade history: %w", err)
			}
			if err := s.concerts.Delete(ctx, id); err != nil {
				return err
			}
			deleted, removed = *c, n
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.log.Info("concert deleted", "concert_id", id, "history_removed", removed)
	ev := queue.NewEvent(queue.TypeConcertDeleted, s.clock.Now())
	ev.ConcertID = deleted.ID
	ev.ConcertName = deleted.Name
	ev.TotalSeats = deleted.TotalSeats
	ev.ReservedCount = deleted.ReservedCount
	ev.CancelledCount = deleted.CancelledCount
	ev.DeletedHistory = removed
	s.publish(ev)
	return nil
}
