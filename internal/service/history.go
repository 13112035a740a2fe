package service

import (
	"context"

	"github.com/iliyamo/concert-reservation/internal/model"
)

// HistoryService answers the read-only history queries.
type HistoryService struct {
	concerts ConcertStore
	history  HistoryStore
}

func NewHistoryService(concerts ConcertStore, history HistoryStore) *HistoryService {
	return &HistoryService{concerts: concerts, history: history}
}

// ListHistory returns every record joined with its concert and user,
// newest first.
func (s *HistoryService) ListHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	return s.history.List(ctx)
}

// ListConcertHistory returns the history of one concert, newest first, or
// repository.ErrConcertNotFound.
func (s *HistoryService) ListConcertHistory(ctx context.Context, concertID uint64) ([]model.HistoryEntry, error) {
	if _, err := s.concerts.GetByID(ctx, concertID); err != nil {
		return nil, err
	}
	return s.history.ListByConcert(ctx, concertID)
}
