package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/queue"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

// StatusSuccess is the status reported for a completed action.
const StatusSuccess = "success"

// Outcome is the result of a completed reservation action.
type Outcome struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Concert model.Concert       `json:"-"`
	Record  model.HistoryRecord `json:"-"`
}

// ReservationService runs the reserve/cancel workflow: validate the concert
// and action, mutate the counters, append a history record.  All three
// steps share one transaction with the concert row locked, and requests
// for the same concert are serialized in process.
type ReservationService struct {
	concerts ConcertStore
	history  HistoryStore
	tx       Transactor
	deps
}

func NewReservationService(concerts ConcertStore, history HistoryStore, tx Transactor, opts ...Option) *ReservationService {
	s := &ReservationService{concerts: concerts, history: history, tx: tx, deps: defaultDeps()}
	for _, opt := range opts {
		opt(&s.deps)
	}
	return s
}

// SubmitAction applies action ("reserve" or "cancel") to the concert on
// behalf of userID.
//
// Errors: repository.ErrConcertNotFound for an unknown concert (checked
// first), repository.ErrInvalidAction for any other action string,
// repository.ErrSeatsExhausted when a reserve finds no free seat and
// repository.ErrNothingToCancel when a cancel finds no reserved seat.  A
// cancel releases one reserved seat and increments the cancel counter.
func (s *ReservationService) SubmitAction(ctx context.Context, concertID uint64, action string, userID uint64) (Outcome, error) {
	unlock, err := s.locks.Lock(ctx, concertID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	var out Outcome
	err = s.retry.run(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(ctx context.Context) error {
			c, err := s.concerts.GetByIDForUpdate(ctx, concertID)
			if err != nil {
				return err
			}
			act, ok := model.ParseAction(action)
			if !ok {
				return fmt.Errorf("%w: %q", repository.ErrInvalidAction, action)
			}

			reserved, cancelled := c.ReservedCount, c.CancelledCount
			switch act {
			case model.ActionReserve:
				if s.capacityCheck && c.Available() == 0 {
					return repository.ErrSeatsExhausted
				}
				reserved++
			case model.ActionCancel:
				if reserved <= 0 {
					return repository.ErrNothingToCancel
				}
				reserved--
				cancelled++
			}
			if err := s.concerts.UpdateCounters(ctx, c.ID, reserved, cancelled); err != nil {
				return err
			}

			rec := model.HistoryRecord{
				ConcertID:  c.ID,
				UserID:     userID,
				Action:     act,
				RecordedAt: s.clock.Now().UTC(),
			}
			if err := s.history.Append(ctx, &rec); err != nil {
				return err
			}

			c.ReservedCount, c.CancelledCount = reserved, cancelled
			out = Outcome{
				Status:  StatusSuccess,
				Message: fmt.Sprintf("Seat %sd successfully for concert ID %d", act, c.ID),
				Concert: *c,
				Record:  rec,
			}
			return nil
		})
	})
	if err != nil {
		return Outcome{}, err
	}

	s.log.Info("reservation action recorded",
		"concert_id", out.Concert.ID, "action", out.Record.Action, "user_id", userID,
		"reserved", out.Concert.ReservedCount, "total_seats", out.Concert.TotalSeats)

	ev := queue.NewEvent(queue.TypeHistoryRecorded, out.Record.RecordedAt)
	ev.ConcertID = out.Concert.ID
	ev.ConcertName = out.Concert.Name
	ev.Action = string(out.Record.Action)
	ev.UserID = userID
	ev.HistoryID = out.Record.ID
	ev.TotalSeats = out.Concert.TotalSeats
	ev.ReservedCount = out.Concert.ReservedCount
	ev.CancelledCount = out.Concert.CancelledCount
	s.publish(ev)
	return out, nil
}
