// Package service holds the concert catalog, the reservation workflow and
// the history queries.  Services depend on small store interfaces so they
// can be exercised with in-memory fakes; the MySQL implementations live in
// internal/repository.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/logger"
	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/queue"
)

// ConcertStore is implemented by repository.ConcertRepo.
type ConcertStore interface {
	Create(ctx context.Context, c *model.Concert) error
	GetByID(ctx context.Context, id uint64) (*model.Concert, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (*model.Concert, error)
	List(ctx context.Context) ([]model.Concert, error)
	Stats(ctx context.Context) (model.DashboardStats, error)
	UpdateCounters(ctx context.Context, id uint64, reserved, cancelled int) error
	Delete(ctx context.Context, id uint64) error
}

// HistoryStore is implemented by repository.HistoryRepo.
type HistoryStore interface {
	Append(ctx context.Context, h *model.HistoryRecord) error
	DeleteByConcert(ctx context.Context, concertID uint64) (int64, error)
	List(ctx context.Context) ([]model.HistoryEntry, error)
	ListByConcert(ctx context.Context, concertID uint64) ([]model.HistoryEntry, error)
}

// Transactor is implemented by repository.TxManager.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// deps carries the collaborators shared by the mutating services.
type deps struct {
	clock  clock.Clock
	log    *logger.Logger
	events queue.Publisher
	locks  *ConcertLocks
	retry  RetryPolicy

	capacityCheck bool
}

func defaultDeps() deps {
	return deps{
		clock:  clock.NewSystem(),
		log:    logger.Discard(),
		events: queue.NopPublisher{},
		locks:  NewConcertLocks(),
		retry:  DefaultRetryPolicy,

		capacityCheck: true,
	}
}

// Option configures CatalogService and ReservationService.
type Option func(*deps)

func WithClock(c clock.Clock) Option { return func(d *deps) { d.clock = c } }

func WithLogger(l *logger.Logger) Option { return func(d *deps) { d.log = l } }

func WithPublisher(p queue.Publisher) Option { return func(d *deps) { d.events = p } }

// WithLocks shares one lock table between services so a delete and a
// reservation on the same concert never interleave.
func WithLocks(l *ConcertLocks) Option { return func(d *deps) { d.locks = l } }

func WithRetryPolicy(p RetryPolicy) Option { return func(d *deps) { d.retry = p } }

// WithCapacityCheck toggles the reservedCount < totalSeats guard on
// reserve.  It is on by default; turning it off allows reservations past
// capacity and exists only so tests can compare both behaviours.  Against
// MySQL the chk_concerts_reserved constraint still rejects the overbooking
// write (error 3819), so the unchecked mode only overbooks on stores
// without that constraint.
func WithCapacityCheck(on bool) Option { return func(d *deps) { d.capacityCheck = on } }

// publish sends ev after a committed change.  A broker failure never undoes
// the change, so errors are only logged.
func (d deps) publish(ev queue.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.events.Publish(ctx, ev); err != nil {
		d.log.Warn("event publish failed", "type", ev.Type, "concert_id", ev.ConcertID, "error", err)
	}
}
