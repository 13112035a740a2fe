package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/concert-reservation/internal/clock"
	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/queue"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newReservationFixture(t *testing.T, seats int, opts ...Option) (*ReservationService, *memStore, uint64) {
	t.Helper()
	store := newMemStore()
	c := &model.Concert{Name: "Night Jazz", TotalSeats: seats}
	if err := store.Create(context.Background(), c); err != nil {
		t.Fatalf("seed concert: %v", err)
	}
	opts = append([]Option{WithClock(clock.NewFixed(fixedNow)), WithRetryPolicy(RetryPolicy{MaxAttempts: 3})}, opts...)
	return NewReservationService(store, memHistory{store}, store, opts...), store, c.ID
}

func TestSubmitAction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reserve increments and records", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 5)

		out, err := svc.SubmitAction(ctx, id, "reserve", 1)
		if err != nil {
			t.Fatalf("SubmitAction: %v", err)
		}
		if out.Status != StatusSuccess {
			t.Errorf("status = %q", out.Status)
		}
		if want := "Seat reserved successfully for concert ID 1"; out.Message != want {
			t.Errorf("message = %q, want %q", out.Message, want)
		}
		if r, c := store.counters(id); r != 1 || c != 0 {
			t.Errorf("counters = (%d,%d), want (1,0)", r, c)
		}
		if store.historyLen() != 1 {
			t.Fatalf("history len = %d, want 1", store.historyLen())
		}
		rec := store.history[0]
		if rec.Action != model.ActionReserve || rec.UserID != 1 || !rec.RecordedAt.Equal(fixedNow) {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("cancel releases a seat", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 5)
		for _, a := range []string{"reserve", "reserve", "cancel"} {
			if _, err := svc.SubmitAction(ctx, id, a, 1); err != nil {
				t.Fatalf("%s: %v", a, err)
			}
		}
		if r, c := store.counters(id); r != 1 || c != 1 {
			t.Errorf("counters = (%d,%d), want (1,1)", r, c)
		}
		if store.historyLen() != 3 {
			t.Errorf("history len = %d, want 3", store.historyLen())
		}
	})

	t.Run("cancel message", func(t *testing.T) {
		t.Parallel()
		svc, _, id := newReservationFixture(t, 2)
		if _, err := svc.SubmitAction(ctx, id, "reserve", 1); err != nil {
			t.Fatal(err)
		}
		out, err := svc.SubmitAction(ctx, id, "cancel", 1)
		if err != nil {
			t.Fatal(err)
		}
		if want := "Seat cancelled successfully for concert ID 1"; out.Message != want {
			t.Errorf("message = %q, want %q", out.Message, want)
		}
	})

	t.Run("cancel with nothing reserved", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 2)
		_, err := svc.SubmitAction(ctx, id, "cancel", 1)
		if !errors.Is(err, repository.ErrNothingToCancel) {
			t.Fatalf("err = %v, want ErrNothingToCancel", err)
		}
		if r, c := store.counters(id); r != 0 || c != 0 {
			t.Errorf("counters changed to (%d,%d)", r, c)
		}
		if store.historyLen() != 0 {
			t.Errorf("history written on failure")
		}
	})

	t.Run("unknown concert wins over invalid action", func(t *testing.T) {
		t.Parallel()
		svc, store, _ := newReservationFixture(t, 2)
		_, err := svc.SubmitAction(ctx, 99, "book", 1)
		if !errors.Is(err, repository.ErrConcertNotFound) {
			t.Fatalf("err = %v, want ErrConcertNotFound", err)
		}
		if store.historyLen() != 0 {
			t.Errorf("history written on failure")
		}
	})

	t.Run("invalid action", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 2)
		for _, a := range []string{"book", "", "RESERVE"} {
			_, err := svc.SubmitAction(ctx, id, a, 1)
			if !errors.Is(err, repository.ErrInvalidAction) {
				t.Errorf("%q: err = %v, want ErrInvalidAction", a, err)
			}
		}
		if r, c := store.counters(id); r != 0 || c != 0 {
			t.Errorf("counters changed to (%d,%d)", r, c)
		}
	})

	t.Run("capacity is enforced", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 2)
		for i := 0; i < 2; i++ {
			if _, err := svc.SubmitAction(ctx, id, "reserve", 1); err != nil {
				t.Fatal(err)
			}
		}
		_, err := svc.SubmitAction(ctx, id, "reserve", 1)
		if !errors.Is(err, repository.ErrSeatsExhausted) {
			t.Fatalf("err = %v, want ErrSeatsExhausted", err)
		}
		if r, _ := store.counters(id); r != 2 {
			t.Errorf("reserved = %d, want 2", r)
		}
		if store.historyLen() != 2 {
			t.Errorf("history len = %d, want 2", store.historyLen())
		}
	})

	t.Run("capacity check disabled allows overbooking", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 2, WithCapacityCheck(false))
		for i := 0; i < 3; i++ {
			if _, err := svc.SubmitAction(ctx, id, "reserve", 1); err != nil {
				t.Fatal(err)
			}
		}
		if r, _ := store.counters(id); r != 3 {
			t.Errorf("reserved = %d, want 3", r)
		}
	})

	t.Run("publishes after commit", func(t *testing.T) {
		t.Parallel()
		pub := &recordingPublisher{}
		svc, _, id := newReservationFixture(t, 2, WithPublisher(pub))
		if _, err := svc.SubmitAction(ctx, id, "reserve", 7); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.SubmitAction(ctx, id, "book", 7); err == nil {
			t.Fatal("expected error")
		}
		events := pub.snapshot()
		if len(events) != 1 {
			t.Fatalf("events = %d, want 1", len(events))
		}
		ev := events[0]
		if ev.Type != queue.TypeHistoryRecorded || ev.Action != "reserve" || ev.UserID != 7 || ev.ReservedCount != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.OccurredAt != "2026-03-14T09:26:53Z" {
			t.Errorf("occurred_at = %q", ev.OccurredAt)
		}
	})

	t.Run("publisher failure does not fail the action", func(t *testing.T) {
		t.Parallel()
		pub := &recordingPublisher{err: errors.New("broker down")}
		svc, store, id := newReservationFixture(t, 2, WithPublisher(pub))
		if _, err := svc.SubmitAction(ctx, id, "reserve", 1); err != nil {
			t.Fatalf("SubmitAction: %v", err)
		}
		if r, _ := store.counters(id); r != 1 {
			t.Errorf("reserved = %d, want 1", r)
		}
	})
}

func TestSubmitActionConcurrent(t *testing.T) {
	t.Parallel()
	const seats, requests = 5, 20

	svc, store, id := newReservationFixture(t, seats)
	locks := svc.locks

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, full   int
		unexpected []error
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitAction(context.Background(), id, "reserve", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrSeatsExhausted):
				full++
			default:
				unexpected = append(unexpected, err)
			}
		}()
	}
	wg.Wait()

	if len(unexpected) > 0 {
		t.Fatalf("unexpected errors: %v", unexpected)
	}
	if ok != seats || full != requests-seats {
		t.Errorf("ok=%d full=%d, want %d/%d", ok, full, seats, requests-seats)
	}
	if r, _ := store.counters(id); r != seats {
		t.Errorf("reserved = %d, want %d", r, seats)
	}
	if store.historyLen() != seats {
		t.Errorf("history len = %d, want %d", store.historyLen(), seats)
	}
	if n := locks.size(); n != 0 {
		t.Errorf("lock table holds %d entries after all requests", n)
	}
}

func TestSubmitActionRetry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}

	t.Run("retryable error is retried", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 2)
		store.failUpdate, store.failures = deadlock, 2

		if _, err := svc.SubmitAction(ctx, id, "reserve", 1); err != nil {
			t.Fatalf("SubmitAction: %v", err)
		}
		if store.updates != 3 {
			t.Errorf("attempts = %d, want 3", store.updates)
		}
		if r, _ := store.counters(id); r != 1 {
			t.Errorf("reserved = %d, want 1", r)
		}
		if store.historyLen() != 1 {
			t.Errorf("history len = %d, want 1", store.historyLen())
		}
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		t.Parallel()
		svc, store, id := newReservationFixture(t, 2)
		store.failUpdate, store.failures = deadlock, 10

		_, err := svc.SubmitAction(ctx, id, "reserve", 1)
		var myErr *mysql.MySQLError
		if !errors.As(err, &myErr) || myErr.Number != 1213 {
			t.Fatalf("err = %v, want deadlock", err)
		}
		if store.updates != 3 {
			t.Errorf("attempts = %d, want 3", store.updates)
		}
		if store.historyLen() != 0 {
			t.Errorf("history written on failure")
		}
	})

	t.Run("fatal errors are not retried", func(t *testing.T) {
		t.Parallel()
		for _, fatal := range []error{
			errors.New("constraint violated"),
			repository.ErrOutcomeUnknown,
			context.Canceled,
		} {
			svc, store, id := newReservationFixture(t, 2)
			store.failUpdate, store.failures = fatal, 10
			_, err := svc.SubmitAction(ctx, id, "reserve", 1)
			if !errors.Is(err, fatal) {
				t.Errorf("err = %v, want %v", err, fatal)
			}
			if store.updates != 1 {
				t.Errorf("%v: attempts = %d, want 1", fatal, store.updates)
			}
		}
	})
}

func TestSubmitActionContextCancelled(t *testing.T) {
	t.Parallel()
	svc, store, id := newReservationFixture(t, 2)

	unlock, err := svc.locks.Lock(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.SubmitAction(ctx, id, "reserve", 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if r, _ := store.counters(id); r != 0 {
		t.Errorf("reserved = %d, want 0", r)
	}
}
