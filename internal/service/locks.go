package service

import (
	"context"
	"sync"
)

// ConcertLocks serializes mutations per concert id inside one process.
// Entries are created on demand and dropped once nobody holds or waits for
// them, so memory stays proportional to in-flight requests.
type ConcertLocks struct {
	mu    sync.Mutex
	locks map[uint64]*concertLock
}

type concertLock struct {
	sem  chan struct{}
	refs int
}

func NewConcertLocks() *ConcertLocks {
	return &ConcertLocks{locks: make(map[uint64]*concertLock)}
}

// Lock blocks until the lock for id is held or ctx is done.  The returned
// func releases it and must be called exactly once.
func (l *ConcertLocks) Lock(ctx context.Context, id uint64) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[id]
	if !ok {
		cl = &concertLock{sem: make(chan struct{}, 1)}
		l.locks[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
		return func() {
			<-cl.sem
			l.release(id, cl)
		}, nil
	case <-ctx.Done():
		l.release(id, cl)
		return nil, ctx.Err()
	}
}

func (l *ConcertLocks) release(id uint64, cl *concertLock) {
	l.mu.Lock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()
}

func (l *ConcertLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
