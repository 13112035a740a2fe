// Package repository defines the data access layer for concerts, history
// and users, plus the sentinel errors shared with higher layers.  Handlers
// translate these sentinels into HTTP status codes with errors.Is.
package repository

import "errors"

// ErrConcertNotFound is returned when no concert has the requested id.
// Handlers should translate this into an HTTP 404 response.
var ErrConcertNotFound = errors.New("concert not found")

// ErrInvalidAction is returned when a reservation action is neither
// "reserve" nor "cancel".  It is surfaced as 404 to match the route
// semantics of /user/:id/:type.
var ErrInvalidAction = errors.New("invalid action")

// ErrSeatsExhausted is returned when a reserve would push the reserved
// count past the concert's capacity.  Handlers answer 409.
var ErrSeatsExhausted = errors.New("seats exhausted")

// ErrNothingToCancel is returned when a cancel arrives for a concert with
// no reserved seats left to release.  Handlers answer 409.
var ErrNothingToCancel = errors.New("no reserved seats to cancel")

// ErrOutcomeUnknown wraps a failed COMMIT.  The transaction may or may not
// have been applied, so it must never be retried automatically.
var ErrOutcomeUnknown = errors.New("transaction outcome unknown")

// ErrInvalidCapacity is returned when a concert is created with fewer than
// one seat.
var ErrInvalidCapacity = errors.New("total seats must be at least 1")
