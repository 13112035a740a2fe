// Package queue defines the domain events published after catalog and
// reservation changes, the broker publishers that carry them and the
// RabbitMQ consumer that writes them to an audit log.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeHistoryRecorded = "history.recorded"
	TypeConcertDeleted  = "concert.deleted"
)

// Event is published when a reservation action commits or a concert is
// deleted.  It carries enough information for downstream consumers to log,
// notify or feed analytics without querying the primary database.
type Event struct {
	EventID        string `json:"event_id"`
	Type           string `json:"type"`
	ConcertID      uint64 `json:"concert_id"`
	ConcertName    string `json:"concert_name"`
	Action         string `json:"action,omitempty"`
	UserID         uint64 `json:"user_id,omitempty"`
	HistoryID      uint64 `json:"history_id,omitempty"`
	TotalSeats     int    `json:"total_seats"`
	ReservedCount  int    `json:"reserved_count"`
	CancelledCount int    `json:"cancelled_count"`
	DeletedHistory int64  `json:"deleted_history,omitempty"`
	OccurredAt     string `json:"occurred_at"`
}

// NewEvent stamps a fresh event id and the occurrence time in RFC3339 UTC.
func NewEvent(eventType string, at time.Time) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
}
