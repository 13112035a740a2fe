package model

import (
	"encoding/json"
	"time"
)

// Concert is a schedulable event with a fixed seat capacity and the
// counters mutated by the reservation workflow.  The JSON names follow the
// contract the admin and user pages already consume.
//
// Fields:
//
//	ID             – primary key identifier.
//	Name           – display name.
//	Description    – free text shown on the concert card.
//	TotalSeats     – capacity, fixed at creation.
//	ReservedCount  – seats currently reserved; 0 <= ReservedCount <= TotalSeats.
//	CancelledCount – number of cancel actions ever recorded; never decreases.
type Concert struct {
	ID             uint64    `json:"id"`          // concerts.id
	Name           string    `json:"concertName"` // concerts.name
	Description    string    `json:"description"` // concerts.description
	TotalSeats     int       `json:"seat"`        // concerts.total_seats
	ReservedCount  int       `json:"seatReserve"` // concerts.reserved_count
	CancelledCount int       `json:"seatCancel"`  // concerts.cancelled_count
	CreatedAt      time.Time `json:"createdAt"`   // concerts.created_at
	UpdatedAt      time.Time `json:"updatedAt"`   // concerts.updated_at
}

// Available returns the number of seats that can still be reserved.
func (c Concert) Available() int {
	if n := c.TotalSeats - c.ReservedCount; n > 0 {
		return n
	}
	return 0
}

// MarshalJSON adds the derived "available" seat count to the stored fields.
func (c Concert) MarshalJSON() ([]byte, error) {
	type stored Concert
	return json.Marshal(struct {
		stored
		Available int `json:"available"`
	}{stored(c), c.Available()})
}

// DashboardStats aggregates capacity and counters across every concert.
type DashboardStats struct {
	TotalSeats     int64 `json:"totalSeat"`
	TotalReserved  int64 `json:"totalSeatReserve"`
	TotalCancelled int64 `json:"totalSeatCancel"`
}
