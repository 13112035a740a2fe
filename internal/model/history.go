package model

import "time"

// Action is the kind of user action recorded in the history table.
type Action string

const (
	ActionReserve Action = "reserve"
	ActionCancel  Action = "cancel"
)

// ParseAction validates a raw action string taken from the request path.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionReserve, ActionCancel:
		return a, true
	}
	return "", false
}

// HistoryRecord is an immutable audit entry for one reserve or cancel
// action.  RecordedAt is always a UTC instant; conversion to a display
// zone happens when the record is rendered.
type HistoryRecord struct {
	ID         uint64    // history.id
	ConcertID  uint64    // history.concert_id
	UserID     uint64    // history.user_id
	Action     Action    // history.action
	RecordedAt time.Time // history.recorded_at
}

// HistoryEntry is a history record joined with the concert and user it
// references.
type HistoryEntry struct {
	HistoryRecord
	Concert Concert
	User    User
}
