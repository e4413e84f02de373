package session

import (
	"context"
	"time"

	"github.com/trezcool/classroom/core"
)

type EventKind string

const (
	EventStarted EventKind = "started"
	EventExpired EventKind = "expired"
	EventEnded   EventKind = "ended"
)

// Event is the persisted record of a session lifecycle transition.
type Event struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Kind       EventKind `json:"kind" db:"kind"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"` // UTC
}

type EventFilter struct {
	SessionID string
	UserID    string
	Kinds     []EventKind
}

type EventRepository interface {
	CreateEvent(ctx context.Context, ev Event, exec ...core.DBExecutor) (Event, error)
	// QueryEvents applies AND on the set EventFilter fields, oldest first.
	QueryEvents(ctx context.Context, filter EventFilter, exec ...core.DBExecutor) ([]Event, error)
}
