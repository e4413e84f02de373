package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/session"
)

type sessionEventRepository struct {
	db *sessionEventTable
}

var _ session.EventRepository = (*sessionEventRepository)(nil) // interface compliance check

func NewSessionEventRepository(db *DB) *sessionEventRepository {
	return &sessionEventRepository{db: db.sessionEvent}
}

func (repo *sessionEventRepository) CreateEvent(_ context.Context, ev session.Event, _ ...core.DBExecutor) (session.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	repo.db.rows = append(repo.db.rows, ev)
	return ev, nil
}

func (repo *sessionEventRepository) QueryEvents(_ context.Context, filter session.EventFilter, _ ...core.DBExecutor) ([]session.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	kinds := make(map[session.EventKind]bool, len(filter.Kinds))
	for _, k := range filter.Kinds {
		kinds[k] = true
	}

	events := make([]session.Event, 0)
	for _, ev := range repo.db.rows {
		if filter.SessionID != "" && ev.SessionID != filter.SessionID {
			continue
		}
		if filter.UserID != "" && ev.UserID != filter.UserID {
			continue
		}
		if len(kinds) > 0 && !kinds[ev.Kind] {
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events, nil
}
