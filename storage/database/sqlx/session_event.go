package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/session"
)

type sessionEventRepository struct {
	db *sqlx.DB
}

var _ session.EventRepository = (*sessionEventRepository)(nil) // interface compliance check

func NewSessionEventRepository(db *sqlx.DB) *sessionEventRepository {
	return &sessionEventRepository{db: db}
}

func (repo sessionEventRepository) CreateEvent(ctx context.Context, ev session.Event, exec ...core.DBExecutor) (session.Event, error) {
	exe, err := getExec(repo.db, exec)
	if err != nil {
		return session.Event{}, err
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	q := `INSERT INTO session_event (id, session_id, user_id, kind, reason, occurred_at)
		VALUES (:id, :session_id, :user_id, :kind, :reason, :occurred_at)`
	if _, err := sqlx.NamedExecContext(ctx, exe, q, ev); err != nil {
		return session.Event{}, errors.Wrap(err, "inserting session event")
	}
	return ev, nil
}

func (repo sessionEventRepository) QueryEvents(ctx context.Context, filter session.EventFilter, exec ...core.DBExecutor) ([]session.Event, error) {
	exe, err := getExec(repo.db, exec)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.SessionID != "" {
		if _, err := uuid.Parse(filter.SessionID); err != nil {
			return []session.Event{}, nil
		}
		where = append(where, `session_id = ?`)
		args = append(args, filter.SessionID)
	}
	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return []session.Event{}, nil
		}
		where = append(where, `user_id = ?`)
		args = append(args, filter.UserID)
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		where = append(where, `kind = ANY(?)`)
		args = append(args, pq.Array(kinds))
	}

	q := `SELECT id, session_id, user_id, kind, reason, occurred_at FROM session_event`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY occurred_at ASC`

	events := make([]session.Event, 0)
	if err := sqlx.SelectContext(ctx, exe, &events, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying session events")
	}
	for i := range events {
		events[i].OccurredAt = events[i].OccurredAt.UTC()
	}
	return events, nil
}
