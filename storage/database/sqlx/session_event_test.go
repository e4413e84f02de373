package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/session"
	"github.com/trezcool/classroom/core/user"
	sqlxrepos "github.com/trezcool/classroom/storage/database/sqlx"
	testutil "github.com/trezcool/classroom/tests"
)

func TestSessionEventRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Student", "student", "", "", []string{user.RoleStudent}, true)
	repo := sqlxrepos.NewSessionEventRepository(db)
	ctx := context.Background()

	sid := uuid.New().String()
	now := time.Now().UTC().Truncate(time.Microsecond)
	for i, kind := range []session.EventKind{session.EventStarted, session.EventExpired} {
		_, err := repo.CreateEvent(ctx, session.Event{
			SessionID:  sid,
			UserID:     usr.ID,
			Kind:       kind,
			OccurredAt: now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := repo.QueryEvents(ctx, session.EventFilter{SessionID: sid})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, session.EventStarted, events[0].Kind)
	assert.Equal(t, session.EventExpired, events[1].Kind)

	events, err = repo.QueryEvents(ctx, session.EventFilter{UserID: usr.ID, Kinds: []session.EventKind{session.EventExpired}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, now.Add(time.Minute).Equal(events[0].OccurredAt))

	events, err = repo.QueryEvents(ctx, session.EventFilter{SessionID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, events)
}
