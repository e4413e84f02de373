package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/session"
	inmemdb "github.com/trezcool/classroom/storage/database/inmem"
)

func TestSessionEventRepository(t *testing.T) {
	repo := inmemdb.NewSessionEventRepository(inmemdb.Open())
	ctx := context.Background()
	now := time.Now()

	// inserted out of order on purpose
	for _, ev := range []session.Event{
		{SessionID: "s1", UserID: "u1", Kind: session.EventExpired, Reason: "inactivity", OccurredAt: now.Add(time.Minute)},
		{SessionID: "s1", UserID: "u1", Kind: session.EventStarted, OccurredAt: now},
		{SessionID: "s2", UserID: "u1", Kind: session.EventStarted, OccurredAt: now.Add(2 * time.Minute)},
	} {
		created, err := repo.CreateEvent(ctx, ev)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
	}

	events, err := repo.QueryEvents(ctx, session.EventFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, session.EventStarted, events[0].Kind)
	assert.Equal(t, "inactivity", events[1].Reason)

	events, err = repo.QueryEvents(ctx, session.EventFilter{UserID: "u1", Kinds: []session.EventKind{session.EventStarted}})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "s2", events[1].SessionID)

	events, err = repo.QueryEvents(ctx, session.EventFilter{UserID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, events)
}
