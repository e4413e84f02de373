package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/session"
	testutil "github.com/trezcool/classroom/tests"
)

func TestSessionApi_current(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "John", "johndoe", "john@test.cd", testPwd, nil, true)
	res := f.login(t, "johndoe")

	f.clock.BlockUntil(2)
	f.clock.Advance(10 * time.Minute)

	rec := f.do(http.MethodGet, "/v1/sessions/current", res.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sess session.Session
	unmarshalBody(t, rec, &sess)
	assert.Equal(t, res.Session.ID, sess.ID)
	assert.Equal(t, 10, sess.DurationMinutes)
	assert.Equal(t, 15, sess.MinutesUntilInactivityTimeout)
	// the request itself counts as activity
	assert.True(t, f.clock.Now().Equal(sess.LastActivityAt), sess.LastActivityAt)

	runHTTPTests(t, f.app, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/sessions/current",
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
		{
			name:     "tracked event",
			method:   http.MethodPost,
			path:     "/v1/sessions/current/activity",
			token:    res.Token,
			body:     []byte(`{"type": "keypress"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "keydown is not tracked",
			method:   http.MethodPost,
			path:     "/v1/sessions/current/activity",
			token:    res.Token,
			body:     []byte(`{"type": "keydown"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "unknown activity event"}),
		},
		{
			name:     "untracked event",
			method:   http.MethodPost,
			path:     "/v1/sessions/current/activity",
			token:    res.Token,
			body:     []byte(`{"type": "contextmenu"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "unknown activity event"}),
		},
	})

	rec = f.do(http.MethodGet, "/v1/sessions/current/events", res.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var events []session.Event
	unmarshalBody(t, rec, &events)
	require.Len(t, events, 1)
	assert.Equal(t, session.EventStarted, events[0].Kind)
}

func TestSessionApi_expiry(t *testing.T) {
	f := setup(t)
	testutil.CreateUser(t, f.usrRepo, "John", "johndoe", "john@test.cd", testPwd, nil, true)
	res := f.login(t, "johndoe")

	f.clock.BlockUntil(2)
	f.clock.Advance(16 * time.Minute)

	require.Eventually(t, func() bool {
		_, err := f.registry.Lookup(res.Session.ID)
		_, expired := session.IsExpired(err)
		return expired
	}, time.Second, 10*time.Millisecond)

	runHTTPTests(t, f.app, []httpTest{
		{
			name:     "expired session",
			method:   http.MethodGet,
			path:     "/v1/sessions/current",
			token:    res.Token,
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, httpErr{Error: "session expired"}),
		},
		{
			name:     "activity does not revive it",
			method:   http.MethodPost,
			path:     "/v1/sessions/current/activity",
			token:    res.Token,
			body:     []byte(`{"type": "click"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, httpErr{Error: "session expired"}),
		},
	})

	// logging in again replaces the expired session
	again := f.login(t, "johndoe")
	assert.NotEqual(t, res.Session.ID, again.Session.ID)
	assert.Equal(t, 1, f.registry.Len())
}
