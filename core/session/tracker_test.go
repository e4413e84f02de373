package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/dom"
	"github.com/trezcool/classroom/tests"
)

const waitTimeout = time.Second

type expiry struct {
	reason Reason
	at     time.Time
}

type trackerFixture struct {
	clock   clockwork.FakeClock
	doc     *dom.Document
	tracker *Tracker
	start   time.Time
	expired chan expiry
}

func newTrackerFixture(t *testing.T, cfg Config, opts ...Option) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		clock:   clockwork.NewFakeClock(),
		doc:     dom.NewDocument(1280, 720),
		expired: make(chan expiry, 8),
	}
	f.tracker = NewTracker(f.doc, append([]Option{WithClock(f.clock)}, opts...)...)
	f.start = f.clock.Now()
	err := f.tracker.Initialize(cfg, func(r Reason) {
		f.expired <- expiry{reason: r, at: f.clock.Now()}
	})
	require.NoError(t, err)
	t.Cleanup(f.tracker.Teardown)
	return f
}

// advance moves the clock by d once `waiters` timers are armed.
func (f *trackerFixture) advance(waiters int, d time.Duration) {
	f.clock.BlockUntil(waiters)
	f.clock.Advance(d)
}

func (f *trackerFixture) click() {
	f.doc.Body().Dispatch(dom.EventClick)
}

func (f *trackerFixture) waitExpiry(t *testing.T) expiry {
	t.Helper()
	select {
	case e := <-f.expired:
		return e
	case <-time.After(waitTimeout):
		t.Fatal("onExpire was not called")
		return expiry{}
	}
}

func (f *trackerFixture) assertNoExpiry(t *testing.T) {
	t.Helper()
	select {
	case e := <-f.expired:
		t.Fatalf("unexpected onExpire(%s) at %v", e.reason, e.at.Sub(f.start))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTracker_Initialize_config(t *testing.T) {
	doc := dom.NewDocument(800, 600)
	tr := NewTracker(doc, WithClock(clockwork.NewFakeClock()))
	noop := func(Reason) {}

	tests := []struct {
		name    string
		cfg     Config
		cb      func(Reason)
		wantErr bool
		want    Config
	}{
		{name: "defaults", cb: noop, want: DefaultConfig()},
		{
			name: "partial merge",
			cfg:  Config{InactivityTimeout: time.Minute},
			cb:   noop,
			want: Config{SessionTimeout: 30 * time.Minute, InactivityTimeout: time.Minute, MaxSessionDuration: 8 * time.Hour},
		},
		{name: "negative inactivity", cfg: Config{InactivityTimeout: -time.Minute}, cb: noop, wantErr: true},
		{name: "negative max duration", cfg: Config{MaxSessionDuration: -time.Hour}, cb: noop, wantErr: true},
		{name: "negative session timeout", cfg: Config{SessionTimeout: -time.Second}, cb: noop, wantErr: true},
		{name: "missing onExpire", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer tr.Teardown()

			err := tr.Initialize(tt.cfg, tt.cb)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfigurationError(err))
				assert.Equal(t, StateInactive, tr.State())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateActive, tr.State())
			assert.Equal(t, tt.want, tr.Snapshot().Config)
		})
	}
}

func TestTracker_inactivityAfterLastActivity(t *testing.T) {
	f := newTrackerFixture(t, Config{InactivityTimeout: 15 * time.Minute})

	for i := 0; i < 14; i++ {
		f.advance(2, time.Minute)
	}
	f.click()

	// 15 minutes after the first activity nothing happens
	for i := 0; i < 14; i++ {
		f.advance(2, time.Minute)
	}
	f.assertNoExpiry(t)

	f.advance(2, time.Minute)
	e := f.waitExpiry(t)
	assert.Equal(t, ReasonInactivity, e.reason)
	assert.Equal(t, 29*time.Minute, e.at.Sub(f.start))

	snap := f.tracker.Snapshot()
	assert.Equal(t, StateActive, snap.State, "expiry does not deactivate the tracker")
	assert.Equal(t, f.start.Add(14*time.Minute), snap.LastActivityAt)
	assert.Equal(t, f.start, snap.StartedAt)
	assert.Equal(t, []Reason{ReasonInactivity}, snap.Expired)

	// inactivity fires at most once per session
	for i := 0; i < 30; i++ {
		f.advance(1, time.Minute)
	}
	f.assertNoExpiry(t)
}

func TestTracker_nestedStopPropagationStillCounts(t *testing.T) {
	f := newTrackerFixture(t, Config{InactivityTimeout: 15 * time.Minute})

	btn := f.doc.CreateElement("button")
	require.NoError(t, f.doc.Body().AppendChild(btn))
	btn.AddEventListener(dom.EventKeyPress, func(e *dom.Event) { e.StopPropagation() }, dom.ListenerOptions{Capture: true})

	f.advance(2, 10*time.Minute)
	btn.Dispatch(dom.EventKeyPress)

	assert.Equal(t, f.start.Add(10*time.Minute), f.tracker.Snapshot().LastActivityAt)
}

func TestTracker_maxDurationDespiteActivity(t *testing.T) {
	f := newTrackerFixture(t, Config{})

	waiters := 2
	for minute := 1; minute <= 9*60; minute++ {
		f.advance(waiters, time.Minute)
		if minute == 8*60 {
			e := f.waitExpiry(t)
			assert.Equal(t, ReasonMaxDuration, e.reason)
			assert.Equal(t, 8*time.Hour, e.at.Sub(f.start))
			waiters = 1 // the max-duration checker stopped itself
		}
		f.click()
	}
	f.assertNoExpiry(t)
	assert.Equal(t, []Reason{ReasonMaxDuration}, f.tracker.Snapshot().Expired)
}

func TestTracker_Teardown(t *testing.T) {
	f := newTrackerFixture(t, Config{InactivityTimeout: time.Minute, MaxSessionDuration: time.Hour})
	assert.Equal(t, len(TrackedEvents), f.doc.ListenerCount(""))

	f.tracker.Teardown()
	f.tracker.Teardown()

	assert.Equal(t, StateInactive, f.tracker.State())
	assert.Zero(t, f.doc.ListenerCount(""))
	snap := f.tracker.Snapshot()
	assert.True(t, snap.StartedAt.IsZero())
	assert.True(t, snap.LastActivityAt.IsZero())

	f.click()
	f.tracker.RecordActivity()
	f.clock.Advance(10 * time.Hour)
	f.assertNoExpiry(t)
}

func TestTracker_inactivityThenTeardownPreventsMaxDuration(t *testing.T) {
	f := newTrackerFixture(t, Config{InactivityTimeout: time.Minute, MaxSessionDuration: time.Hour})

	f.advance(2, 61*time.Second)
	e := f.waitExpiry(t)
	assert.Equal(t, ReasonInactivity, e.reason)

	f.tracker.Teardown()
	f.clock.Advance(2 * time.Hour)
	f.assertNoExpiry(t)
}

func TestTracker_reinitializeTearsDownPreviousSession(t *testing.T) {
	f := newTrackerFixture(t, Config{InactivityTimeout: time.Minute})

	f.advance(2, 30*time.Second)
	second := make(chan Reason, 1)
	require.NoError(t, f.tracker.Initialize(Config{InactivityTimeout: 15 * time.Minute}, func(r Reason) { second <- r }))

	assert.Equal(t, len(TrackedEvents), f.doc.ListenerCount(""), "listeners must not pile up")
	assert.Equal(t, f.start.Add(30*time.Second), f.tracker.Snapshot().StartedAt)

	// the first session's one minute deadline is gone
	f.advance(2, 2*time.Minute)
	f.assertNoExpiry(t)
	select {
	case r := <-second:
		t.Fatalf("unexpected onExpire(%s)", r)
	default:
	}
}

func TestTracker_queries(t *testing.T) {
	f := newTrackerFixture(t, Config{InactivityTimeout: 3 * time.Hour, MaxSessionDuration: 8 * time.Hour})

	f.advance(2, 90*time.Minute)
	f.click()

	assert.Equal(t, 90, f.tracker.SessionDurationMinutes())
	assert.Equal(t, 180, f.tracker.MinutesUntilInactivityTimeout(), "returns the configured limit")
	assert.InDelta(t, 6.5, f.tracker.HoursUntilMaxSession(), 1e-9)

	f.advance(2, 10*time.Hour)
	assert.Zero(t, f.tracker.HoursUntilMaxSession())

	f.tracker.Teardown()
	assert.Zero(t, f.tracker.SessionDurationMinutes())
	assert.Equal(t, 180, f.tracker.MinutesUntilInactivityTimeout())
}

func TestTracker_onExpirePanicIsLogged(t *testing.T) {
	logger := new(testutil.Logger)
	clock := clockwork.NewFakeClock()
	tr := NewTracker(dom.NewDocument(800, 600), WithClock(clock), WithLogger(logger))
	defer tr.Teardown()

	require.NoError(t, tr.Initialize(Config{InactivityTimeout: time.Minute}, func(Reason) { panic("boom") }))
	clock.BlockUntil(2)
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return len(logger.Entries("error")) == 1
	}, waitTimeout, 10*time.Millisecond)
	assert.Equal(t, StateActive, tr.State())
}
