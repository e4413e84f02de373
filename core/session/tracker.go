// Package session tracks the lifecycle of logged in sessions: inactivity and maximum duration
// expiry driven by the interaction events of a document.
package session

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/dom"
	"github.com/trezcool/classroom/core/schedule"
)

type Reason string

const (
	ReasonInactivity  Reason = "inactivity"
	ReasonMaxDuration Reason = "maxDuration"
)

type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// TrackedEvents are the document events counted as user activity.
var TrackedEvents = []string{
	dom.EventPointerDown,
	dom.EventPointerMove,
	dom.EventKeyPress,
	dom.EventScroll,
	dom.EventTouchStart,
	dom.EventClick,
}

// IsTrackedEvent reports whether typ counts as user activity.
func IsTrackedEvent(typ string) bool {
	for _, t := range TrackedEvents {
		if t == typ {
			return true
		}
	}
	return false
}

// Snapshot is a copy of the tracker state.
type Snapshot struct {
	State          State
	StartedAt      time.Time
	LastActivityAt time.Time
	Config         Config
	Expired        []Reason
}

type Option func(*Tracker)

func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

func WithLogger(logger core.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithScheduler sets the scheduler running the expiry checks. Its clock replaces the tracker clock.
func WithScheduler(sched *schedule.Scheduler) Option {
	return func(t *Tracker) { t.sched = sched }
}

// WithCheckInterval sets how often the maximum duration is checked.
func WithCheckInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.checkInterval = d
		}
	}
}

// Tracker expires one session at a time. It is owned by whoever created it and is safe for concurrent use.
type Tracker struct {
	target        dom.EventTarget
	clock         clockwork.Clock
	logger        core.Logger
	sched         *schedule.Scheduler
	checkInterval time.Duration

	mu             sync.Mutex
	state          State
	gen            uint64 // bumped on every Initialize and Teardown; stale checks compare it
	cfg            Config
	startedAt      time.Time
	lastActivityAt time.Time
	onExpire       func(Reason)
	inactivity     *schedule.Deadline
	poller         *schedule.Handle
	regs           []dom.Registration
	fired          map[Reason]bool
	expired        []Reason
}

// NewTracker returns an inactive tracker listening on target once initialized.
func NewTracker(target dom.EventTarget, opts ...Option) *Tracker {
	t := &Tracker{
		target:        target,
		clock:         clockwork.NewRealClock(),
		logger:        core.NopLogger,
		checkInterval: DefaultCheckInterval,
		cfg:           DefaultConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.sched == nil {
		t.sched = schedule.New(
			schedule.WithClock(t.clock),
			schedule.WithLogger(t.logger),
		).Named("session")
	} else {
		t.clock = t.sched.Clock()
	}
	return t
}

// Initialize starts a new session. A session still active on t is torn down first.
func (t *Tracker) Initialize(cfg Config, onExpire func(Reason)) error {
	merged, err := cfg.withDefaults()
	if err != nil {
		return err
	}
	if onExpire == nil {
		return core.NewConfigurationError("onExpire", "is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardown()
	t.gen++
	gen := t.gen

	inactivity, err := t.sched.NewDeadline(merged.InactivityTimeout, func() error {
		t.checkInactivity(gen)
		return nil
	})
	if err != nil {
		return err
	}
	poller, err := t.sched.Every(t.checkInterval, func() error {
		t.checkMaxDuration(gen)
		return nil
	})
	if err != nil {
		return err
	}

	now := t.clock.Now()
	t.cfg = merged
	t.startedAt = now
	t.lastActivityAt = now
	t.onExpire = onExpire
	t.fired = make(map[Reason]bool, 2)
	t.expired = nil
	t.inactivity = inactivity
	t.poller = poller
	t.inactivity.Reset()

	for _, typ := range TrackedEvents {
		reg := t.target.AddEventListener(typ, t.handleEvent, dom.ListenerOptions{Capture: true})
		t.regs = append(t.regs, reg)
	}
	t.state = StateActive
	return nil
}

func (t *Tracker) handleEvent(*dom.Event) {
	t.RecordActivity()
}

// RecordActivity pushes the inactivity deadline back. It is a no-op while inactive.
func (t *Tracker) RecordActivity() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateActive {
		return
	}
	t.lastActivityAt = t.clock.Now()
	if !t.fired[ReasonInactivity] {
		t.inactivity.Reset()
	}
}

// Teardown stops the timers, removes the listeners and clears the timestamps. Idempotent.
func (t *Tracker) Teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardown()
}

// teardown is Teardown without locking.
func (t *Tracker) teardown() {
	if t.state != StateActive {
		return
	}
	t.inactivity.Stop()
	t.poller.Cancel()
	for _, reg := range t.regs {
		reg.Remove()
	}

	t.gen++
	t.state = StateInactive
	t.regs = nil
	t.inactivity = nil
	t.poller = nil
	t.onExpire = nil
	t.startedAt = time.Time{}
	t.lastActivityAt = time.Time{}
}

func (t *Tracker) checkInactivity(gen uint64) {
	t.mu.Lock()
	if t.gen != gen || t.state != StateActive || t.fired[ReasonInactivity] {
		t.mu.Unlock()
		return
	}
	// activity recorded while this check was waiting re-armed the deadline
	if t.clock.Since(t.lastActivityAt) < t.cfg.InactivityTimeout {
		t.mu.Unlock()
		return
	}
	cb := t.markExpired(ReasonInactivity)
	t.mu.Unlock()

	t.notify(cb, ReasonInactivity)
}

func (t *Tracker) checkMaxDuration(gen uint64) {
	t.mu.Lock()
	if t.gen != gen || t.state != StateActive || t.fired[ReasonMaxDuration] {
		t.mu.Unlock()
		return
	}
	if t.clock.Since(t.startedAt) < t.cfg.MaxSessionDuration {
		t.mu.Unlock()
		return
	}
	t.poller.Cancel()
	cb := t.markExpired(ReasonMaxDuration)
	t.mu.Unlock()

	t.notify(cb, ReasonMaxDuration)
}

func (t *Tracker) markExpired(reason Reason) func(Reason) {
	t.fired[reason] = true
	t.expired = append(t.expired, reason)
	return t.onExpire
}

func (t *Tracker) notify(cb func(Reason), reason Reason) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error(fmt.Sprintf("session: onExpire(%s) panicked: %v", reason, r))
		}
	}()
	cb(reason)
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		State:          t.state,
		StartedAt:      t.startedAt,
		LastActivityAt: t.lastActivityAt,
		Config:         t.cfg,
		Expired:        append([]Reason(nil), t.expired...),
	}
}

// SessionDurationMinutes returns the whole minutes elapsed since the session started, 0 while inactive.
func (t *Tracker) SessionDurationMinutes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive {
		return 0
	}
	return int(t.clock.Since(t.startedAt) / time.Minute)
}

// MinutesUntilInactivityTimeout returns the configured inactivity limit in minutes.
// It is not a countdown: the value does not change with activity. Snapshot has the last activity time.
func (t *Tracker) MinutesUntilInactivityTimeout() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.cfg.InactivityTimeout / time.Minute)
}

// HoursUntilMaxSession returns max(0, limit - elapsed) in hours.
func (t *Tracker) HoursUntilMaxSession() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	limit := t.cfg.MaxSessionDuration.Hours()
	if t.state != StateActive {
		return limit
	}
	return math.Max(0, limit-t.clock.Since(t.startedAt).Hours())
}
