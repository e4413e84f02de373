package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/dom"
	"github.com/trezcool/classroom/core/schedule"
)

const (
	viewportWidth  = 1280
	viewportHeight = 720

	// expired sessions answer with their reason for this long, then are forgotten
	expiredRetention = time.Hour
	sweepInterval    = 5 * time.Minute
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrUnknownEvent = errors.New("unknown activity event")
)

// ExpiredError is returned for sessions that expired and were not ended yet.
type ExpiredError struct {
	Reason Reason
}

func (err *ExpiredError) Error() string {
	return fmt.Sprintf("session expired: %s", err.Reason)
}

// IsExpired returns the expiry reason of err, if it is an *ExpiredError.
func IsExpired(err error) (Reason, bool) {
	if exp, ok := errors.Cause(err).(*ExpiredError); ok {
		return exp.Reason, true
	}
	return "", false
}

// Session is the public view of a tracked session.
type Session struct {
	ID                            string    `json:"id"`
	UserID                        string    `json:"user_id"`
	StartedAt                     time.Time `json:"started_at"`
	LastActivityAt                time.Time `json:"last_activity_at"`
	DurationMinutes               int       `json:"duration_minutes"`
	MinutesUntilInactivityTimeout int       `json:"minutes_until_inactivity_timeout"`
	HoursUntilMaxSession          float64   `json:"hours_until_max_session"`
	ExpiredReason                 Reason    `json:"expired_reason,omitempty"`
}

// entry is a live session. Once expired it is replaced by a tombstone holding no document nor tracker.
type entry struct {
	id        string
	userID    string
	doc       *dom.Document
	tracker   *Tracker
	expired   Reason
	expiredAt time.Time
}

func (e *entry) session(expired Reason) Session {
	snap := e.tracker.Snapshot()
	return Session{
		ID:                            e.id,
		UserID:                        e.userID,
		StartedAt:                     snap.StartedAt,
		LastActivityAt:                snap.LastActivityAt,
		DurationMinutes:               e.tracker.SessionDurationMinutes(),
		MinutesUntilInactivityTimeout: e.tracker.MinutesUntilInactivityTimeout(),
		HoursUntilMaxSession:          e.tracker.HoursUntilMaxSession(),
		ExpiredReason:                 expired,
	}
}

// Registry owns one Tracker and one virtual document per logged in session.
type Registry struct {
	cfg    Config
	repo   EventRepository
	logger core.Logger
	clock  clockwork.Clock
	sched  *schedule.Scheduler
	opts   []Option

	mu       sync.RWMutex
	sessions map[string]*entry
	endHooks []func(sessionID string)
	sweeper  *schedule.Handle // armed while tombstones exist
}

// NewRegistry validates cfg and returns an empty registry. opts are applied to every tracker.
func NewRegistry(cfg Config, repo EventRepository, logger core.Logger, opts ...Option) (*Registry, error) {
	merged, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	opts = append([]Option{WithLogger(logger)}, opts...)
	// a detached tracker resolves the options to the clock every tracker will share
	resolved := NewTracker(nil, opts...)

	return &Registry{
		cfg:      merged,
		repo:     repo,
		logger:   logger,
		clock:    resolved.clock,
		sched:    resolved.sched,
		opts:     opts,
		sessions: make(map[string]*entry),
	}, nil
}

// OnEnd registers a hook run after a session ends or expires.
func (r *Registry) OnEnd(hook func(sessionID string)) {
	r.mu.Lock()
	r.endHooks = append(r.endHooks, hook)
	r.mu.Unlock()
}

// Start opens a tracked session for userID. Expired sessions left over by that user are dropped.
func (r *Registry) Start(ctx context.Context, userID string) (Session, error) {
	e := &entry{
		id:     uuid.New().String(),
		userID: userID,
		doc:    dom.NewDocument(viewportWidth, viewportHeight),
	}
	e.tracker = NewTracker(e.doc, r.opts...)

	// registered before the tracker runs so that no expiry can miss it
	r.mu.Lock()
	for id, old := range r.sessions {
		if old.userID == userID && old.expired != "" {
			delete(r.sessions, id)
		}
	}
	r.sessions[e.id] = e
	r.mu.Unlock()

	if err := e.tracker.Initialize(r.cfg, func(reason Reason) { r.expire(e.id, reason) }); err != nil {
		r.forget(e.id)
		return Session{}, errors.Wrap(err, "initializing tracker")
	}
	if _, err := r.record(ctx, e, EventStarted, ""); err != nil {
		e.tracker.Teardown()
		r.forget(e.id)
		return Session{}, err
	}
	return e.session(""), nil
}

func (r *Registry) forget(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired != "" {
		return nil, &ExpiredError{Reason: e.expired}
	}
	return e, nil
}

// Lookup returns a live session, ErrNotFound or an *ExpiredError.
func (r *Registry) Lookup(id string) (Session, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Session{}, err
	}
	return e.session(""), nil
}

// Touch counts a request made within the session as activity.
func (r *Registry) Touch(id string) error {
	return r.Dispatch(id, dom.EventClick)
}

// Dispatch delivers a client reported interaction event to the session document.
func (r *Registry) Dispatch(id, typ string) error {
	if !IsTrackedEvent(typ) {
		return ErrUnknownEvent
	}
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.doc.Body().Dispatch(typ)
	return nil
}

// End tears the session down. Ending an expired session only forgets it.
func (r *Registry) End(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	var expired Reason
	if ok {
		expired = e.expired
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if expired != "" {
		return nil
	}

	e.tracker.Teardown()
	r.runEndHooks(id)
	_, err := r.record(ctx, e, EventEnded, "")
	return err
}

func (r *Registry) expire(id string, reason Reason) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.expired != "" {
		r.mu.Unlock()
		return
	}
	r.sessions[id] = &entry{id: e.id, userID: e.userID, expired: reason, expiredAt: r.clock.Now()}
	r.armSweeper()
	r.mu.Unlock()

	e.tracker.Teardown()
	r.runEndHooks(id)
	if _, err := r.record(context.Background(), e, EventExpired, string(reason)); err != nil {
		r.logger.Error(fmt.Sprintf("session.expire(%s): %v", id, err), err)
	}
}

// armSweeper starts evicting tombstones. r.mu must be held.
func (r *Registry) armSweeper() {
	if r.sweeper != nil {
		return
	}
	h, err := r.sched.Every(sweepInterval, r.sweep)
	if err != nil {
		r.logger.Error(fmt.Sprintf("session.sweep: %v", err), err)
		return
	}
	r.sweeper = h
}

// sweep forgets the sessions expired for longer than expiredRetention and stops once none is left.
func (r *Registry) sweep() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	left := 0
	for id, e := range r.sessions {
		if e.expired == "" {
			continue
		}
		if now.Sub(e.expiredAt) >= expiredRetention {
			delete(r.sessions, id)
			continue
		}
		left++
	}
	if left == 0 {
		r.sweeper.Cancel()
		r.sweeper = nil
	}
	return nil
}

func (r *Registry) runEndHooks(id string) {
	r.mu.RLock()
	hooks := append([]func(string){}, r.endHooks...)
	r.mu.RUnlock()

	for _, hook := range hooks {
		hook(id)
	}
}

func (r *Registry) record(ctx context.Context, e *entry, kind EventKind, reason string) (Event, error) {
	ev, err := r.repo.CreateEvent(ctx, Event{
		ID:         uuid.New().String(),
		SessionID:  e.id,
		UserID:     e.userID,
		Kind:       kind,
		Reason:     reason,
		OccurredAt: r.clock.Now().UTC(),
	})
	return ev, errors.Wrapf(err, "recording %s event", kind)
}

// Events returns the persisted events of a session, oldest first.
func (r *Registry) Events(ctx context.Context, sessionID string) ([]Event, error) {
	return r.repo.QueryEvents(ctx, EventFilter{SessionID: sessionID})
}

// Len returns the number of tracked sessions, recently expired ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close ends every live session.
func (r *Registry) Close(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if err := r.End(ctx, id); err != nil && err != ErrNotFound {
			r.logger.Error(fmt.Sprintf("session.Close(%s): %v", id, err), err)
		}
	}

	r.mu.Lock()
	r.sweeper.Cancel()
	r.sweeper = nil
	r.mu.Unlock()
}
