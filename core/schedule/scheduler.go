// Package schedule runs background actions on jittered intervals and single-shot deadlines.
//
// Every Handle is owned by the component that started it. Cancelling a handle prevents
// any invocation that has not started yet; cancelling twice, or cancelling a handle that
// already fired, is a no-op.
package schedule

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
)

// Action is the work run on every tick. A returned error is logged and does not stop the schedule.
type Action func() error

// Jitter is the random source used to draw delays. *rand.Rand satisfies it.
type Jitter interface {
	Int63n(n int64) int64
}

type Scheduler struct {
	name   string
	clock  clockwork.Clock
	logger core.Logger

	mu  *sync.Mutex // guards rnd, shared with named children
	rnd Jitter
}

type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = clock }
}

func WithJitter(rnd Jitter) Option {
	return func(s *Scheduler) { s.rnd = rnd }
}

func WithLogger(logger core.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		name:   "schedule",
		clock:  clockwork.NewRealClock(),
		logger: core.NopLogger,
		mu:     new(sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.clock.Now().UnixNano()))
	}
	return s
}

// Named returns a scheduler sharing the clock, random source and logger, whose logs carry `name`.
func (s *Scheduler) Named(name string) *Scheduler {
	return &Scheduler{
		name:   name,
		clock:  s.clock,
		logger: s.logger,
		mu:     s.mu,
		rnd:    s.rnd,
	}
}

func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Start invokes fn after a uniformly random delay in [min, max], then again after a freshly
// drawn delay each time, until the returned handle is cancelled.
func (s *Scheduler) Start(min, max time.Duration, fn Action) (*Handle, error) {
	if err := validateBounds(min, max); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, core.NewConfigurationError("callback", "is required")
	}
	return s.schedule(min, max, true, fn), nil
}

// Every is Start with a fixed interval.
func (s *Scheduler) Every(interval time.Duration, fn Action) (*Handle, error) {
	return s.Start(interval, interval, fn)
}

// After invokes fn once after d.
func (s *Scheduler) After(d time.Duration, fn Action) (*Handle, error) {
	if d <= 0 {
		return nil, core.NewConfigurationError("delay", "must be positive")
	}
	if fn == nil {
		return nil, core.NewConfigurationError("callback", "is required")
	}
	return s.schedule(d, d, false, fn), nil
}

// Cancel is h.Cancel; nil handles are ignored.
func (s *Scheduler) Cancel(h *Handle) {
	h.Cancel()
}

func validateBounds(min, max time.Duration) error {
	if min <= 0 {
		return core.NewConfigurationError("minInterval", "must be positive")
	}
	if max < min {
		return core.NewConfigurationError("maxInterval", "must not be less than minInterval")
	}
	return nil
}

// nextDelay draws a delay uniformly from [min, max].
func (s *Scheduler) nextDelay(min, max time.Duration) time.Duration {
	if max == min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.rnd.Int63n(int64(max-min)+1))
}

func (s *Scheduler) schedule(min, max time.Duration, repeat bool, fn Action) *Handle {
	h := &Handle{stop: make(chan struct{})}
	h.timer = s.clock.NewTimer(s.nextDelay(min, max))
	go s.run(h, min, max, repeat, fn)
	return h
}

func (s *Scheduler) run(h *Handle, min, max time.Duration, repeat bool, fn Action) {
	for {
		h.mu.Lock()
		timer := h.timer
		h.mu.Unlock()

		select {
		case <-h.stop:
			return
		case <-timer.Chan():
		}

		// the liveness check and the start of the invocation are ordered against Cancel
		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return
		}
		if !repeat {
			h.fired = true
		}
		h.mu.Unlock()

		s.invoke(fn)

		if !repeat {
			return
		}

		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return
		}
		h.timer = s.clock.NewTimer(s.nextDelay(min, max))
		h.mu.Unlock()
	}
}

func (s *Scheduler) invoke(fn Action) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("panic: %v", r)
			s.logger.Error(fmt.Sprintf("%s: scheduled action panicked: %v", s.name, r), err)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Error(fmt.Sprintf("%s: scheduled action failed: %v", s.name, err), err)
	}
}

// Handle controls one scheduled action.
type Handle struct {
	mu        sync.Mutex
	timer     clockwork.Timer
	stop      chan struct{}
	cancelled bool
	fired     bool
}

// Cancel stops the action. Safe to call several times, from any goroutine, including from the action itself.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled {
		return
	}
	h.cancelled = true
	h.timer.Stop()
	close(h.stop)
}

// Active reports whether the action may still run.
func (h *Handle) Active() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled && !h.fired
}
