package schedule

import (
	"sync"
	"time"

	"github.com/trezcool/classroom/core"
)

// Deadline runs an action once, `timeout` after the last Reset.
type Deadline struct {
	sched   *Scheduler
	timeout time.Duration
	fn      Action

	mu     sync.Mutex
	handle *Handle
	at     time.Time
}

// NewDeadline returns a disarmed deadline.
func (s *Scheduler) NewDeadline(timeout time.Duration, fn Action) (*Deadline, error) {
	if err := validateBounds(timeout, timeout); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, core.NewConfigurationError("callback", "is required")
	}
	return &Deadline{sched: s, timeout: timeout, fn: fn}, nil
}

// Reset (re)arms the deadline relative to now.
func (dl *Deadline) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.handle.Cancel()
	dl.handle = dl.sched.schedule(dl.timeout, dl.timeout, false, dl.fn)
	dl.at = dl.sched.clock.Now().Add(dl.timeout)
}

// Stop disarms the deadline. Idempotent.
func (dl *Deadline) Stop() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.handle.Cancel()
	dl.handle = nil
	dl.at = time.Time{}
}

// Expiry returns when the deadline fires, or the zero time when disarmed.
func (dl *Deadline) Expiry() time.Time {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if !dl.handle.Active() {
		return time.Time{}
	}
	return dl.at
}

func (dl *Deadline) Timeout() time.Duration { return dl.timeout }
