package overlay

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/dom"
	"github.com/trezcool/classroom/core/schedule"
)

type Config struct {
	MinInterval   time.Duration // recompute cadence lower bound
	MaxInterval   time.Duration
	InitialDelay  time.Duration // first placement, after the container is laid out
	StartDelay    time.Duration // start of the jittered recompute
	WatchInterval time.Duration // attachment check cadence
	Margin        float64
}

func DefaultConfig() Config {
	return Config{
		MinInterval:   5 * time.Second,
		MaxInterval:   10 * time.Second,
		InitialDelay:  100 * time.Millisecond,
		StartDelay:    time.Second,
		WatchInterval: 2 * time.Second,
		Margin:        DefaultMargin,
	}
}

func ConfigFrom(conf core.OverlayConfig) Config {
	return Config{
		MinInterval:   conf.MinInterval,
		MaxInterval:   conf.MaxInterval,
		InitialDelay:  conf.InitialDelay,
		StartDelay:    conf.StartDelay,
		WatchInterval: conf.WatchInterval,
		Margin:        conf.Margin,
	}
}

func (cfg Config) Validate() error {
	switch {
	case cfg.MinInterval <= 0:
		return core.NewConfigurationError("minInterval", "must be positive")
	case cfg.MaxInterval < cfg.MinInterval:
		return core.NewConfigurationError("maxInterval", "must not be less than minInterval")
	case cfg.InitialDelay <= 0:
		return core.NewConfigurationError("initialDelay", "must be positive")
	case cfg.StartDelay <= 0:
		return core.NewConfigurationError("startDelay", "must be positive")
	case cfg.WatchInterval <= 0:
		return core.NewConfigurationError("watchInterval", "must be positive")
	case cfg.Margin < 0:
		return core.NewConfigurationError("margin", "must not be negative")
	}
	return nil
}

type Option func(*Positioner)

func WithConfig(cfg Config) Option {
	return func(p *Positioner) { p.cfg = cfg }
}

func WithScheduler(sched *schedule.Scheduler) Option {
	return func(p *Positioner) { p.sched = sched }
}

// WithWindow sets the target whose resize events trigger an immediate recompute.
func WithWindow(window dom.EventTarget) Option {
	return func(p *Positioner) { p.window = window }
}

// WithFallback sets the last resort container, typically the document body.
func WithFallback(el dom.Element) Option {
	return func(p *Positioner) { p.fallback = el }
}

func WithRandom(rnd Random) Option {
	return func(p *Positioner) { p.rnd = rnd }
}

func WithLogger(logger core.Logger) Option {
	return func(p *Positioner) { p.logger = logger }
}

// Positioner moves one overlay node at a time. Mount and Unmount may be called from any goroutine.
type Positioner struct {
	cfg      Config
	sched    *schedule.Scheduler
	window   dom.EventTarget
	fallback dom.Element
	rnd      Random
	logger   core.Logger

	mu            sync.Mutex
	mounted       bool
	gen           uint64 // bumped on every Mount and Unmount, stale callbacks compare against it
	node          dom.Element
	container     dom.Element
	parent        dom.Element // container parent at mount time
	host          dom.Element // element currently holding the node
	initial       *schedule.Handle
	start         *schedule.Handle
	recompute     *schedule.Handle
	watchdog      *schedule.Handle
	resize        dom.Registration
	last          Position
	placements    int
	reattachments int
}

func New(opts ...Option) (*Positioner, error) {
	p := &Positioner{
		cfg:    DefaultConfig(),
		logger: core.NopLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if p.sched == nil {
		p.sched = schedule.New(schedule.WithLogger(p.logger)).Named("overlay")
	}
	if p.rnd == nil {
		p.rnd = rand.New(rand.NewSource(p.sched.Clock().Now().UnixNano()))
	}
	return p, nil
}

// Mount makes node non-interactive, appends it to container if needed and starts moving it.
// A node already mounted is unmounted first.
func (p *Positioner) Mount(node, container dom.Element) error {
	if node == nil {
		return core.NewConfigurationError("node", "is required")
	}
	if container == nil {
		return core.NewConfigurationError("container", "is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.unmount()
	p.gen++
	gen := p.gen

	node.SetStyle("position", "absolute")
	node.SetStyle("pointer-events", "none")
	node.SetStyle("user-select", "none")
	node.SetAttribute("draggable", "false")
	node.SetAttribute("aria-hidden", "true")
	if node.Parent() != container {
		if err := container.AppendChild(node); err != nil {
			return err
		}
	}

	p.node = node
	p.container = container
	p.parent = container.Parent()
	p.host = container
	p.placements = 0
	p.reattachments = 0

	var err error
	if p.initial, err = p.sched.After(p.cfg.InitialDelay, func() error { return p.place(gen) }); err != nil {
		return err
	}
	if p.start, err = p.sched.After(p.cfg.StartDelay, func() error { return p.startRecompute(gen) }); err != nil {
		p.initial.Cancel()
		return err
	}
	if p.watchdog, err = p.sched.Every(p.cfg.WatchInterval, func() error { return p.checkAttachment(gen) }); err != nil {
		p.initial.Cancel()
		p.start.Cancel()
		return err
	}
	if p.window != nil {
		p.resize = p.window.AddEventListener(dom.EventResize, func(*dom.Event) {
			if err := p.place(gen); err != nil {
				p.logger.Error(fmt.Sprintf("overlay: resize: %v", err), err)
			}
		}, dom.ListenerOptions{})
	}
	p.mounted = true
	return nil
}

// Unmount stops every timer and listener. Idempotent.
func (p *Positioner) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unmount()
}

func (p *Positioner) unmount() {
	if !p.mounted {
		return
	}
	p.initial.Cancel()
	p.start.Cancel()
	p.recompute.Cancel()
	p.watchdog.Cancel()
	if p.resize != nil {
		p.resize.Remove()
	}

	p.gen++
	p.mounted = false
	p.initial, p.start, p.recompute, p.watchdog, p.resize = nil, nil, nil, nil, nil
	p.node, p.container, p.parent, p.host = nil, nil, nil, nil
}

// current reports whether a callback armed by the mount of generation gen may still act.
func (p *Positioner) current(gen uint64) bool {
	return p.mounted && p.gen == gen
}

func (p *Positioner) startRecompute(gen uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.current(gen) {
		return nil
	}
	h, err := p.sched.Start(p.cfg.MinInterval, p.cfg.MaxInterval, func() error { return p.place(gen) })
	if err != nil {
		return err
	}
	p.recompute.Cancel()
	p.recompute = h
	return nil
}

func (p *Positioner) place(gen uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.current(gen) {
		return nil
	}
	p.placeLocked()
	return nil
}

// placeLocked measures the host and the node, then writes the new position.
func (p *Positioner) placeLocked() {
	c := p.host.BoundingRect()
	o := p.node.BoundingRect()
	pos := ComputeRandomPosition(c.Width, c.Height, o.Width, o.Height, p.cfg.Margin, p.rnd)

	p.node.SetPosition(pos.Top, pos.Left)
	p.node.SetStyle("top", px(pos.Top))
	p.node.SetStyle("left", px(pos.Left))
	p.last = pos
	p.placements++
}

// checkAttachment puts the node back into the first connected candidate among
// the container, its parent at mount time and the fallback.
func (p *Positioner) checkAttachment(gen uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.current(gen) {
		return nil
	}

	var target dom.Element
	for _, el := range []dom.Element{p.container, p.parent, p.fallback} {
		if el != nil && el.IsConnected() {
			target = el
			break
		}
	}
	if target == nil {
		p.logger.Debug("overlay: no connected container to re-attach to")
		return nil
	}
	if p.node.Parent() == target {
		return nil
	}

	if err := target.AppendChild(p.node); err != nil {
		return err
	}
	p.host = target
	p.reattachments++
	p.logger.Info(fmt.Sprintf("overlay: re-attached node to <%s>", target.Tag()))
	p.placeLocked()
	return nil
}

func (p *Positioner) Mounted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounted
}

// Position returns the last written position and whether one was written since Mount.
func (p *Positioner) Position() (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.placements > 0
}

func (p *Positioner) Placements() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placements
}

func (p *Positioner) Reattachments() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reattachments
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "px"
}
