// Package dom models the small part of a browser document the session tracker and the overlay
// positioner rely on: event targets with capture/bubble dispatch, element geometry and styles.
//
// The server keeps one in-memory Document per tracked session and per video player.
package dom

// Event types used across the platform.
const (
	EventPointerDown      = "pointerdown"
	EventPointerMove      = "pointermove"
	EventKeyPress         = "keypress"
	EventScroll           = "scroll"
	EventTouchStart       = "touchstart"
	EventClick            = "click"
	EventResize           = "resize"
	EventFullscreenChange = "fullscreenchange"
)

// Dispatch phases.
const (
	PhaseNone = iota
	PhaseCapturing
	PhaseAtTarget
	PhaseBubbling
)

type (
	Listener func(e *Event)

	ListenerOptions struct {
		Capture bool
	}

	// Registration removes the listener it was returned for. Remove is idempotent.
	Registration interface {
		Remove()
	}

	EventTarget interface {
		AddEventListener(typ string, fn Listener, opts ListenerOptions) Registration
	}

	Rect struct {
		Top    float64
		Left   float64
		Width  float64
		Height float64
	}

	// Element is a node of the document tree.
	Element interface {
		EventTarget

		Tag() string
		BoundingRect() Rect
		// Parent returns nil for detached elements and for the document root.
		Parent() Element
		AppendChild(child Element) error
		RemoveChild(child Element) error
		Contains(other Element) bool
		IsConnected() bool

		SetStyle(prop, value string)
		Style(prop string) string
		SetAttribute(name, value string)
		Attribute(name string) string
		SetText(text string)
		Text() string
		SetPosition(top, left float64)
	}
)

type Event struct {
	Type          string
	Target        EventTarget
	CurrentTarget EventTarget
	Phase         int
	Detail        interface{}

	stopped bool
}

// StopPropagation prevents the event from reaching the targets after the current one.
// Listeners of the current target still run.
func (e *Event) StopPropagation() { e.stopped = true }

func (e *Event) PropagationStopped() bool { return e.stopped }

type noopRegistration struct{}

func (noopRegistration) Remove() {}
