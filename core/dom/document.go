package dom

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrForeignNode = errors.New("dom: node belongs to another document")
	ErrHierarchy   = errors.New("dom: node cannot be inserted under itself")
	ErrNotChild    = errors.New("dom: node is not a child of this element")
)

type listener struct {
	typ     string
	fn      Listener
	capture bool
	owner   *eventTarget
}

func (l *listener) Remove() {
	t := l.owner
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, x := range t.listeners {
		if x == l {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

type eventTarget struct {
	mu        *sync.RWMutex // the owning document lock
	listeners []*listener
}

func (t *eventTarget) AddEventListener(typ string, fn Listener, opts ListenerOptions) Registration {
	if fn == nil {
		return noopRegistration{}
	}
	l := &listener{typ: typ, fn: fn, capture: opts.Capture, owner: t}

	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
	return l
}

// ListenerCount counts the listeners registered for typ, or all of them when typ is empty.
func (t *eventTarget) ListenerCount(typ string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var n int
	for _, l := range t.listeners {
		if typ == "" || l.typ == typ {
			n++
		}
	}
	return n
}

// snapshot returns the listeners to run for one phase. The caller holds the lock.
func (t *eventTarget) snapshot(typ string, phase int) []Listener {
	var fns []Listener
	for _, l := range t.listeners {
		if l.typ != typ {
			continue
		}
		switch {
		case phase == PhaseAtTarget,
			phase == PhaseCapturing && l.capture,
			phase == PhaseBubbling && !l.capture:
			fns = append(fns, l.fn)
		}
	}
	return fns
}

// Document is an in-memory document tree. Safe for concurrent use.
type Document struct {
	mu     sync.RWMutex
	root   *Node
	body   *Node
	window *Window
}

func NewDocument(width, height float64) *Document {
	doc := new(Document)
	doc.root = doc.newNode("#document")
	doc.body = doc.newNode("body")
	doc.body.parent = doc.root
	doc.root.children = []*Node{doc.body}
	doc.window = &Window{eventTarget: eventTarget{mu: &doc.mu}, width: width, height: height}
	doc.root.width, doc.root.height = width, height
	doc.body.width, doc.body.height = width, height
	return doc
}

func (d *Document) newNode(tag string) *Node {
	return &Node{
		eventTarget: eventTarget{mu: &d.mu},
		doc:         d,
		tag:         tag,
		style:       make(map[string]string),
		attrs:       make(map[string]string),
	}
}

// Root returns the document node; listeners added to it see every event dispatched in the tree.
func (d *Document) Root() *Node { return d.root }

func (d *Document) Body() *Node { return d.body }

func (d *Document) Window() *Window { return d.window }

// CreateElement returns a detached element owned by d.
func (d *Document) CreateElement(tag string) *Node { return d.newNode(tag) }

func (d *Document) AddEventListener(typ string, fn Listener, opts ListenerOptions) Registration {
	return d.root.AddEventListener(typ, fn, opts)
}

// ListenerCount counts the listeners of typ registered anywhere in the document, window included.
func (d *Document) ListenerCount(typ string) int {
	n := d.window.ListenerCount(typ)
	var walk func(*Node)
	walk = func(node *Node) {
		n += node.ListenerCount(typ)
		d.mu.RLock()
		children := append([]*Node(nil), node.children...)
		d.mu.RUnlock()
		for _, c := range children {
			walk(c)
		}
	}
	walk(d.root)
	return n
}

// Node is the Element implementation of Document.
type Node struct {
	eventTarget

	doc      *Document
	tag      string
	parent   *Node
	children []*Node
	style    map[string]string
	attrs    map[string]string
	text     string

	top, left     float64
	width, height float64
}

var _ Element = (*Node)(nil)

func (n *Node) Tag() string { return n.tag }

func (n *Node) BoundingRect() Rect {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Rect{Top: n.top, Left: n.left, Width: n.width, Height: n.height}
}

func (n *Node) SetSize(width, height float64) {
	n.mu.Lock()
	n.width, n.height = width, height
	n.mu.Unlock()
}

func (n *Node) SetPosition(top, left float64) {
	n.mu.Lock()
	n.top, n.left = top, left
	n.mu.Unlock()
}

func (n *Node) Parent() Element {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.parent == nil || n.parent == n.doc.root {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

func (n *Node) AppendChild(child Element) error {
	c, ok := child.(*Node)
	if !ok || c.doc != n.doc {
		return ErrForeignNode
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for p := n; p != nil; p = p.parent {
		if p == c {
			return ErrHierarchy
		}
	}
	c.detach()
	c.parent = n
	n.children = append(n.children, c)
	return nil
}

func (n *Node) RemoveChild(child Element) error {
	c, ok := child.(*Node)
	if !ok || c.doc != n.doc {
		return ErrForeignNode
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if c.parent != n {
		return ErrNotChild
	}
	c.detach()
	return nil
}

// Remove detaches n from its parent, if any.
func (n *Node) Remove() {
	n.mu.Lock()
	n.detach()
	n.mu.Unlock()
}

// detach unlinks n from its parent. The caller holds the lock.
func (n *Node) detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func (n *Node) Contains(other Element) bool {
	o, ok := other.(*Node)
	if !ok || o == nil {
		return false
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	for p := o; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// IsConnected reports whether n is attached to its document tree.
func (n *Node) IsConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()

	p := n
	for p.parent != nil {
		p = p.parent
	}
	return p == n.doc.root
}

func (n *Node) SetStyle(prop, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if value == "" {
		delete(n.style, prop)
		return
	}
	n.style[prop] = value
}

func (n *Node) Style(prop string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.style[prop]
}

func (n *Node) SetAttribute(name, value string) {
	n.mu.Lock()
	n.attrs[name] = value
	n.mu.Unlock()
}

func (n *Node) Attribute(name string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.attrs[name]
}

func (n *Node) SetText(text string) {
	n.mu.Lock()
	n.text = text
	n.mu.Unlock()
}

func (n *Node) Text() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.text
}

// Dispatch sends an event of type typ to n: capture listeners from the root down,
// then the listeners of n, then bubbling listeners back up.
func (n *Node) Dispatch(typ string, detail ...interface{}) *Event {
	e := &Event{Type: typ, Target: n}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}

	n.mu.RLock()
	var path []*Node // root first, n excluded
	for p := n.parent; p != nil; p = p.parent {
		path = append([]*Node{p}, path...)
	}
	n.mu.RUnlock()

	for _, p := range path {
		if run(e, p, PhaseCapturing) {
			return e
		}
	}
	if run(e, n, PhaseAtTarget) {
		return e
	}
	for i := len(path) - 1; i >= 0; i-- {
		if run(e, path[i], PhaseBubbling) {
			return e
		}
	}
	return e
}

// run calls the listeners of target for one phase and reports whether propagation stopped.
func run(e *Event, target *Node, phase int) bool {
	target.mu.RLock()
	fns := target.snapshot(e.Type, phase)
	target.mu.RUnlock()

	e.CurrentTarget = target
	e.Phase = phase
	for _, fn := range fns {
		fn(e)
	}
	return e.stopped
}

// Window is the viewport of a Document. It only receives events targeted at it.
type Window struct {
	eventTarget

	width, height float64
}

func (w *Window) Size() (width, height float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.width, w.height
}

// Resize changes the viewport size and dispatches a resize event.
func (w *Window) Resize(width, height float64) *Event {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	return w.Dispatch(EventResize)
}

func (w *Window) Dispatch(typ string, detail ...interface{}) *Event {
	e := &Event{Type: typ, Target: w, CurrentTarget: w, Phase: PhaseAtTarget}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}

	w.mu.RLock()
	fns := w.snapshot(typ, PhaseAtTarget)
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
	return e
}
