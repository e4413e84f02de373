package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Dispatch_order(t *testing.T) {
	doc := NewDocument(800, 600)
	outer := doc.CreateElement("div")
	inner := doc.CreateElement("button")
	require.NoError(t, doc.Body().AppendChild(outer))
	require.NoError(t, outer.AppendChild(inner))

	var got []string
	record := func(name string) Listener {
		return func(e *Event) { got = append(got, name) }
	}
	doc.AddEventListener(EventClick, record("document capture"), ListenerOptions{Capture: true})
	doc.AddEventListener(EventClick, record("document bubble"), ListenerOptions{})
	outer.AddEventListener(EventClick, record("outer capture"), ListenerOptions{Capture: true})
	outer.AddEventListener(EventClick, record("outer bubble"), ListenerOptions{})
	inner.AddEventListener(EventClick, record("target"), ListenerOptions{})
	inner.AddEventListener(EventKeyPress, record("other type"), ListenerOptions{})

	inner.Dispatch(EventClick)

	assert.Equal(t, []string{
		"document capture",
		"outer capture",
		"target",
		"outer bubble",
		"document bubble",
	}, got)
}

func TestNode_Dispatch_stopPropagation(t *testing.T) {
	doc := NewDocument(800, 600)
	btn := doc.CreateElement("button")
	require.NoError(t, doc.Body().AppendChild(btn))

	var captured, bubbled int
	doc.AddEventListener(EventClick, func(*Event) { captured++ }, ListenerOptions{Capture: true})
	doc.AddEventListener(EventClick, func(*Event) { bubbled++ }, ListenerOptions{})
	btn.AddEventListener(EventClick, func(e *Event) { e.StopPropagation() }, ListenerOptions{})

	e := btn.Dispatch(EventClick)

	assert.True(t, e.PropagationStopped())
	assert.Equal(t, 1, captured, "capture listeners on the document run before the target")
	assert.Zero(t, bubbled)
}

func TestRegistration_Remove(t *testing.T) {
	doc := NewDocument(800, 600)
	var calls int
	reg := doc.AddEventListener(EventScroll, func(*Event) { calls++ }, ListenerOptions{Capture: true})
	assert.Equal(t, 1, doc.ListenerCount(EventScroll))

	doc.Body().Dispatch(EventScroll)
	reg.Remove()
	reg.Remove()
	doc.Body().Dispatch(EventScroll)

	assert.Equal(t, 1, calls)
	assert.Zero(t, doc.ListenerCount(""))

	// nil listeners are ignored
	assert.NotPanics(t, func() { doc.AddEventListener(EventClick, nil, ListenerOptions{}).Remove() })
}

func TestNode_tree(t *testing.T) {
	doc := NewDocument(800, 600)
	player := doc.CreateElement("div")
	mark := doc.CreateElement("div")

	assert.False(t, player.IsConnected())
	require.NoError(t, doc.Body().AppendChild(player))
	require.NoError(t, player.AppendChild(mark))
	assert.True(t, mark.IsConnected())
	assert.True(t, player.Contains(mark))
	assert.Equal(t, Element(player), mark.Parent())
	assert.Nil(t, doc.Body().Parent())

	assert.Equal(t, ErrHierarchy, mark.AppendChild(player))
	assert.Equal(t, ErrForeignNode, player.AppendChild(NewDocument(1, 1).CreateElement("div")))

	mark.Remove()
	assert.False(t, mark.IsConnected())
	assert.Nil(t, mark.Parent())
	assert.Equal(t, ErrNotChild, player.RemoveChild(mark))

	// appending moves the node
	other := doc.CreateElement("div")
	require.NoError(t, doc.Body().AppendChild(other))
	require.NoError(t, player.AppendChild(mark))
	require.NoError(t, other.AppendChild(mark))
	assert.Empty(t, player.Children())
	assert.Len(t, other.Children(), 1)
}

func TestNode_attributes(t *testing.T) {
	doc := NewDocument(800, 600)
	n := doc.CreateElement("div")

	n.SetStyle("pointer-events", "none")
	n.SetAttribute("draggable", "false")
	n.SetText("hello")
	n.SetSize(100, 40)
	n.SetPosition(12, 34)

	assert.Equal(t, "none", n.Style("pointer-events"))
	assert.Equal(t, "false", n.Attribute("draggable"))
	assert.Equal(t, "hello", n.Text())
	assert.Equal(t, Rect{Top: 12, Left: 34, Width: 100, Height: 40}, n.BoundingRect())

	n.SetStyle("pointer-events", "")
	assert.Empty(t, n.Style("pointer-events"))
}

func TestWindow_Resize(t *testing.T) {
	doc := NewDocument(800, 600)
	var got []float64
	reg := doc.Window().AddEventListener(EventResize, func(e *Event) {
		w, h := doc.Window().Size()
		got = append(got, w, h)
	}, ListenerOptions{})

	doc.Window().Resize(1024, 768)
	reg.Remove()
	doc.Window().Resize(10, 10)

	assert.Equal(t, []float64{1024, 768}, got)
}
