package dom

import "golang.org/x/net/html"

// Event is dispatched to listeners along the composed path of its target.
// Target is not retargeted at shadow boundaries, so listeners outside a
// shadow root see the inner node that was activated.
type Event struct {
	Type          string
	Target        *html.Node
	CurrentTarget *html.Node

	stopped          bool
	defaultPrevented bool
}

// StopPropagation prevents the event from reaching further ancestors.
// Remaining listeners on the current node still run.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// PreventDefault marks the default action as cancelled.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Listener handles a dispatched event.
type Listener func(e *Event)

type listenerEntry struct {
	id uint64
	fn Listener
}

// AddEventListener registers fn for events of type typ reaching n.
// The returned function removes the registration.
func (d *Document) AddEventListener(n *html.Node, typ string, fn Listener) (remove func()) {
	d.nextID++
	id := d.nextID
	byType, ok := d.listeners[n]
	if !ok {
		byType = make(map[string][]listenerEntry)
		d.listeners[n] = byType
	}
	byType[typ] = append(byType[typ], listenerEntry{id: id, fn: fn})

	return func() {
		d.removeListener(n, typ, id)
	}
}

// HasEventListener reports whether n has a listener for typ.
func (d *Document) HasEventListener(n *html.Node, typ string) bool {
	return len(d.listeners[n][typ]) > 0
}

func (d *Document) removeListener(n *html.Node, typ string, id uint64) {
	byType := d.listeners[n]
	entries := byType[typ]
	for i, e := range entries {
		if e.id == id {
			byType[typ] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(byType[typ]) == 0 {
		delete(byType, typ)
	}
	if len(byType) == 0 {
		delete(d.listeners, n)
	}
}

// Dispatch delivers an event of type typ to target and its composed
// ancestors, innermost first, and returns it.
func (d *Document) Dispatch(target *html.Node, typ string) *Event {
	e := &Event{Type: typ, Target: target}
	for n := target; n != nil; n = d.ComposedParent(n) {
		entries := d.listeners[n][typ]
		if len(entries) == 0 {
			continue
		}
		e.CurrentTarget = n
		// Listeners added during dispatch are not called for this event.
		snapshot := append([]listenerEntry(nil), entries...)
		for _, entry := range snapshot {
			entry.fn(e)
		}
		if e.stopped {
			break
		}
	}
	e.CurrentTarget = nil
	return e
}

// Click dispatches a click event on target.
func (d *Document) Click(target *html.Node) *Event {
	return d.Dispatch(target, "click")
}
