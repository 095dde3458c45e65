package html

// Listener receives a named event dispatched on a node.
type Listener func(target *Node, event string)

type listener struct {
	fn Listener
}

// AddEventListener registers fn for event and returns a function that
// removes exactly this registration.
func (n *Node) AddEventListener(event string, fn Listener) (remove func()) {
	if n.listeners == nil {
		n.listeners = make(map[string][]*listener)
	}
	l := &listener{fn: fn}
	n.listeners[event] = append(n.listeners[event], l)
	return func() {
		list := n.listeners[event]
		for i, c := range list {
			if c == l {
				n.listeners[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// DispatchEvent calls every listener registered for event in registration
// order and returns how many were called. Listeners added during dispatch
// are not called for the current event.
func (n *Node) DispatchEvent(event string) int {
	list := append([]*listener(nil), n.listeners[event]...)
	for _, l := range list {
		l.fn(n, event)
	}
	return len(list)
}
