package lazy

// Event is a completion signal emitted on an element.
type Event int

const (
	EventLoaded Event = iota
	EventUnloaded
	// EventFailed is emitted when a background-image preload fails.
	EventFailed
)

func (e Event) String() string {
	switch e {
	case EventLoaded:
		return "lazy-loaded"
	case EventUnloaded:
		return "lazy-unloaded"
	case EventFailed:
		return "lazy-error"
	}
	return "lazy-unknown"
}

// Notifier receives completion events. Notifiers observe transitions; they
// cannot change their outcome.
type Notifier interface {
	Notify(el Element, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(el Element, ev Event)

func (f NotifierFunc) Notify(el Element, ev Event) { f(el, ev) }

// EmitNotifier fires the event's name on the element itself.
type EmitNotifier struct{}

func (EmitNotifier) Notify(el Element, ev Event) {
	el.Emit(ev.String())
}

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(el Element, ev Event) {
	for _, n := range ns {
		n.Notify(el, ev)
	}
}
