package lazy

// State is the load state of a single element.
type State int

const (
	Uninitialized State = iota
	Unloaded
	Loaded
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	default:
		return "uninitialized"
	}
}

type original struct {
	value string
	ok    bool
}

// Record is the per-element lazy state. The zero value is an
// uninitialized record.
type Record struct {
	state     State
	originals [kindCount]original
	inflight  map[string]struct{}
}

func (r *Record) State() State {
	return r.state
}

func (r *Record) Initialized() bool {
	return r.state != Uninitialized
}

func (r *Record) Loaded() bool {
	return r.state == Loaded
}

// Original returns the pre-lazy value captured for k, if any.
func (r *Record) Original(k Kind) (string, bool) {
	if k < 0 || k >= kindCount {
		return "", false
	}
	o := r.originals[k]
	return o.value, o.ok
}

// Pending reports whether a background preload of uri is in flight.
func (r *Record) Pending(uri string) bool {
	_, ok := r.inflight[uri]
	return ok
}

// capture records the element's current values. It runs once; later
// calls are ignored so originals stay write-once.
func (r *Record) capture(el Element) {
	if r.state != Uninitialized {
		return
	}
	for _, k := range []Kind{KindSrc, KindSrcset, KindSizes} {
		if v, ok := el.Attr(k.String()); ok {
			r.originals[k] = original{value: v, ok: true}
		}
	}
	if bg := el.BackgroundImage(); bg != "" {
		r.originals[KindBackgroundImage] = original{value: bg, ok: true}
	}
	r.state = Unloaded
}

func (r *Record) restoreValue(k Kind, fallback string) string {
	if v, ok := r.Original(k); ok {
		return v
	}
	return fallback
}

func (r *Record) markPending(uri string) {
	if r.inflight == nil {
		r.inflight = make(map[string]struct{})
	}
	r.inflight[uri] = struct{}{}
}

func (r *Record) clearPending(uri string) {
	delete(r.inflight, uri)
}
