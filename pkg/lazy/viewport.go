package lazy

// Window is the visible scroll region in document coordinates.
type Window struct {
	Top    float64
	Bottom float64
}

// Height is the viewport height the window was computed from.
func (w Window) Height() float64 {
	return w.Bottom - w.Top
}

// ViewportSource reports the host's current scroll offset and visible
// height.
type ViewportSource interface {
	Viewport() (scrollY, innerHeight float64)
}

// ViewportFunc adapts a function to ViewportSource.
type ViewportFunc func() (scrollY, innerHeight float64)

func (f ViewportFunc) Viewport() (float64, float64) { return f() }

// Tracker holds the current viewport window.
type Tracker struct {
	window Window
}

// Update reads src and overwrites the tracked window.
func (t *Tracker) Update(src ViewportSource) Window {
	scrollY, height := src.Viewport()
	t.window = Window{Top: scrollY, Bottom: scrollY + height}
	return t.window
}

// Window returns the window computed by the last Update.
func (t *Tracker) Window() Window {
	return t.window
}
