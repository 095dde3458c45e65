package lazy

import (
	"strings"
	"testing"
	"time"
)

// fakeElement records every mutation the controller makes.
type fakeElement struct {
	declared Declared
	box      Box
	attrs    map[string]string
	classes  []string
	bg       string
	events   []string
	rec      Record
}

func newFakeImg(top, height float64, attrs map[string]string, lazy map[Kind]string) *fakeElement {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	el := &fakeElement{box: Box{Top: top, Height: height}, attrs: attrs}
	for k, v := range lazy {
		el.declared.Values[k] = v
	}
	return el
}

func (e *fakeElement) Declared() Declared { return e.declared }
func (e *fakeElement) Box() Box           { return e.box }
func (e *fakeElement) Record() *Record    { return &e.rec }

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *fakeElement) SetAttr(name, value string) { e.attrs[name] = value }

func (e *fakeElement) AddClass(name string) {
	for _, c := range e.classes {
		if c == name {
			return
		}
	}
	e.classes = append(e.classes, name)
}

func (e *fakeElement) RemoveClass(name string) {
	kept := e.classes[:0]
	for _, c := range e.classes {
		if c != name {
			kept = append(kept, c)
		}
	}
	e.classes = kept
}

func (e *fakeElement) BackgroundImage() string         { return e.bg }
func (e *fakeElement) SetBackgroundImage(value string) { e.bg = value }
func (e *fakeElement) Emit(event string)               { e.events = append(e.events, event) }

// viewport is a mutable ViewportSource.
type viewport struct {
	scrollY, height float64
}

func (v *viewport) Viewport() (float64, float64) { return v.scrollY, v.height }

func (v *viewport) set(top, bottom float64) {
	v.scrollY = top
	v.height = bottom - top
}

func eventsOf(el *fakeElement) string {
	return strings.Join(el.events, ",")
}

// waitPost receives one posted continuation or fails the test.
func waitPost(t *testing.T, ch <-chan func()) func() {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for preload continuation")
		return nil
	}
}

func expectNoPost(t *testing.T, ch <-chan func()) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected preload continuation")
	case <-time.After(50 * time.Millisecond):
	}
}

