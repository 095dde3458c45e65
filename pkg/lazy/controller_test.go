package lazy

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestScenarioALoadWithinThreshold(t *testing.T) {
	el := newFakeImg(1150, 100, map[string]string{"src": "placeholder.gif"},
		map[Kind]string{KindSrc: "real.png"})
	c := NewController(DefaultOptions())
	vp := &viewport{}
	vp.set(0, 1000)

	st := c.Run(t.Context(), vp, []Element{el})

	if st.Loaded != 1 || st.Visible != 1 {
		t.Errorf("stats = %+v", st)
	}
	if el.attrs["src"] != "real.png" {
		t.Errorf("src = %q, want real.png", el.attrs["src"])
	}
	if eventsOf(el) != "lazy-loaded" {
		t.Errorf("events = %q", eventsOf(el))
	}
	if !el.rec.Loaded() {
		t.Error("record should be loaded")
	}
}

func TestScenarioBScrollAway(t *testing.T) {
	for _, unload := range []bool{true, false} {
		el := newFakeImg(1150, 100, map[string]string{"src": "placeholder.gif"},
			map[Kind]string{KindSrc: "real.png"})
		opts := DefaultOptions()
		opts.Unload = unload
		c := NewController(opts)
		vp := &viewport{}
		vp.set(0, 1000)
		c.Run(t.Context(), vp, []Element{el})

		vp.set(0, 500)
		st := c.Run(t.Context(), vp, []Element{el})

		if unload {
			if st.Unloaded != 1 {
				t.Errorf("unload=true: stats = %+v", st)
			}
			if el.attrs["src"] != "placeholder.gif" {
				t.Errorf("unload=true: src = %q, want original", el.attrs["src"])
			}
			if eventsOf(el) != "lazy-loaded,lazy-unloaded" {
				t.Errorf("unload=true: events = %q", eventsOf(el))
			}
			if el.rec.Loaded() {
				t.Error("unload=true: record should be unloaded")
			}
		} else {
			if st.Unloaded != 0 {
				t.Errorf("unload=false: stats = %+v", st)
			}
			if el.attrs["src"] != "real.png" {
				t.Errorf("unload=false: src = %q", el.attrs["src"])
			}
			if eventsOf(el) != "lazy-loaded" {
				t.Errorf("unload=false: events = %q", eventsOf(el))
			}
			if !el.rec.Loaded() {
				t.Error("unload=false: element should stay loaded")
			}
		}
	}
}

func TestRepeatedPassesAreIdempotent(t *testing.T) {
	el := newFakeImg(100, 100, nil, map[Kind]string{KindSrc: "a.png", KindClass: "shown"})
	c := NewController(DefaultOptions())
	vp := &viewport{}
	vp.set(0, 600)

	first := c.Run(t.Context(), vp, []Element{el})
	second := c.Run(t.Context(), vp, []Element{el})

	if first.Loaded != 1 || second.Loaded != 0 || second.Unloaded != 0 {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
	if eventsOf(el) != "lazy-loaded" {
		t.Errorf("events = %q", eventsOf(el))
	}
	if len(el.classes) != 1 {
		t.Errorf("classes = %v", el.classes)
	}
}

func TestLoadUnloadRoundTrip(t *testing.T) {
	el := newFakeImg(0, 100,
		map[string]string{"src": "ph.gif", "sizes": "100vw"},
		map[Kind]string{
			KindSrc:    "a.png",
			KindSrcset: "a.png 1x, a@2x.png 2x",
			KindSizes:  "50vw",
			KindClass:  "is-loaded",
		})
	el.classes = []string{"card"}
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts)
	vp := &viewport{}

	vp.set(0, 500)
	c.Run(t.Context(), vp, []Element{el})
	if el.attrs["srcset"] != "a.png 1x, a@2x.png 2x" || el.attrs["sizes"] != "50vw" {
		t.Fatalf("after load attrs = %v", el.attrs)
	}
	if len(el.classes) != 2 || el.classes[1] != "is-loaded" {
		t.Fatalf("after load classes = %v", el.classes)
	}

	vp.set(5000, 5500)
	c.Run(t.Context(), vp, []Element{el})

	want := map[string]string{"src": "ph.gif", "sizes": "100vw", "srcset": ""}
	for k, v := range want {
		if el.attrs[k] != v {
			t.Errorf("after unload %s = %q, want %q", k, el.attrs[k], v)
		}
	}
	if len(el.classes) != 1 || el.classes[0] != "card" {
		t.Errorf("after unload classes = %v", el.classes)
	}

	// A second cycle restores the same originals: capture is write-once.
	vp.set(0, 500)
	c.Run(t.Context(), vp, []Element{el})
	vp.set(5000, 5500)
	c.Run(t.Context(), vp, []Element{el})
	if el.attrs["src"] != "ph.gif" {
		t.Errorf("second unload src = %q", el.attrs["src"])
	}
	if orig, ok := el.rec.Original(KindSrc); !ok || orig != "ph.gif" {
		t.Errorf("original src = %q, %v", orig, ok)
	}
}

func TestInvisibleUninitializedElementUntouched(t *testing.T) {
	el := newFakeImg(5000, 100, map[string]string{"src": "ph.gif"}, map[Kind]string{KindSrc: "a.png"})
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts)
	vp := &viewport{}
	vp.set(0, 500)

	st := c.Run(t.Context(), vp, []Element{el})

	if st.Loaded+st.Unloaded != 0 {
		t.Errorf("stats = %+v", st)
	}
	if el.rec.Initialized() {
		t.Error("record should stay uninitialized")
	}
	if _, ok := el.rec.Original(KindSrc); ok {
		t.Error("originals should not be captured")
	}
	if len(el.events) != 0 {
		t.Errorf("events = %v", el.events)
	}
}

func TestAbsentKindsSkipped(t *testing.T) {
	el := newFakeImg(0, 10, map[string]string{"src": "keep.gif"}, map[Kind]string{KindClass: "on"})
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts)
	vp := &viewport{}
	vp.set(0, 500)
	c.Run(t.Context(), vp, []Element{el})
	vp.set(9000, 9500)
	c.Run(t.Context(), vp, []Element{el})

	if el.attrs["src"] != "keep.gif" {
		t.Errorf("undeclared src changed to %q", el.attrs["src"])
	}
	if _, ok := el.attrs["srcset"]; ok {
		t.Error("undeclared srcset was written")
	}
	if el.bg != "" {
		t.Errorf("undeclared background written: %q", el.bg)
	}
	if eventsOf(el) != "lazy-loaded,lazy-unloaded" {
		t.Errorf("events = %q", eventsOf(el))
	}
}

func TestPerElementUnloadOverride(t *testing.T) {
	on := newFakeImg(0, 10, nil, map[Kind]string{KindSrc: "a.png"})
	on.declared.Unload = "true"
	off := newFakeImg(0, 10, nil, map[Kind]string{KindSrc: "b.png"})
	off.declared.Unload = "false"
	junk := newFakeImg(0, 10, nil, map[Kind]string{KindSrc: "c.png"})
	junk.declared.Unload = "sometimes"

	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts)
	vp := &viewport{}
	elems := []Element{on, off, junk}
	vp.set(0, 100)
	c.Run(t.Context(), vp, elems)
	vp.set(10000, 10100)
	c.Run(t.Context(), vp, elems)

	if on.rec.Loaded() {
		t.Error("override true should unload")
	}
	if !off.rec.Loaded() {
		t.Error("override false should keep the element loaded")
	}
	if junk.rec.Loaded() {
		t.Error("malformed override should fall back to the global policy")
	}
}

func TestCheckUsesLastWindow(t *testing.T) {
	near := newFakeImg(700, 10, nil, map[Kind]string{KindSrc: "a.png"})
	far := newFakeImg(7000, 10, nil, map[Kind]string{KindSrc: "b.png"})
	c := NewController(DefaultOptions())
	vp := &viewport{}
	vp.set(0, 600)
	c.Run(t.Context(), vp, nil)

	if !c.Visible(near) || near.rec.Initialized() {
		t.Error("Visible should report geometry without transitions")
	}
	if !c.Check(t.Context(), near) || !near.rec.Loaded() {
		t.Error("Check should load a visible element")
	}
	if c.Check(t.Context(), far) || far.rec.Initialized() {
		t.Error("Check should leave an invisible element alone")
	}
}

func TestScenarioCBackgroundPreloadFailure(t *testing.T) {
	el := newFakeImg(0, 300, nil, map[Kind]string{KindBackgroundImage: "https://cdn.invalid/missing.jpg"})
	posted := make(chan func(), 4)
	var handled error
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts,
		WithPreloader(PreloaderFunc(func(ctx context.Context, uri string) error {
			return errors.New("HTTP 404")
		})),
		WithPoster(func(f func()) { posted <- f }),
		WithErrorHandler(func(_ Element, err error) { handled = err }),
	)
	vp := &viewport{}
	vp.set(0, 800)

	c.Run(t.Context(), vp, []Element{el})
	if !el.rec.Loaded() {
		t.Fatal("loaded flag must be committed before the preload resolves")
	}
	if len(el.events) != 0 {
		t.Fatalf("no event before the gate resolves, got %v", el.events)
	}
	waitPost(t, posted)()

	if !el.rec.Loaded() {
		t.Error("loaded flag stays true after a failed preload")
	}
	if el.bg != "" {
		t.Errorf("background must not be swapped, got %q", el.bg)
	}
	if eventsOf(el) != "lazy-error" {
		t.Errorf("events = %q", eventsOf(el))
	}
	var pe *PreloadError
	if !errors.As(handled, &pe) || pe.URI != "https://cdn.invalid/missing.jpg" {
		t.Errorf("error handler got %v", handled)
	}

	c.Run(t.Context(), vp, []Element{el})
	expectNoPost(t, posted)
	if eventsOf(el) != "lazy-error" {
		t.Errorf("a repeated pass must not emit again, events = %q", eventsOf(el))
	}
}

func TestBackgroundSwapAfterPreload(t *testing.T) {
	el := newFakeImg(0, 300, nil, map[Kind]string{
		KindBackgroundImage: "hero.jpg",
		KindClass:           "ready",
	})
	el.bg = `url("ph.jpg")`
	posted := make(chan func(), 4)
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts,
		WithPoster(func(f func()) { posted <- f }),
	)
	vp := &viewport{}
	vp.set(0, 800)

	c.Run(t.Context(), vp, []Element{el})
	if len(el.classes) != 1 {
		t.Error("synchronous swaps apply before the gate resolves")
	}
	if el.bg != `url("ph.jpg")` {
		t.Errorf("background swapped early: %q", el.bg)
	}
	waitPost(t, posted)()
	if el.bg != `url("hero.jpg")` {
		t.Errorf("background = %q", el.bg)
	}
	if eventsOf(el) != "lazy-loaded" {
		t.Errorf("events = %q", eventsOf(el))
	}

	vp.set(4000, 4800)
	c.Run(t.Context(), vp, []Element{el})
	if el.bg != `url("ph.jpg")` {
		t.Errorf("unload should restore the original background, got %q", el.bg)
	}
}

func TestBackgroundUnloadDefaultsToNone(t *testing.T) {
	el := newFakeImg(0, 300, nil, map[Kind]string{KindBackgroundImage: "hero.jpg"})
	posted := make(chan func(), 4)
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts, WithPoster(func(f func()) { posted <- f }))
	vp := &viewport{}
	vp.set(0, 800)
	c.Run(t.Context(), vp, []Element{el})
	waitPost(t, posted)()

	vp.set(4000, 4800)
	c.Run(t.Context(), vp, []Element{el})
	if el.bg != "none" {
		t.Errorf("background = %q, want none", el.bg)
	}
	if _, ok := el.rec.Original(KindBackgroundImage); ok {
		t.Error("no original background should have been captured")
	}
}

func TestInflightPreloadIsDeduplicated(t *testing.T) {
	el := newFakeImg(0, 300, nil, map[Kind]string{KindBackgroundImage: "slow.jpg"})
	gate := make(chan struct{})
	var calls atomic.Int32
	posted := make(chan func(), 4)
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts,
		WithPreloader(PreloaderFunc(func(ctx context.Context, uri string) error {
			calls.Add(1)
			<-gate
			return nil
		})),
		WithPoster(func(f func()) { posted <- f }),
	)
	vp := &viewport{}

	vp.set(0, 800)
	c.Run(t.Context(), vp, []Element{el})
	vp.set(4000, 4800)
	c.Run(t.Context(), vp, []Element{el})
	vp.set(0, 800)
	c.Run(t.Context(), vp, []Element{el})

	if !el.rec.Pending("slow.jpg") {
		t.Error("preload should still be in flight")
	}
	close(gate)
	waitPost(t, posted)()
	expectNoPost(t, posted)

	if n := calls.Load(); n != 1 {
		t.Errorf("preload issued %d times, want 1", n)
	}
	if el.bg != `url("slow.jpg")` {
		t.Errorf("background = %q", el.bg)
	}
	if eventsOf(el) != "lazy-unloaded,lazy-loaded" {
		t.Errorf("events = %q", eventsOf(el))
	}
	if el.rec.Pending("slow.jpg") {
		t.Error("pending flag should be cleared")
	}
}

func TestStalePreloadIsDropped(t *testing.T) {
	el := newFakeImg(0, 300, nil, map[Kind]string{KindBackgroundImage: "slow.jpg"})
	gate := make(chan struct{})
	posted := make(chan func(), 4)
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts,
		WithPreloader(PreloaderFunc(func(ctx context.Context, uri string) error {
			<-gate
			return nil
		})),
		WithPoster(func(f func()) { posted <- f }),
	)
	vp := &viewport{}
	vp.set(0, 800)
	c.Run(t.Context(), vp, []Element{el})
	vp.set(4000, 4800)
	c.Run(t.Context(), vp, []Element{el})

	close(gate)
	waitPost(t, posted)()

	if el.bg != "none" {
		t.Errorf("stale preload must not swap, background = %q", el.bg)
	}
	if eventsOf(el) != "lazy-unloaded" {
		t.Errorf("events = %q", eventsOf(el))
	}
}

func TestStalePreloadFailureIsDropped(t *testing.T) {
	el := newFakeImg(0, 300, nil, map[Kind]string{KindBackgroundImage: "slow.jpg"})
	gate := make(chan struct{})
	posted := make(chan func(), 4)
	handled := 0
	opts := DefaultOptions()
	opts.Unload = true
	c := NewController(opts,
		WithPreloader(PreloaderFunc(func(ctx context.Context, uri string) error {
			<-gate
			return errors.New("HTTP 500")
		})),
		WithPoster(func(f func()) { posted <- f }),
		WithErrorHandler(func(Element, error) { handled++ }),
	)
	vp := &viewport{}
	vp.set(0, 800)
	c.Run(t.Context(), vp, []Element{el})
	vp.set(4000, 4800)
	c.Run(t.Context(), vp, []Element{el})

	close(gate)
	waitPost(t, posted)()

	if eventsOf(el) != "lazy-unloaded" {
		t.Errorf("events = %q", eventsOf(el))
	}
	if handled != 0 {
		t.Errorf("error handler called %d times for a stale failure", handled)
	}
	if el.rec.State() != Unloaded {
		t.Errorf("state = %v", el.rec.State())
	}
}

func TestNotifiersFanOut(t *testing.T) {
	el := newFakeImg(0, 10, nil, map[Kind]string{KindSrc: "a.png"})
	var seen []Event
	c := NewController(DefaultOptions(), WithNotifier(Notifiers{
		EmitNotifier{},
		NotifierFunc(func(_ Element, ev Event) { seen = append(seen, ev) }),
	}))
	vp := &viewport{}
	vp.set(0, 100)
	c.Run(t.Context(), vp, []Element{el})
	if len(seen) != 1 || seen[0] != EventLoaded || eventsOf(el) != "lazy-loaded" {
		t.Errorf("seen = %v, events = %q", seen, eventsOf(el))
	}
}

func TestReadDeclared(t *testing.T) {
	data := map[string]string{
		"lazy-src":              "a.png",
		"lazy-srcset":           "",
		"lazy-class":            "on",
		"lazy-background-image": "bg.png",
		"lazy-threshold":        "10%",
		"lazy-unload":           "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := data[k]
		return v, ok
	}
	img := ReadDeclared(true, lookup)
	if v, ok := img.Values.Get(KindSrc); !ok || v != "a.png" {
		t.Errorf("src = %q %v", v, ok)
	}
	if _, ok := img.Values.Get(KindSrcset); ok {
		t.Error("empty value should count as absent")
	}
	if img.Threshold != "10%" || img.Unload != "true" {
		t.Errorf("declared = %+v", img)
	}
	div := ReadDeclared(false, lookup)
	if _, ok := div.Values.Get(KindSrc); ok {
		t.Error("src only applies to img elements")
	}
	if v, _ := div.Values.Get(KindBackgroundImage); v != "bg.png" {
		t.Errorf("background = %q", v)
	}
}
