package lazy

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Options is the global configuration shared by all elements.
type Options struct {
	// Threshold is the default expansion distance. Nil falls back to the
	// viewport height.
	Threshold *Threshold
	// Unload is the default unload policy for elements without an override.
	Unload bool
	// Debug logs every swapped URI.
	Debug bool
}

// DefaultOptions returns a 200px threshold with unloading disabled.
func DefaultOptions() Options {
	t := Pixels(200)
	return Options{Threshold: &t}
}

// Pass is the evaluation context threaded through one evaluation pass.
type Pass struct {
	Window  Window
	Options Options
}

// Distance resolves the threshold for d: the element's own threshold if it
// parses, else the global default, else the viewport height. A zero
// threshold at either level counts as unset.
func (p Pass) Distance(d Declared) float64 {
	h := p.Window.Height()
	if d.Threshold != "" {
		if t, err := ParseThreshold(d.Threshold); err == nil && t.Value != 0 {
			return t.Resolve(h)
		}
	}
	if t := p.Options.Threshold; t != nil && t.Value != 0 {
		return t.Resolve(h)
	}
	return h
}

// UnloadEnabled resolves the unload policy for d.
func (p Pass) UnloadEnabled(d Declared) bool {
	if d.Unload != "" {
		if v, err := strconv.ParseBool(strings.TrimSpace(d.Unload)); err == nil {
			return v
		}
	}
	return p.Options.Unload
}

// Transition is the state change applied to an element by a check.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionLoad
	TransitionUnload
)

func (t Transition) String() string {
	switch t {
	case TransitionLoad:
		return "load"
	case TransitionUnload:
		return "unload"
	}
	return "none"
}

// Stats summarizes one evaluation pass.
type Stats struct {
	Evaluated int
	Visible   int
	Loaded    int
	Unloaded  int
}

// Controller runs evaluation passes over candidate elements.
//
// A Controller is not safe for concurrent use: Run, Check and the
// continuations handed to the poster must all execute on the goroutine that
// owns the page.
type Controller struct {
	opts      Options
	tracker   Tracker
	preloader Preloader
	notifier  Notifier
	post      func(func())
	onError   func(Element, error)
	logger    *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithPreloader sets the background-image gate.
func WithPreloader(p Preloader) Option {
	return func(c *Controller) { c.preloader = p }
}

// WithNotifier replaces the default EmitNotifier.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithPoster sets the function used to run preload continuations on the
// page's goroutine. Without it continuations run on the preload goroutine.
func WithPoster(post func(func())) Option {
	return func(c *Controller) { c.post = post }
}

// WithErrorHandler receives a *PreloadError for every failed preload.
func WithErrorHandler(fn func(Element, error)) Option {
	return func(c *Controller) { c.onError = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(opts Options, options ...Option) *Controller {
	c := &Controller{
		opts:     opts,
		notifier: EmitNotifier{},
		post:     func(f func()) { f() },
		logger:   zap.NewNop(),
	}
	for _, o := range options {
		o(c)
	}
	if c.preloader == nil {
		c.preloader = PreloaderFunc(func(context.Context, string) error { return nil })
	}
	return c
}

func (c *Controller) Options() Options {
	return c.opts
}

func (c *Controller) SetOptions(opts Options) {
	c.opts = opts
}

// Window returns the viewport window of the last pass.
func (c *Controller) Window() Window {
	return c.tracker.Window()
}

// Run performs one evaluation pass: the viewport is read once, then every
// element is checked against it.
func (c *Controller) Run(ctx context.Context, src ViewportSource, elems []Element) Stats {
	p := Pass{Window: c.tracker.Update(src), Options: c.opts}
	var st Stats
	for _, el := range elems {
		visible, tr := c.check(ctx, p, el)
		st.Evaluated++
		if visible {
			st.Visible++
		}
		switch tr {
		case TransitionLoad:
			st.Loaded++
		case TransitionUnload:
			st.Unloaded++
		}
	}
	return st
}

// Check evaluates a single element against the window of the last pass,
// applies any transition and reports whether the element is visible.
func (c *Controller) Check(ctx context.Context, el Element) bool {
	visible, _ := c.check(ctx, Pass{Window: c.tracker.Window(), Options: c.opts}, el)
	return visible
}

// Visible evaluates geometry only; no state changes.
func (c *Controller) Visible(el Element) bool {
	p := Pass{Window: c.tracker.Window(), Options: c.opts}
	return IsVisible(el.Box(), p.Distance(el.Declared()), p.Window)
}

func (c *Controller) check(ctx context.Context, p Pass, el Element) (bool, Transition) {
	d := el.Declared()
	visible := IsVisible(el.Box(), p.Distance(d), p.Window)
	rec := el.Record()
	if visible == rec.Loaded() {
		return visible, TransitionNone
	}
	if visible {
		rec.capture(el)
		c.load(ctx, p, el, d)
		return visible, TransitionLoad
	}
	if !p.UnloadEnabled(d) {
		return visible, TransitionNone
	}
	c.unload(p, el, d)
	return visible, TransitionUnload
}

func (c *Controller) load(ctx context.Context, p Pass, el Element, d Declared) {
	el.Record().state = Loaded
	for _, k := range []Kind{KindSrc, KindSrcset, KindSizes} {
		if v, ok := d.Values.Get(k); ok {
			el.SetAttr(k.String(), v)
			c.debug(p, "loaded", k, v)
		}
	}
	if v, ok := d.Values.Get(KindClass); ok {
		el.AddClass(v)
	}
	if uri, ok := d.Values.Get(KindBackgroundImage); ok {
		c.preloadBackground(ctx, p, el, uri)
		return
	}
	c.notifier.Notify(el, EventLoaded)
}

func (c *Controller) preloadBackground(ctx context.Context, p Pass, el Element, uri string) {
	rec := el.Record()
	if rec.Pending(uri) {
		c.logger.Debug("preload already in flight", zap.String("uri", uri))
		return
	}
	rec.markPending(uri)
	ch := c.preloader.Preload(ctx, uri)
	go func() {
		res := <-ch
		c.post(func() { c.finishBackground(p, el, uri, res) })
	}()
}

func (c *Controller) finishBackground(p Pass, el Element, uri string, res Result) {
	rec := el.Record()
	rec.clearPending(uri)
	// Results for an element that was unloaded or redeclared meanwhile are
	// dropped, failures included.
	if cur, ok := el.Declared().Values.Get(KindBackgroundImage); !rec.Loaded() || !ok || cur != uri {
		c.logger.Debug("dropping stale preload", zap.String("uri", uri), zap.Bool("failed", res.Err != nil))
		return
	}
	if res.Err != nil {
		err := &PreloadError{URI: uri, Err: res.Err}
		c.logger.Warn("background image preload failed", zap.String("uri", uri), zap.Error(res.Err))
		c.notifier.Notify(el, EventFailed)
		if c.onError != nil {
			c.onError(el, err)
		}
		return
	}
	el.SetBackgroundImage(CSSURL(uri))
	c.debug(p, "loaded", KindBackgroundImage, uri)
	c.notifier.Notify(el, EventLoaded)
}

func (c *Controller) unload(p Pass, el Element, d Declared) {
	rec := el.Record()
	rec.state = Unloaded
	for _, k := range []Kind{KindSrc, KindSrcset, KindSizes} {
		if v, ok := d.Values.Get(k); ok {
			el.SetAttr(k.String(), rec.restoreValue(k, ""))
			c.debug(p, "unloaded", k, v)
		}
	}
	if v, ok := d.Values.Get(KindBackgroundImage); ok {
		el.SetBackgroundImage(rec.restoreValue(KindBackgroundImage, "none"))
		c.debug(p, "unloaded", KindBackgroundImage, v)
	}
	if v, ok := d.Values.Get(KindClass); ok {
		el.RemoveClass(v)
	}
	c.notifier.Notify(el, EventUnloaded)
}

func (c *Controller) debug(p Pass, msg string, k Kind, uri string) {
	if !p.Options.Debug {
		return
	}
	c.logger.Debug(msg, zap.Stringer("kind", k), zap.String("uri", uri))
}

// CSSURL formats uri as a CSS url() value.
func CSSURL(uri string) string {
	return `url("` + strings.ReplaceAll(uri, `"`, `\"`) + `")`
}
