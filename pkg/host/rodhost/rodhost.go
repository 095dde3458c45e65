// Package rodhost drives lazy loading inside a real Chrome page through
// the DevTools protocol.
package rodhost

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"lazyview/pkg/host"
	"lazyview/pkg/lazy"
)

const bindingName = "__lazyview_signal"

// Config configures the browser connection.
type Config struct {
	// RemoteURL is the DevTools websocket of a running Chrome. Empty
	// launches a local one.
	RemoteURL string
	Headful   bool
	Logger    *zap.Logger
}

// Host is a host.Host backed by a Chrome tab.
type Host struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	listeners map[host.Signal]map[int]func()
	nextID    int
	scrollY   float64
	height    float64

	// elements is only touched on the loop.
	elements map[int]*Element
}

// Open starts or connects to Chrome and navigates a new tab to pageURL.
// The host becomes ready once the page has loaded and the scroll and
// resize hooks are installed.
func Open(ctx context.Context, pageURL string, cfg Config) (*Host, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wsURL := cfg.RemoteURL
	var l *launcher.Launcher
	if wsURL == "" {
		l = launcher.New().Headless(!cfg.Headful)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodhost: launch: %w", err)
		}
		wsURL = u
		logger.Info("launched local chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("rodhost: connect: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("rodhost: create tab: %w", err)
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &Host{
		browser:   b,
		page:      page,
		lnch:      l,
		logger:    logger,
		ctx:       hctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		listeners: make(map[host.Signal]map[int]func()),
		elements:  make(map[int]*Element),
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		h.Close()
		return nil, fmt.Errorf("rodhost: add binding: %w", err)
	}
	wait := page.Context(hctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		switch e.Payload {
		case "scroll":
			h.fire(host.SignalScroll)
		case "resize":
			h.fire(host.SignalResize)
		}
	})
	go wait()

	if err := page.Context(hctx).Navigate(pageURL); err != nil {
		h.Close()
		return nil, fmt.Errorf("rodhost: navigate %s: %w", pageURL, err)
	}
	go h.install()
	return h, nil
}

// install waits for the load event and hooks scroll and resize.
func (h *Host) install() {
	if err := h.page.Context(h.ctx).WaitLoad(); err != nil {
		h.logger.Warn("wait load failed", zap.Error(err))
		return
	}
	_, err := h.page.Context(h.ctx).Eval(`(name) => {
		if (window.__lazyviewHooked) return;
		window.__lazyviewHooked = true;
		const send = (sig) => window[name](sig);
		window.addEventListener("scroll", () => send("scroll"), {passive: true});
		window.addEventListener("resize", () => send("resize"));
	}`, bindingName)
	if err != nil {
		h.logger.Warn("installing hooks failed", zap.Error(err))
		return
	}
	h.refreshViewport()
	h.readyOnce.Do(func() { close(h.ready) })
}

func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Viewport reads the scroll offset and inner height from the page. On
// failure it returns the last values read.
func (h *Host) Viewport() (scrollY, innerHeight float64) {
	h.refreshViewport()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollY, h.height
}

func (h *Host) refreshViewport() {
	var vp struct {
		Y float64 `json:"y"`
		H float64 `json:"h"`
	}
	if err := h.evalJSON(&vp, `() => JSON.stringify({y: window.scrollY, h: window.innerHeight})`); err != nil {
		h.logger.Warn("reading viewport failed", zap.Error(err))
		return
	}
	h.mu.Lock()
	h.scrollY, h.height = vp.Y, vp.H
	h.mu.Unlock()
}

// ScrollTo scrolls the window; the page's own scroll listener triggers the
// pass.
func (h *Host) ScrollTo(y float64) error {
	_, err := h.page.Context(h.ctx).Eval(`(y) => window.scrollTo(0, y)`, y)
	return err
}

func (h *Host) Listen(sig host.Signal, fn func()) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	if h.listeners[sig] == nil {
		h.listeners[sig] = make(map[int]func())
	}
	h.listeners[sig][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[sig], id)
	}
}

func (h *Host) fire(sig host.Signal) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.listeners[sig]))
	for _, fn := range h.listeners[sig] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// candidatesJS tags every candidate with data-lazy-id and snapshots what
// the controller reads.
const candidatesJS = `(selector) => {
	let next = window.__lazyviewNext || 0;
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		if (!el.dataset.lazyId) el.dataset.lazyId = String(++next);
		const rect = el.getBoundingClientRect();
		const data = {};
		for (const a of el.attributes) {
			if (a.name.startsWith("data-lazy-")) data[a.name.slice(5)] = a.value;
		}
		const attrs = {};
		for (const n of ["src", "srcset", "sizes", "class"]) {
			if (el.hasAttribute(n)) attrs[n] = el.getAttribute(n);
		}
		out.push({
			id: Number(el.dataset.lazyId),
			tag: el.tagName.toLowerCase(),
			top: rect.top + window.scrollY,
			height: rect.height,
			data: data,
			attrs: attrs,
			bg: el.style.backgroundImage,
		});
	}
	window.__lazyviewNext = next;
	return JSON.stringify(out);
}`

// Selector matches the elements that take part in lazy loading.
const Selector = "img[data-lazy-src],img[data-lazy-srcset],img[data-lazy-sizes],[data-lazy-background-image],[data-lazy-class]"

// Candidates snapshots the page's lazy elements. Call on the loop.
func (h *Host) Candidates() []lazy.Element {
	var snaps []snapshot
	if err := h.evalJSON(&snaps, candidatesJS, Selector); err != nil {
		h.logger.Warn("listing candidates failed", zap.Error(err))
		return nil
	}
	elems := make([]lazy.Element, 0, len(snaps))
	for _, s := range snaps {
		el, ok := h.elements[s.ID]
		if !ok {
			el = &Element{host: h, id: s.ID}
			h.elements[s.ID] = el
		}
		if s.Attrs == nil {
			s.Attrs = make(map[string]string)
		}
		el.snap = s
		elems = append(elems, el)
	}
	return elems
}

func (h *Host) evalJSON(out interface{}, js string, args ...interface{}) error {
	res, err := h.page.Context(h.ctx).Eval(js, args...)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(res.Value.Str()), out)
}

// Close shuts the tab and the browser down.
func (h *Host) Close() error {
	h.cancel()
	err := h.browser.Close()
	if h.lnch != nil {
		h.lnch.Kill()
	}
	return err
}

type snapshot struct {
	ID     int               `json:"id"`
	Tag    string            `json:"tag"`
	Top    float64           `json:"top"`
	Height float64           `json:"height"`
	Data   map[string]string `json:"data"`
	Attrs  map[string]string `json:"attrs"`
	BG     string            `json:"bg"`
}

// Element is a lazy.Element living in the Chrome page. Reads come from the
// last snapshot; writes go to the page and update the snapshot.
type Element struct {
	host *Host
	id   int
	snap snapshot
	rec  lazy.Record
}

func (e *Element) String() string {
	return fmt.Sprintf("%s[data-lazy-id=%d]", e.snap.Tag, e.id)
}

func (e *Element) Declared() lazy.Declared {
	return lazy.ReadDeclared(e.snap.Tag == "img", func(key string) (string, bool) {
		v, ok := e.snap.Data[key]
		return v, ok
	})
}

func (e *Element) Box() lazy.Box {
	return lazy.Box{Top: e.snap.Top, Height: e.snap.Height}
}

func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.snap.Attrs[name]
	return v, ok
}

func (e *Element) SetAttr(name, value string) {
	if e.exec(`(el, n, v) => el.setAttribute(n, v)`, name, value) {
		if e.snap.Attrs == nil {
			e.snap.Attrs = make(map[string]string)
		}
		e.snap.Attrs[name] = value
	}
}

func (e *Element) AddClass(name string) {
	tokens := strings.Fields(name)
	if len(tokens) > 0 && e.exec(`(el, t) => el.classList.add(...t)`, tokens) {
		e.snap.Attrs["class"] = e.classValue()
	}
}

func (e *Element) RemoveClass(name string) {
	tokens := strings.Fields(name)
	if len(tokens) > 0 && e.exec(`(el, t) => el.classList.remove(...t)`, tokens) {
		e.snap.Attrs["class"] = e.classValue()
	}
}

func (e *Element) classValue() string {
	var v string
	if err := e.host.evalJSON(&v, `(id) => JSON.stringify(document.querySelector('[data-lazy-id="' + id + '"]').className)`, e.id); err != nil {
		return e.snap.Attrs["class"]
	}
	return v
}

func (e *Element) BackgroundImage() string {
	return e.snap.BG
}

func (e *Element) SetBackgroundImage(value string) {
	if e.exec(`(el, v) => { el.style.backgroundImage = v; }`, value) {
		e.snap.BG = value
	}
}

func (e *Element) Emit(event string) {
	e.exec(`(el, name) => el.dispatchEvent(new CustomEvent(name))`, event)
}

func (e *Element) Record() *lazy.Record {
	return &e.rec
}

// exec runs fn(el, args...) against the element in the page.
func (e *Element) exec(fn string, args ...interface{}) bool {
	js := `(id, ...args) => {
		const el = document.querySelector('[data-lazy-id="' + id + '"]');
		if (!el) return false;
		(` + fn + `)(el, ...args);
		return true;
	}`
	res, err := e.host.page.Context(e.host.ctx).Eval(js, append([]interface{}{e.id}, args...)...)
	if err != nil {
		e.host.logger.Warn("element update failed", zap.Stringer("element", e), zap.Error(err))
		return false
	}
	return res.Value.Bool()
}
