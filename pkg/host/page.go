package host

import (
	"math"
	"strconv"
	"sync"

	"lazyview/pkg/html"
	"lazyview/pkg/layout"
	"lazyview/pkg/lazy"
)

// IsCandidate matches the elements that take part in lazy loading: images
// declaring a lazy source, source-set or sizes, and any element declaring
// a lazy background image or class.
func IsCandidate(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.TagName == "img" {
		for _, k := range []lazy.Kind{lazy.KindSrc, lazy.KindSrcset, lazy.KindSizes} {
			if _, ok := n.Data(k.DataKey()); ok {
				return true
			}
		}
	}
	for _, k := range []lazy.Kind{lazy.KindBackgroundImage, lazy.KindClass} {
		if _, ok := n.Data(k.DataKey()); ok {
			return true
		}
	}
	return false
}

// Page is an in-process host over a parsed document. Scroll and resize may
// be called from any goroutine; everything that reads or writes the DOM
// (Candidates, Relayout, element methods) belongs on the loop.
type Page struct {
	doc    *html.Document
	engine *layout.LayoutEngine

	mu        sync.Mutex
	scrollY   float64
	width     float64
	height    float64
	dirty     bool
	contentH  float64
	listeners map[Signal]map[int]func()
	nextID    int

	ready     chan struct{}
	readyOnce sync.Once

	// elements is only touched on the loop.
	elements map[*html.Node]*PageElement
}

// NewPage creates a page host for doc with the given viewport size. The
// page is not ready until MarkReady is called.
func NewPage(doc *html.Document, width, height float64) *Page {
	p := &Page{
		doc:       doc,
		width:     width,
		height:    height,
		dirty:     true,
		listeners: make(map[Signal]map[int]func()),
		ready:     make(chan struct{}),
		elements:  make(map[*html.Node]*PageElement),
	}
	return p
}

// MarkReady signals that the page can be queried.
func (p *Page) MarkReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

func (p *Page) Ready() <-chan struct{} {
	return p.ready
}

func (p *Page) Document() *html.Document {
	return p.doc
}

func (p *Page) Viewport() (scrollY, innerHeight float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY, p.height
}

// Size returns the viewport width and height.
func (p *Page) Size() (width, height float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// ContentHeight is the document height as of the last layout.
func (p *Page) ContentHeight() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentH
}

// ScrollTo moves the viewport to y, clamped to the scrollable range once
// the page has been laid out, and fires a scroll signal.
func (p *Page) ScrollTo(y float64) {
	p.mu.Lock()
	y = math.Max(0, y)
	if !p.dirty && p.engine != nil {
		y = math.Min(y, math.Max(0, p.contentH-p.height))
	}
	p.scrollY = y
	p.mu.Unlock()
	p.fire(SignalScroll)
}

// ScrollBy scrolls relative to the current offset.
func (p *Page) ScrollBy(dy float64) {
	y, _ := p.Viewport()
	p.ScrollTo(y + dy)
}

// Resize changes the viewport size, invalidates the layout and fires a
// resize signal.
func (p *Page) Resize(width, height float64) {
	p.mu.Lock()
	p.width = width
	p.height = height
	p.dirty = true
	p.mu.Unlock()
	p.fire(SignalResize)
}

// Invalidate forces a relayout before the next pass, e.g. after scripts
// changed the document.
func (p *Page) Invalidate() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// Layout returns the current layout, recomputing it if needed. Call on the
// loop.
func (p *Page) Layout() *layout.LayoutEngine {
	p.mu.Lock()
	dirty := p.dirty || p.engine == nil
	width, height := p.width, p.height
	p.mu.Unlock()
	if !dirty {
		return p.engine
	}

	engine := layout.NewLayoutEngine(width, height)
	engine.Layout(p.doc)

	p.mu.Lock()
	p.engine = engine
	p.contentH = engine.ContentHeight()
	p.dirty = false
	p.mu.Unlock()
	return engine
}

func (p *Page) Listen(sig Signal, fn func()) (remove func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	if p.listeners[sig] == nil {
		p.listeners[sig] = make(map[int]func())
	}
	p.listeners[sig][id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners[sig], id)
	}
}

// ListenerCount returns the number of listeners bound to sig.
func (p *Page) ListenerCount(sig Signal) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[sig])
}

func (p *Page) fire(sig Signal) {
	p.mu.Lock()
	fns := make([]func(), 0, len(p.listeners[sig]))
	for _, fn := range p.listeners[sig] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Candidates lays the page out if needed and returns its lazy elements in
// document order.
func (p *Page) Candidates() []lazy.Element {
	p.Layout()
	nodes := p.doc.Root.FindAll(IsCandidate)
	elems := make([]lazy.Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, p.Element(n))
	}
	return elems
}

// Element returns the stable wrapper for n. Call on the loop.
func (p *Page) Element(n *html.Node) *PageElement {
	if el, ok := p.elements[n]; ok {
		return el
	}
	el := &PageElement{page: p, node: n}
	p.elements[n] = el
	return el
}

// PageElement adapts a DOM node to lazy.Element and owns its lazy record.
type PageElement struct {
	page *Page
	node *html.Node
	rec  lazy.Record
}

func (e *PageElement) Node() *html.Node {
	return e.node
}

func (e *PageElement) Declared() lazy.Declared {
	return lazy.ReadDeclared(e.node.TagName == "img", e.node.Data)
}

// Box returns the element's layout box. Elements without a box (display:
// none) report a zero box at the top of the document.
func (e *PageElement) Box() lazy.Box {
	box, ok := e.page.Layout().BoxFor(e.node)
	if !ok {
		return lazy.Box{}
	}
	return lazy.Box{Top: box.Y, Height: box.Height}
}

func (e *PageElement) Attr(name string) (string, bool) {
	return e.node.GetAttribute(name)
}

func (e *PageElement) SetAttr(name, value string) {
	e.node.SetAttribute(name, value)
}

func (e *PageElement) AddClass(name string) {
	e.node.AddClass(name)
}

func (e *PageElement) RemoveClass(name string) {
	e.node.RemoveClass(name)
}

func (e *PageElement) BackgroundImage() string {
	return e.node.Style("background-image")
}

func (e *PageElement) SetBackgroundImage(value string) {
	e.node.SetStyle("background-image", value)
}

func (e *PageElement) Emit(event string) {
	e.node.DispatchEvent(event)
}

func (e *PageElement) Record() *lazy.Record {
	return &e.rec
}

// String identifies the element as tag#id, or tag with its document
// position when it has no id.
func (e *PageElement) String() string {
	if id, ok := e.node.GetAttribute("id"); ok && id != "" {
		return e.node.TagName + "#" + id
	}
	pos := 0
	found := false
	e.page.doc.Root.Walk(func(n *html.Node) bool {
		if found {
			return false
		}
		if n == e.node {
			found = true
			return false
		}
		if n.Type == html.ElementNode {
			pos++
		}
		return true
	})
	return e.node.TagName + "@" + strconv.Itoa(pos)
}
