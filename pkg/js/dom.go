package js

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"lazyview/pkg/html"
)

// domContext holds shared state for DOM bindings within a single document.
// It maintains a node-to-proxy cache so the same JS object is returned for
// the same underlying *html.Node (needed for === identity checks).
type domContext struct {
	vm        *goja.Runtime
	doc       *html.Document
	cache     map[*html.Node]goja.Value
	listeners map[*html.Node][]jsListener
	logger    *zap.Logger

	// lazy is set once LazyImage is installed.
	lazy *lazyAPI
}

type jsListener struct {
	event  string
	fn     goja.Value
	remove func()
}

func newDOMContext(vm *goja.Runtime, doc *html.Document) *domContext {
	return &domContext{
		vm:        vm,
		doc:       doc,
		cache:     make(map[*html.Node]goja.Value),
		listeners: make(map[*html.Node][]jsListener),
		logger:    zap.NewNop(),
	}
}

// registerDocument sets up the global `document` object on the goja runtime.
func registerDocument(vm *goja.Runtime, doc *html.Document) *domContext {
	ctx := newDOMContext(vm, doc)

	docObj := vm.NewObject()
	docObj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		node := doc.Root.GetElementByID(call.Arguments[0].String())
		if node == nil {
			return goja.Null()
		}
		return ctx.elementProxy(node)
	})
	docObj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return ctx.elementArray(nil)
		}
		tag := strings.ToLower(call.Arguments[0].String())
		return ctx.elementArray(doc.Root.FindAll(func(n *html.Node) bool {
			return tag == "*" || n.TagName == tag
		}))
	})
	registerQuerySelectors(ctx, docObj, doc.Root)

	if body := doc.Body(); body != nil {
		docObj.Set("body", ctx.elementProxy(body))
	}

	vm.Set("document", docObj)
	return ctx
}

// elementArray creates a JS array of Element proxies.
func (ctx *domContext) elementArray(nodes []*html.Node) goja.Value {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = ctx.elementProxy(n)
	}
	return ctx.vm.NewArray(items...)
}

// elementProxy creates (or retrieves from cache) a JS DynamicObject wrapping an html.Node.
func (ctx *domContext) elementProxy(node *html.Node) goja.Value {
	if v, ok := ctx.cache[node]; ok {
		return v
	}
	v := ctx.vm.NewDynamicObject(&elementAccessor{ctx: ctx, node: node})
	ctx.cache[node] = v
	return v
}

// unwrapNode extracts the *html.Node from a goja value that wraps an elementAccessor.
func (ctx *domContext) unwrapNode(val goja.Value) *html.Node {
	if val == nil || goja.IsNull(val) || goja.IsUndefined(val) {
		return nil
	}
	obj := val.ToObject(ctx.vm)
	for node, cached := range ctx.cache {
		if cached.SameAs(obj) {
			return node
		}
	}
	return nil
}

// addListener binds a JS callback to a DOM event. The callback receives an
// event object with type and target.
func (ctx *domContext) addListener(node *html.Node, event string, fn goja.Value) {
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		panic(ctx.vm.NewTypeError("Failed to execute 'addEventListener': parameter 2 is not a function"))
	}
	for _, l := range ctx.listeners[node] {
		if l.event == event && l.fn.SameAs(fn) {
			return
		}
	}
	remove := node.AddEventListener(event, func(target *html.Node, ev string) {
		evObj := ctx.vm.NewObject()
		evObj.Set("type", ev)
		evObj.Set("target", ctx.elementProxy(target))
		if _, err := callable(ctx.elementProxy(target), evObj); err != nil {
			ctx.reportError(ev, err)
		}
	})
	ctx.listeners[node] = append(ctx.listeners[node], jsListener{event: event, fn: fn, remove: remove})
}

func (ctx *domContext) removeListener(node *html.Node, event string, fn goja.Value) {
	list := ctx.listeners[node]
	for i, l := range list {
		if l.event == event && l.fn.SameAs(fn) {
			l.remove()
			ctx.listeners[node] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// reportError logs an exception thrown by a listener. Dispatch continues
// with the next listener, as in a browser.
func (ctx *domContext) reportError(event string, err error) {
	ctx.logger.Warn("event listener threw", zap.String("event", event), zap.Error(err))
}

// elementAccessor implements goja.DynamicObject to intercept property access
// on DOM element proxies.
type elementAccessor struct {
	ctx  *domContext
	node *html.Node
}

var elementKeys = []string{
	"tagName", "nodeName", "nodeType", "id", "className", "textContent",
	"innerHTML", "outerHTML",
	"getAttribute", "setAttribute", "hasAttribute", "removeAttribute",
	"parentElement", "children", "style", "classList", "dataset",
	"querySelector", "querySelectorAll", "matches",
	"addEventListener", "removeEventListener", "dispatchEvent", "isInView",
}

func (e *elementAccessor) Get(key string) goja.Value {
	vm := e.ctx.vm

	switch key {
	case "nodeType":
		if e.node.Type == html.TextNode {
			return vm.ToValue(3) // Node.TEXT_NODE
		}
		return vm.ToValue(1) // Node.ELEMENT_NODE
	case "nodeName", "tagName":
		if e.node.Type == html.TextNode {
			if key == "nodeName" {
				return vm.ToValue("#text")
			}
			return goja.Undefined()
		}
		return vm.ToValue(strings.ToUpper(e.node.TagName))
	case "id":
		id, _ := e.node.GetAttribute("id")
		return vm.ToValue(id)
	case "className":
		cls, _ := e.node.GetAttribute("class")
		return vm.ToValue(cls)
	case "textContent":
		return vm.ToValue(getTextContent(e.node))
	case "innerHTML":
		return vm.ToValue(e.node.Serialize())
	case "outerHTML":
		return vm.ToValue(e.node.SerializeOuter())
	case "getAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Null()
			}
			val, ok := e.node.GetAttribute(strings.ToLower(call.Arguments[0].String()))
			if !ok {
				return goja.Null()
			}
			return vm.ToValue(val)
		})
	case "setAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 2 {
				panic(vm.NewTypeError("Failed to execute 'setAttribute': 2 arguments required"))
			}
			e.node.SetAttribute(strings.ToLower(call.Arguments[0].String()), call.Arguments[1].String())
			return goja.Undefined()
		})
	case "hasAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return vm.ToValue(false)
			}
			_, ok := e.node.GetAttribute(strings.ToLower(call.Arguments[0].String()))
			return vm.ToValue(ok)
		})
	case "removeAttribute":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				e.node.RemoveAttribute(strings.ToLower(call.Arguments[0].String()))
			}
			return goja.Undefined()
		})
	case "parentElement":
		if p := e.node.Parent; p != nil && p.Type == html.ElementNode && p.TagName != "document" {
			return e.ctx.elementProxy(p)
		}
		return goja.Null()
	case "children":
		var elChildren []*html.Node
		for _, child := range e.node.Children {
			if child.Type == html.ElementNode {
				elChildren = append(elChildren, child)
			}
		}
		return e.ctx.elementArray(elChildren)
	case "style":
		return newStyleProxy(vm, e.node)
	case "classList":
		return newClassListProxy(e.ctx, e.node)
	case "dataset":
		return newDatasetProxy(vm, e.node)
	case "querySelector":
		return vm.ToValue(querySelectorFn(e.ctx, e.node))
	case "querySelectorAll":
		return vm.ToValue(querySelectorAllFn(e.ctx, e.node))
	case "matches":
		return vm.ToValue(matchesFn(e.ctx, e.node))
	case "addEventListener":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 2 {
				panic(vm.NewTypeError("Failed to execute 'addEventListener': 2 arguments required"))
			}
			e.ctx.addListener(e.node, call.Arguments[0].String(), call.Arguments[1])
			return goja.Undefined()
		})
	case "removeEventListener":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) >= 2 {
				e.ctx.removeListener(e.node, call.Arguments[0].String(), call.Arguments[1])
			}
			return goja.Undefined()
		})
	case "dispatchEvent":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				panic(vm.NewTypeError("Failed to execute 'dispatchEvent': 1 argument required"))
			}
			e.node.DispatchEvent(eventType(call.Arguments[0]))
			return vm.ToValue(true)
		})
	case "isInView":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if e.ctx.lazy == nil {
				panic(vm.NewTypeError("isInView: LazyImage is not installed"))
			}
			return vm.ToValue(e.ctx.lazy.check(e.node))
		})
	}
	return goja.Undefined()
}

// eventType accepts either an event name or an object with a type field.
func eventType(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if t := obj.Get("type"); t != nil && !goja.IsUndefined(t) {
			return t.String()
		}
	}
	return v.String()
}

func (e *elementAccessor) Set(key string, val goja.Value) bool {
	switch key {
	case "textContent":
		setTextContent(e.node, val.String())
		return true
	case "className":
		e.node.SetAttribute("class", val.String())
		return true
	case "id":
		e.node.SetAttribute("id", val.String())
		return true
	}
	return false
}

func (e *elementAccessor) Has(key string) bool {
	for _, k := range elementKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (e *elementAccessor) Delete(key string) bool {
	return false
}

func (e *elementAccessor) Keys() []string {
	return elementKeys
}

// getTextContent returns the concatenated text content of a node and its descendants.
func getTextContent(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Text
	}
	var sb strings.Builder
	for _, child := range node.Children {
		sb.WriteString(getTextContent(child))
	}
	return sb.String()
}

// setTextContent replaces all children with a single text node.
func setTextContent(node *html.Node, text string) {
	node.Children = nil
	node.AppendText(text)
}

// newStyleProxy creates a goja DynamicObject that maps JS camelCase
// property access to CSS kebab-case on the node's inline style attribute.
func newStyleProxy(vm *goja.Runtime, node *html.Node) goja.Value {
	return vm.NewDynamicObject(&styleAccessor{vm: vm, node: node})
}

type styleAccessor struct {
	vm   *goja.Runtime
	node *html.Node
}

func (s *styleAccessor) Get(key string) goja.Value {
	if key == "cssText" {
		v, _ := s.node.GetAttribute("style")
		return s.vm.ToValue(v)
	}
	return s.vm.ToValue(s.node.Style(camelToKebab(key)))
}

func (s *styleAccessor) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		s.node.SetAttribute("style", val.String())
		return true
	}
	value := ""
	if !goja.IsNull(val) && !goja.IsUndefined(val) {
		value = val.String()
	}
	s.node.SetStyle(camelToKebab(key), value)
	return true
}

func (s *styleAccessor) Has(key string) bool {
	return true
}

func (s *styleAccessor) Delete(key string) bool {
	s.node.SetStyle(camelToKebab(key), "")
	return true
}

func (s *styleAccessor) Keys() []string {
	attr, _ := s.node.GetAttribute("style")
	decls := html.ParseInlineStyle(attr)
	keys := make([]string, 0, len(decls))
	for _, d := range decls {
		keys = append(keys, d.Property)
	}
	return keys
}

// newDatasetProxy exposes data-* attributes under camelCase keys, so
// el.dataset.lazySrc reads data-lazy-src.
func newDatasetProxy(vm *goja.Runtime, node *html.Node) goja.Value {
	return vm.NewDynamicObject(&datasetAccessor{vm: vm, node: node})
}

type datasetAccessor struct {
	vm   *goja.Runtime
	node *html.Node
}

func (d *datasetAccessor) Get(key string) goja.Value {
	if v, ok := d.node.Data(camelToKebab(key)); ok {
		return d.vm.ToValue(v)
	}
	return goja.Undefined()
}

func (d *datasetAccessor) Set(key string, val goja.Value) bool {
	d.node.SetAttribute("data-"+camelToKebab(key), val.String())
	return true
}

func (d *datasetAccessor) Has(key string) bool {
	_, ok := d.node.Data(camelToKebab(key))
	return ok
}

func (d *datasetAccessor) Delete(key string) bool {
	d.node.RemoveAttribute("data-" + camelToKebab(key))
	return true
}

func (d *datasetAccessor) Keys() []string {
	var keys []string
	for name := range d.node.Attributes {
		if strings.HasPrefix(name, "data-") {
			keys = append(keys, kebabToCamel(strings.TrimPrefix(name, "data-")))
		}
	}
	return keys
}

// camelToKebab converts a JS camelCase property name to CSS kebab-case.
func camelToKebab(s string) string {
	if s == "cssFloat" {
		return "float"
	}
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func kebabToCamel(s string) string {
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// arrayIndex parses a numeric property key.
func arrayIndex(key string) (int, bool) {
	idx, err := strconv.Atoi(key)
	return idx, err == nil && idx >= 0
}
