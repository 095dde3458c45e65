package js

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"lazyview/pkg/host"
	"lazyview/pkg/html"
	"lazyview/pkg/lazy"
)

// LazyRuntime is what the LazyImage global drives.
type LazyRuntime struct {
	Context    context.Context
	Page       *host.Page
	Controller *lazy.Controller
	Loop       *host.Loop
}

// lazyAPI backs the LazyImage global. All fields are touched on the loop
// only.
type lazyAPI struct {
	rt     LazyRuntime
	dom    func() *domContext
	logger *zap.Logger

	binding *host.Binding
	cancel  context.CancelFunc
}

// InstallLazy registers the LazyImage global:
//
//	LazyImage.threshold     default distance (number of px, "10%" or null; 0 acts as null)
//	LazyImage.unloads       default unload policy
//	LazyImage.debug         log every swapped URI
//	LazyImage.run()         evaluate all candidates now
//	LazyImage.checkElement  evaluate one element, returns visibility
//	LazyImage.hook()        bind to scroll and resize once the page is ready
//	LazyImage.unhook()      unbind
func (e *Engine) InstallLazy(rt LazyRuntime) {
	if rt.Context == nil {
		rt.Context = context.Background()
	}
	api := &lazyAPI{
		rt:     rt,
		dom:    func() *domContext { return e.dom },
		logger: e.logger,
	}
	e.lazy = api
	if e.dom != nil {
		e.dom.lazy = api
	}
	e.vm.Set("LazyImage", e.vm.NewDynamicObject(&lazyImageAccessor{vm: e.vm, api: api}))
}

// Binding returns the active hook, or nil. Call on the loop.
func (e *Engine) Binding() *host.Binding {
	if e.lazy == nil {
		return nil
	}
	return e.lazy.binding
}

func (a *lazyAPI) element(n *html.Node) *host.PageElement {
	return a.rt.Page.Element(n)
}

func (a *lazyAPI) check(n *html.Node) bool {
	if a.binding != nil && a.binding.Hooked() {
		return a.binding.Check(a.element(n))
	}
	// Unhooked: refresh the window so the check sees the current scroll.
	a.rt.Page.Layout()
	a.rt.Controller.Run(a.rt.Context, a.rt.Page, nil)
	return a.rt.Controller.Check(a.rt.Context, a.element(n))
}

func (a *lazyAPI) run() lazy.Stats {
	if a.binding != nil && a.binding.Hooked() {
		return a.binding.RunNow()
	}
	return a.rt.Controller.Run(a.rt.Context, a.rt.Page, a.rt.Page.Candidates())
}

// hook binds immediately when the page is ready; otherwise it waits in the
// background and completes the binding on the loop.
func (a *lazyAPI) hook() {
	if a.binding != nil && a.binding.Hooked() || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(a.rt.Context)
	select {
	case <-a.rt.Page.Ready():
		b, err := host.Hook(ctx, a.rt.Page, a.rt.Controller, a.rt.Loop, a.logger)
		if err != nil {
			cancel()
			a.logger.Warn("hook failed", zap.Error(err))
			return
		}
		a.binding, a.cancel = b, cancel
		return
	default:
	}

	a.cancel = cancel
	go func() {
		b, err := host.Hook(ctx, a.rt.Page, a.rt.Controller, a.rt.Loop, a.logger)
		a.rt.Loop.Post(func() {
			if err != nil {
				a.logger.Debug("hook abandoned", zap.Error(err))
				return
			}
			if ctx.Err() != nil {
				b.Unhook()
				return
			}
			a.binding = b
		})
	}()
}

func (a *lazyAPI) unhook() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.binding != nil {
		a.binding.Unhook()
		a.binding = nil
	}
}

type lazyImageAccessor struct {
	vm  *goja.Runtime
	api *lazyAPI
}

var lazyImageKeys = []string{"threshold", "unloads", "debug", "hooked", "run", "checkElement", "hook", "unhook"}

func (l *lazyImageAccessor) Get(key string) goja.Value {
	vm := l.vm
	ctrl := l.api.rt.Controller
	opts := ctrl.Options()

	switch key {
	case "threshold":
		if opts.Threshold == nil {
			return goja.Null()
		}
		if opts.Threshold.Percent {
			return vm.ToValue(opts.Threshold.String())
		}
		return vm.ToValue(opts.Threshold.Value)
	case "unloads":
		return vm.ToValue(opts.Unload)
	case "debug":
		return vm.ToValue(opts.Debug)
	case "hooked":
		return vm.ToValue(l.api.binding != nil && l.api.binding.Hooked())
	case "run":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			st := l.api.run()
			obj := vm.NewObject()
			obj.Set("evaluated", st.Evaluated)
			obj.Set("visible", st.Visible)
			obj.Set("loaded", st.Loaded)
			obj.Set("unloaded", st.Unloaded)
			return obj
		})
	case "checkElement":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				panic(vm.NewTypeError("Failed to execute 'checkElement': 1 argument required"))
			}
			var n *html.Node
			if dom := l.api.dom(); dom != nil {
				n = dom.unwrapNode(call.Arguments[0])
			}
			if n == nil {
				panic(vm.NewTypeError("Failed to execute 'checkElement': parameter 1 is not an element"))
			}
			return vm.ToValue(l.api.check(n))
		})
	case "hook":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			l.api.hook()
			return goja.Undefined()
		})
	case "unhook":
		return vm.ToValue(func(call goja.FunctionCall) goja.Value {
			l.api.unhook()
			return goja.Undefined()
		})
	}
	return goja.Undefined()
}

func (l *lazyImageAccessor) Set(key string, val goja.Value) bool {
	ctrl := l.api.rt.Controller
	opts := ctrl.Options()

	switch key {
	case "threshold":
		switch {
		case goja.IsNull(val) || goja.IsUndefined(val):
			opts.Threshold = nil
		default:
			t, err := lazy.ParseThreshold(val.String())
			if err != nil {
				panic(l.vm.NewTypeError("LazyImage.threshold: " + err.Error()))
			}
			opts.Threshold = &t
		}
	case "unloads":
		opts.Unload = val.ToBoolean()
	case "debug":
		opts.Debug = val.ToBoolean()
	default:
		return false
	}
	ctrl.SetOptions(opts)
	return true
}

func (l *lazyImageAccessor) Has(key string) bool {
	for _, k := range lazyImageKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (l *lazyImageAccessor) Delete(key string) bool {
	return false
}

func (l *lazyImageAccessor) Keys() []string {
	return lazyImageKeys
}
