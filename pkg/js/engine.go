package js

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"lazyview/pkg/html"
)

// Engine executes JavaScript against an HTML document's DOM.
//
// A goja runtime is single-threaded: an Engine must only be used from the
// goroutine that owns the document, which for a hooked page is the host
// loop.
type Engine struct {
	vm     *goja.Runtime
	logger *zap.Logger
	dom    *domContext
	lazy   *lazyAPI
}

// New creates a new JS engine with a fresh goja runtime. Console output is
// written to logger.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	vm := goja.New()
	e := &Engine{vm: vm, logger: logger}

	c := &consoleAPI{logger: logger.Named("console")}
	c.register(vm)

	return e
}

// Execute runs all scripts from the document against the DOM.
// Scripts are executed in order. Any JS errors are returned but
// callers may choose to log and continue rather than fail.
func (e *Engine) Execute(doc *html.Document) error {
	e.bindDocument(doc)

	for i, script := range doc.Scripts {
		if _, err := e.vm.RunString(script); err != nil {
			return fmt.Errorf("script %d: %w", i, err)
		}
	}
	return nil
}

// Run evaluates a single snippet against doc and returns its result
// exported to Go.
func (e *Engine) Run(doc *html.Document, src string) (interface{}, error) {
	e.bindDocument(doc)
	v, err := e.vm.RunString(src)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

func (e *Engine) bindDocument(doc *html.Document) {
	if e.dom != nil && e.dom.doc == doc {
		return
	}
	e.dom = registerDocument(e.vm, doc)
	e.dom.logger = e.logger
	e.dom.lazy = e.lazy
}
