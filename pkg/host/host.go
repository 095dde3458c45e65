// Package host connects the lazy controller to a page environment: it
// waits for the environment to become ready, runs evaluation passes on a
// single loop goroutine whenever the page scrolls or resizes, and tears
// the listeners down again.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"lazyview/pkg/lazy"
)

// ErrNotReady is returned by Hook when the context ends before the host
// signals readiness.
var ErrNotReady = errors.New("host: not ready")

// Signal is a host event that triggers an evaluation pass.
type Signal int

const (
	SignalScroll Signal = iota
	SignalResize
)

func (s Signal) String() string {
	switch s {
	case SignalScroll:
		return "scroll"
	case SignalResize:
		return "resize"
	}
	return "initial"
}

// signalInitial labels the pass Hook performs immediately.
const signalInitial Signal = -1

// Host is a page environment.
type Host interface {
	lazy.ViewportSource

	// Ready is closed once the page can be queried.
	Ready() <-chan struct{}

	// Candidates enumerates the elements that declare lazy attributes.
	// Called on the loop goroutine.
	Candidates() []lazy.Element

	// Listen registers fn for sig and returns a function removing it. fn
	// may be called from any goroutine.
	Listen(sig Signal, fn func()) (remove func())
}

// Binding is an active hook of a controller onto a host.
type Binding struct {
	ctx    context.Context
	host   Host
	ctrl   *lazy.Controller
	loop   *Loop
	logger *zap.Logger

	mu       sync.Mutex
	removers []func()
	hooked   bool
	last     lazy.Stats
	passes   int
}

// Hook waits for h to become ready, binds scroll and resize listeners that
// post evaluation passes to loop, and posts one immediate pass.
func Hook(ctx context.Context, h Host, ctrl *lazy.Controller, loop *Loop, logger *zap.Logger) (*Binding, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	select {
	case <-h.Ready():
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}

	b := &Binding{ctx: ctx, host: h, ctrl: ctrl, loop: loop, logger: logger, hooked: true}
	for _, sig := range []Signal{SignalScroll, SignalResize} {
		sig := sig
		b.removers = append(b.removers, h.Listen(sig, func() {
			loop.Post(func() { b.run(sig) })
		}))
	}
	loop.Post(func() { b.run(signalInitial) })
	logger.Debug("hooked")
	return b, nil
}

// Run posts an evaluation pass to the loop.
func (b *Binding) Run() {
	b.loop.Post(func() { b.run(signalInitial) })
}

// RunNow performs an evaluation pass. It must be called on the loop.
func (b *Binding) RunNow() lazy.Stats {
	return b.run(signalInitial)
}

func (b *Binding) run(sig Signal) lazy.Stats {
	if !b.Hooked() {
		return lazy.Stats{}
	}
	st := b.ctrl.Run(b.ctx, b.host, b.host.Candidates())
	b.mu.Lock()
	b.last = st
	b.passes++
	b.mu.Unlock()
	if st.Loaded+st.Unloaded > 0 {
		b.logger.Debug("pass",
			zap.Stringer("signal", sig),
			zap.Int("evaluated", st.Evaluated),
			zap.Int("loaded", st.Loaded),
			zap.Int("unloaded", st.Unloaded))
	}
	return st
}

// Check evaluates one element against the current window, applying any
// transition. It must be called on the loop.
func (b *Binding) Check(el lazy.Element) bool {
	return b.ctrl.Check(b.ctx, el)
}

// Stats returns the result of the most recent pass and the pass count.
func (b *Binding) Stats() (lazy.Stats, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.passes
}

// Hooked reports whether the listeners are still bound.
func (b *Binding) Hooked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hooked
}

// Unhook removes the scroll and resize listeners. Passes already queued
// become no-ops.
func (b *Binding) Unhook() {
	b.mu.Lock()
	removers := b.removers
	b.removers = nil
	b.hooked = false
	b.mu.Unlock()
	for _, remove := range removers {
		remove()
	}
	if removers != nil {
		b.logger.Debug("unhooked")
	}
}
