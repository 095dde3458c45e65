// Package session assembles an in-process page: it parses the document,
// starts the page loop, builds the lazy controller, runs the page scripts
// and hooks the controller to scroll and resize.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"lazyview/pkg/config"
	"lazyview/pkg/control"
	"lazyview/pkg/host"
	"lazyview/pkg/html"
	"lazyview/pkg/images"
	"lazyview/pkg/js"
	"lazyview/pkg/lazy"
	"lazyview/pkg/render"
	"lazyview/pkg/resource"
	stdnet "lazyview/std/net"
)

// Session is a running page.
type Session struct {
	Config     *config.Config
	Page       *host.Page
	Loop       *host.Loop
	Controller *lazy.Controller
	Engine     *js.Engine
	Events     *control.EventLog
	Fetcher    *resource.DefaultFetcher
	Images     *images.Cache

	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan error
	closeOnce sync.Once
}

// Load reads an HTML page from a URL or a file path.
func Load(ctx context.Context, source string) ([]byte, error) {
	if stdnet.IsNetworkURL(source) {
		body, _, err := stdnet.Fetch(ctx, source)
		return body, err
	}
	return os.ReadFile(source)
}

// Open loads source and starts a session for it. Relative resource URIs
// resolve against cfg.BaseURL, or against source when that is empty.
func Open(ctx context.Context, source string, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	body, err := Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", source, err)
	}
	base := cfg.BaseURL
	if base == "" {
		base = source
	}
	return New(ctx, string(body), base, cfg, logger)
}

// New starts a session for an HTML string.
func New(ctx context.Context, src, base string, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		Config:  cfg,
		Page:    host.NewPage(doc, cfg.Viewport.Width, cfg.Viewport.Height),
		Loop:    host.NewLoop(logger.Named("loop")),
		Events:  control.NewEventLog(0),
		Fetcher: resource.NewFetcher(base),
		logger:  logger,
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	s.Images = images.NewCache(s.Fetcher)
	go func() { s.done <- s.Loop.Run(ctx) }()

	s.Controller = lazy.NewController(opts,
		lazy.WithPreloader(lazy.NewImagePreloader(s.Fetcher, cfg.Preload.Timeout, logger.Named("preload"))),
		lazy.WithNotifier(lazy.Notifiers{lazy.EmitNotifier{}, s.Events}),
		lazy.WithPoster(s.Loop.Post),
		lazy.WithLogger(logger.Named("lazy")),
		lazy.WithErrorHandler(func(el lazy.Element, err error) {
			logger.Warn("lazy element failed", zap.String("element", fmt.Sprint(el)), zap.Error(err))
		}),
	)
	s.Engine = js.New(logger)

	var scriptErr error
	err = s.Loop.Do(ctx, func() {
		s.Engine.InstallLazy(js.LazyRuntime{
			Context:    ctx,
			Page:       s.Page,
			Controller: s.Controller,
			Loop:       s.Loop,
		})
		scriptErr = s.Engine.Execute(doc)
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if scriptErr != nil {
		logger.Warn("page script failed", zap.Error(scriptErr))
	}

	s.Page.MarkReady()
	err = s.Loop.Do(ctx, func() {
		if _, err := s.Engine.Run(doc, "LazyImage.hook()"); err != nil {
			logger.Warn("hook failed", zap.Error(err))
		}
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Sync(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Sync waits for every task posted to the loop so far.
func (s *Session) Sync(ctx context.Context) error {
	return s.Loop.Do(ctx, func() {})
}

// ScrollTo scrolls the page and waits for the resulting pass.
func (s *Session) ScrollTo(ctx context.Context, y float64) error {
	if err := s.Loop.Do(ctx, func() { s.Page.ScrollTo(y) }); err != nil {
		return err
	}
	return s.Sync(ctx)
}

// Settle waits d for background preloads to finish, then syncs the loop.
func (s *Session) Settle(ctx context.Context, d time.Duration) error {
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Sync(ctx)
}

// Resize changes the viewport and waits for the resulting pass.
func (s *Session) Resize(ctx context.Context, width, height float64) error {
	if err := s.Loop.Do(ctx, func() { s.Page.Resize(width, height) }); err != nil {
		return err
	}
	return s.Sync(ctx)
}

// Render paints the current viewport.
func (s *Session) Render(ctx context.Context) (*render.Renderer, error) {
	var r *render.Renderer
	err := s.Loop.Do(ctx, func() {
		width, height := s.Page.Size()
		r = render.NewRenderer(int(width), int(height), s.Images, s.logger.Named("render"))
		r.RenderPage(ctx, s.Page)
	})
	return r, err
}

// HTML serializes the document in its current state.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var out string
	err := s.Loop.Do(ctx, func() {
		root := s.Page.Document().Root
		for _, child := range root.Children {
			out += child.SerializeOuter()
		}
	})
	return out, err
}

// Control returns an HTTP control server for the session.
func (s *Session) Control() *control.Server {
	return control.NewServer(s.Page, s.Loop, s.Controller, s.Events, s.logger.Named("control"))
}

// Close stops the loop and waits for it to exit.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Loop.Stop()
		s.cancel()
		<-s.done
	})
}
