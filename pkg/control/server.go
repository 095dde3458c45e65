// Package control exposes an HTTP API to scroll and resize an in-process
// page and to inspect the lazy state of its elements.
package control

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"lazyview/pkg/host"
	"lazyview/pkg/lazy"
)

// Server serves the control API for one page.
type Server struct {
	page   *host.Page
	loop   *host.Loop
	ctrl   *lazy.Controller
	events *EventLog
	logger *zap.Logger
	router *chi.Mux
}

// Viewport is the response of GET /viewport, /scroll and /resize.
type Viewport struct {
	ScrollY       float64 `json:"scroll_y"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	ContentHeight float64 `json:"content_height"`
	Top           float64 `json:"top"`
	Bottom        float64 `json:"bottom"`
}

// ElementState is one entry of GET /elements.
type ElementState struct {
	Element         string  `json:"element"`
	State           string  `json:"state"`
	Visible         bool    `json:"visible"`
	Top             float64 `json:"top"`
	Height          float64 `json:"height"`
	Src             string  `json:"src,omitempty"`
	Class           string  `json:"class,omitempty"`
	BackgroundImage string  `json:"background_image,omitempty"`
}

func NewServer(page *host.Page, loop *host.Loop, ctrl *lazy.Controller, events *EventLog, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NewEventLog(0)
	}
	s := &Server{page: page, loop: loop, ctrl: ctrl, events: events, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	s.RegisterHTTP(r)
	s.router = r
	return s
}

// RegisterHTTP mounts the endpoints on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/viewport", s.handleViewport)
	r.Post("/scroll", s.handleScroll)
	r.Post("/resize", s.handleResize)
	r.Get("/elements", s.handleElements)
	r.Get("/events", s.handleEvents)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	s.logger.Info("control API listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	s.respondViewport(w, r)
}

// handleScroll scrolls to ?y= (or by ?dy=) and waits for the resulting
// pass before answering.
func (s *Server) handleScroll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var scroll func()
	switch {
	case q.Has("y"):
		y, err := strconv.ParseFloat(q.Get("y"), 64)
		if err != nil {
			http.Error(w, "invalid y", http.StatusBadRequest)
			return
		}
		scroll = func() { s.page.ScrollTo(y) }
	case q.Has("dy"):
		dy, err := strconv.ParseFloat(q.Get("dy"), 64)
		if err != nil {
			http.Error(w, "invalid dy", http.StatusBadRequest)
			return
		}
		scroll = func() { s.page.ScrollBy(dy) }
	default:
		http.Error(w, "y or dy required", http.StatusBadRequest)
		return
	}
	// Lay out first so the offset is clamped to the content height.
	if err := s.loop.Do(r.Context(), func() {
		s.page.Layout()
		scroll()
	}); err != nil {
		s.loopError(w, err)
		return
	}
	s.respondViewport(w, r)
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width, errW := strconv.ParseFloat(q.Get("w"), 64)
	height, errH := strconv.ParseFloat(q.Get("h"), 64)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		http.Error(w, "positive w and h required", http.StatusBadRequest)
		return
	}
	if err := s.loop.Do(r.Context(), func() { s.page.Resize(width, height) }); err != nil {
		s.loopError(w, err)
		return
	}
	s.respondViewport(w, r)
}

func (s *Server) respondViewport(w http.ResponseWriter, r *http.Request) {
	var vp Viewport
	err := s.loop.Do(r.Context(), func() {
		s.page.Layout()
		vp.ScrollY, vp.Height = s.page.Viewport()
		vp.Width, _ = s.page.Size()
		vp.ContentHeight = s.page.ContentHeight()
		win := s.ctrl.Window()
		vp.Top, vp.Bottom = win.Top, win.Bottom
	})
	if err != nil {
		s.loopError(w, err)
		return
	}
	writeJSON(w, vp)
}

func (s *Server) handleElements(w http.ResponseWriter, r *http.Request) {
	var states []ElementState
	err := s.loop.Do(r.Context(), func() {
		for _, el := range s.page.Candidates() {
			box := el.Box()
			st := ElementState{
				Element:         describe(el),
				State:           el.Record().State().String(),
				Visible:         s.ctrl.Visible(el),
				Top:             box.Top,
				Height:          box.Height,
				BackgroundImage: el.BackgroundImage(),
			}
			st.Src, _ = el.Attr("src")
			st.Class, _ = el.Attr("class")
			states = append(states, st)
		}
	})
	if err != nil {
		s.loopError(w, err)
		return
	}
	writeJSON(w, states)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}
	writeJSON(w, s.events.Since(since))
}

func (s *Server) loopError(w http.ResponseWriter, err error) {
	s.logger.Warn("page loop unavailable", zap.Error(err))
	http.Error(w, "page unavailable", http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
