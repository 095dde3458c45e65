package main

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"lazyview/pkg/config"
	"lazyview/pkg/lazy"
	"lazyview/pkg/session"
)

const (
	viewWidth  = 1024
	viewHeight = 700
)

type viewer struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.Logger

	window    fyne.Window
	image     *canvas.Image
	slider    *widget.Slider
	status    *widget.Label
	events    *widget.Label
	session   *session.Session
	lastEvent atomic.Int64
}

func main() {
	cfg := config.Default()
	if len(os.Args) > 2 {
		var err error
		if cfg, err = config.LoadFile(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Viewport.Width, cfg.Viewport.Height = viewWidth, viewHeight

	logger, err := lazy.NewLogger(cfg.Lazy.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	a := app.New()
	v := &viewer{ctx: context.Background(), cfg: cfg, logger: logger}
	v.window = a.NewWindow("lazyview")
	v.window.Resize(fyne.NewSize(viewWidth, viewHeight+120))

	v.image = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, viewWidth, viewHeight)))
	v.image.FillMode = canvas.ImageFillOriginal

	v.status = widget.NewLabel("Enter a file or URL and press Enter")
	v.events = widget.NewLabel("")

	v.slider = widget.NewSlider(0, 1)
	v.slider.Step = 10
	v.slider.OnChanged = v.scroll

	entry := widget.NewEntry()
	entry.SetPlaceHolder("page.html or https://example.com")
	entry.OnSubmitted = func(source string) {
		v.status.SetText("Loading " + source + "...")
		go v.open(source)
	}

	bottom := container.NewVBox(v.slider, v.events, v.status)
	v.window.SetContent(container.NewBorder(entry, bottom, nil, nil, v.image))
	v.window.Canvas().Focus(entry)
	v.window.SetOnClosed(func() {
		if v.session != nil {
			v.session.Close()
		}
	})

	if len(os.Args) > 1 {
		entry.SetText(os.Args[1])
		go v.open(os.Args[1])
	}
	v.window.ShowAndRun()
}

// open replaces the current session. Runs off the UI goroutine.
func (v *viewer) open(source string) {
	s, err := session.Open(v.ctx, source, v.cfg, v.logger)
	if err != nil {
		fyne.Do(func() { v.status.SetText("Error: " + err.Error()) })
		return
	}
	maxScroll := math.Max(0, s.Page.ContentHeight()-viewHeight)

	fyne.Do(func() {
		if v.session != nil {
			v.session.Close()
		}
		v.session = s
		v.lastEvent.Store(0)
		v.events.SetText("")
		v.slider.Max = math.Max(1, maxScroll)
		v.slider.SetValue(0)
		v.status.SetText(source)
		v.window.SetTitle("lazyview - " + source)
	})
	v.redraw(s)
}

// scroll moves the page to the slider position. Called on the UI goroutine.
func (v *viewer) scroll(y float64) {
	s := v.session
	if s == nil {
		return
	}
	go func() {
		if err := s.ScrollTo(v.ctx, y); err != nil {
			return
		}
		v.redraw(s)
	}()
}

func (v *viewer) redraw(s *session.Session) {
	if err := s.Settle(v.ctx, 50*time.Millisecond); err != nil {
		return
	}
	r, err := s.Render(v.ctx)
	if err != nil {
		return
	}
	img := r.Image()

	var log string
	for _, e := range s.Events.Since(int(v.lastEvent.Load())) {
		log = fmt.Sprintf("%s %s", e.Event, e.Element)
		v.lastEvent.Store(int64(e.Seq))
	}

	fyne.Do(func() {
		if v.session != s {
			return
		}
		v.image.Image = img
		v.image.Refresh()
		if log != "" {
			v.events.SetText(log)
		}
	})
}
