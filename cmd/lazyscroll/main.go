package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"lazyview/pkg/config"
	"lazyview/pkg/control"
	"lazyview/pkg/host"
	"lazyview/pkg/host/rodhost"
	"lazyview/pkg/lazy"
	"lazyview/pkg/resource"
	"lazyview/pkg/session"
	stdnet "lazyview/std/net"
)

type options struct {
	configPath string
	width      float64
	height     float64
	threshold  string
	unload     bool
	steps      string
	settle     time.Duration
	out        string
	png        string
	serve      bool
	listen     string
	chrome     bool
	debug      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "YAML configuration file")
	flag.Float64Var(&o.width, "w", 0, "viewport width in pixels (overrides config)")
	flag.Float64Var(&o.height, "h", 0, "viewport height in pixels (overrides config)")
	flag.StringVar(&o.threshold, "threshold", "", `default threshold: "200", "10%" or "viewport"`)
	flag.BoolVar(&o.unload, "unload", false, "unload elements that leave the window")
	flag.StringVar(&o.steps, "steps", "", "comma-separated scroll offsets to replay")
	flag.DurationVar(&o.settle, "settle", 100*time.Millisecond, "time to wait after each step for preloads")
	flag.StringVar(&o.out, "out", "", "write the final HTML to this file")
	flag.StringVar(&o.png, "png", "", "render the final viewport to this PNG file")
	flag.BoolVar(&o.serve, "serve", false, "serve the control API after replaying")
	flag.StringVar(&o.listen, "listen", "", "control API address (overrides config)")
	flag.BoolVar(&o.chrome, "chrome", false, "drive the page in Chrome instead of in-process")
	flag.BoolVar(&o.debug, "debug", false, "log every swapped URI")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lazyscroll [flags] <file-or-url>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	source := flag.Arg(0)

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	steps, err := parseSteps(o.steps)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: -steps: %v\n", err)
		os.Exit(1)
	}

	logger, err := lazy.NewLogger(cfg.Lazy.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if o.chrome {
		err = runChrome(ctx, source, cfg, steps, o.settle, logger)
	} else {
		err = runLocal(ctx, source, cfg, steps, o, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, then applies the flags that were set
// explicitly.
func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "w":
			cfg.Viewport.Width = o.width
		case "h":
			cfg.Viewport.Height = o.height
		case "threshold":
			cfg.Lazy.Threshold = o.threshold
		case "unload":
			cfg.Lazy.Unload = o.unload
		case "debug":
			cfg.Lazy.Debug = o.debug
		case "listen":
			cfg.Control.Listen = o.listen
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseSteps(s string) ([]float64, error) {
	var steps []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		y, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q", field)
		}
		steps = append(steps, y)
	}
	return steps, nil
}

func runLocal(ctx context.Context, source string, cfg *config.Config, steps []float64, o options, logger *zap.Logger) error {
	fmt.Fprintf(os.Stderr, "Loading %s...\n", source)
	s, err := session.Open(ctx, source, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Settle(ctx, o.settle); err != nil {
		return err
	}
	for _, y := range steps {
		fmt.Fprintf(os.Stderr, "Scrolling to %g\n", y)
		if err := s.ScrollTo(ctx, y); err != nil {
			return err
		}
		if err := s.Settle(ctx, o.settle); err != nil {
			return err
		}
	}
	printEvents(s.Events)

	if o.out != "" {
		out, err := s.HTML(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.out, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", o.out, err)
		}
		fmt.Fprintf(os.Stderr, "Saved HTML to %s\n", o.out)
	}
	if o.png != "" {
		r, err := s.Render(ctx)
		if err != nil {
			return err
		}
		if err := r.SavePNG(o.png); err != nil {
			return fmt.Errorf("writing %s: %w", o.png, err)
		}
		fmt.Fprintf(os.Stderr, "Saved to %s\n", o.png)
	}
	if o.serve {
		return s.Control().ListenAndServe(ctx, cfg.Control.Listen)
	}
	return nil
}

func runChrome(ctx context.Context, source string, cfg *config.Config, steps []float64, settle time.Duration, logger *zap.Logger) error {
	pageURL := source
	if !stdnet.IsNetworkURL(source) && !strings.HasPrefix(source, "file://") {
		abs, err := filepath.Abs(source)
		if err != nil {
			return err
		}
		pageURL = "file://" + filepath.ToSlash(abs)
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Opening %s in Chrome...\n", pageURL)
	h, err := rodhost.Open(ctx, pageURL, rodhost.Config{
		RemoteURL: cfg.Browser.Remote,
		Headful:   cfg.Browser.Headful,
		Logger:    logger.Named("chrome"),
	})
	if err != nil {
		return err
	}
	defer h.Close()

	loop := host.NewLoop(logger.Named("loop"))
	go loop.Run(ctx)
	defer loop.Stop()

	events := control.NewEventLog(0)
	base := cfg.BaseURL
	if base == "" {
		base = pageURL
	}
	ctrl := lazy.NewController(opts,
		lazy.WithPreloader(lazy.NewImagePreloader(resource.NewFetcher(base), cfg.Preload.Timeout, logger.Named("preload"))),
		lazy.WithNotifier(lazy.Notifiers{lazy.EmitNotifier{}, events}),
		lazy.WithPoster(loop.Post),
		lazy.WithLogger(logger.Named("lazy")),
	)

	b, err := host.Hook(ctx, h, ctrl, loop, logger)
	if err != nil {
		return err
	}
	defer b.Unhook()

	wait := func() error {
		time.Sleep(settle)
		return loop.Do(ctx, func() {})
	}
	if err := wait(); err != nil {
		return err
	}
	for _, y := range steps {
		fmt.Fprintf(os.Stderr, "Scrolling to %g\n", y)
		if err := h.ScrollTo(y); err != nil {
			return err
		}
		if err := wait(); err != nil {
			return err
		}
	}
	printEvents(events)
	return nil
}

func printEvents(events *control.EventLog) {
	for _, e := range events.Since(0) {
		fmt.Printf("%d\t%s\t%s\n", e.Seq, e.Event, e.Element)
	}
}
