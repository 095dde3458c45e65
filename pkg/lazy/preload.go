package lazy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lazyview/pkg/images"
	"lazyview/pkg/resource"
)

// ErrAborted is the cause of a preload that ended because its context was
// cancelled or timed out.
var ErrAborted = errors.New("lazy: preload aborted")

// Result is the outcome of one preload attempt.
type Result struct {
	URI string
	Err error
}

// PreloadError reports a failed background-image preload.
type PreloadError struct {
	URI string
	Err error
}

func (e *PreloadError) Error() string {
	return fmt.Sprintf("preload %s: %v", e.URI, e.Err)
}

func (e *PreloadError) Unwrap() error {
	return e.Err
}

// Preloader validates a resource before it is swapped in. Preload must not
// block; the returned channel receives exactly one Result.
type Preloader interface {
	Preload(ctx context.Context, uri string) <-chan Result
}

// PreloaderFunc adapts a blocking validation function to Preloader by
// running it on its own goroutine.
type PreloaderFunc func(ctx context.Context, uri string) error

func (f PreloaderFunc) Preload(ctx context.Context, uri string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- Result{URI: uri, Err: f(ctx, uri)}
	}()
	return ch
}

// ImagePreloader fetches a URI and decodes it as an image. Success means
// the image decoded; fetch errors, decode errors and cancellation are
// failures. Every call is an independent request.
type ImagePreloader struct {
	fetcher resource.Fetcher
	timeout time.Duration
	logger  *zap.Logger
}

// NewImagePreloader creates a preloader. A zero timeout means no limit
// beyond the caller's context.
func NewImagePreloader(fetcher resource.Fetcher, timeout time.Duration, logger *zap.Logger) *ImagePreloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImagePreloader{fetcher: fetcher, timeout: timeout, logger: logger}
}

func (p *ImagePreloader) Preload(ctx context.Context, uri string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- Result{URI: uri, Err: p.preload(ctx, uri)}
	}()
	return ch
}

func (p *ImagePreloader) preload(ctx context.Context, uri string) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	body, _, err := p.fetcher.Fetch(ctx, uri)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrAborted, err)
		}
		return fmt.Errorf("fetch: %w", err)
	}
	if ctx.Err() != nil {
		return ErrAborted
	}
	img, format, err := images.Decode(body)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	b := img.Bounds()
	p.logger.Debug("preloaded",
		zap.String("uri", uri),
		zap.String("format", format),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
