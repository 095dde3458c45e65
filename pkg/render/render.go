// Package render paints the visible part of a laid-out page with gg.
package render

import (
	"context"
	"image"
	"image/color"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
	"golang.org/x/image/colornames"

	"lazyview/pkg/host"
	"lazyview/pkg/html"
	"lazyview/pkg/images"
	"lazyview/pkg/layout"
)

type Renderer struct {
	context *gg.Context
	cache   *images.Cache
	logger  *zap.Logger
	width   float64
	height  float64
}

// NewRenderer creates a renderer for a width x height viewport. Image
// sources are resolved through cache; a nil cache paints placeholders.
func NewRenderer(width, height int, cache *images.Cache, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		context: gg.NewContext(width, height),
		cache:   cache,
		logger:  logger,
		width:   float64(width),
		height:  float64(height),
	}
}

// RenderPage paints the page's current viewport. Call on the page's loop.
func (r *Renderer) RenderPage(ctx context.Context, page *host.Page) {
	engine := page.Layout()
	scrollY, _ := page.Viewport()
	r.Render(ctx, engine.Boxes(), scrollY)
}

// Render paints boxes into the window starting at document offset scrollY.
func (r *Renderer) Render(ctx context.Context, boxes []*layout.Box, scrollY float64) {
	r.context.SetRGB(1, 1, 1)
	r.context.Clear()

	all := collectAllBoxes(boxes)
	// Positioned boxes paint above the flow.
	sort.SliceStable(all, func(i, j int) bool {
		return !all[i].Positioned && all[j].Positioned
	})

	r.context.Push()
	r.context.Translate(0, -scrollY)
	for _, box := range all {
		if box.Bottom() < scrollY || box.Y > scrollY+r.height {
			continue
		}
		r.drawBox(ctx, box)
	}
	r.context.Pop()
}

// collectAllBoxes flattens the box tree into a single list
func collectAllBoxes(boxes []*layout.Box) []*layout.Box {
	result := make([]*layout.Box, 0, len(boxes))
	for _, box := range boxes {
		result = append(result, box)
		result = append(result, collectAllBoxes(box.Children)...)
	}
	return result
}

func (r *Renderer) drawBox(ctx context.Context, box *layout.Box) {
	node := box.Node
	if node.Type == html.TextNode {
		r.drawText(box)
		return
	}

	if c, ok := ParseColor(node.Style("background-color")); ok {
		r.context.SetColor(c)
		r.context.DrawRectangle(box.X, box.Y, box.Width, box.Height)
		r.context.Fill()
	}
	r.drawBackgroundImage(ctx, box)
	if node.TagName == "img" {
		r.drawImage(ctx, box)
	}
	r.drawBorder(box)
}

func (r *Renderer) drawText(box *layout.Box) {
	text := strings.Join(strings.Fields(box.Node.Text), " ")
	if text == "" {
		return
	}
	c := color.Color(color.Black)
	if box.Node.Parent != nil {
		if pc, ok := ParseColor(box.Node.Parent.Style("color")); ok {
			c = pc
		}
	}
	r.context.SetColor(c)
	r.context.DrawStringWrapped(text, box.X, box.Y, 0, 0, box.Width, 1.4, gg.AlignLeft)
}

func (r *Renderer) drawBorder(box *layout.Box) {
	width := borderWidth(box.Node)
	if width <= 0 {
		return
	}
	c, ok := ParseColor(box.Node.Style("border-color"))
	if !ok {
		c = color.Black
	}
	r.context.SetColor(c)
	r.context.SetLineWidth(width)
	half := width / 2
	r.context.DrawRectangle(box.X+half, box.Y+half, box.Width-width, box.Height-width)
	r.context.Stroke()
}

// drawImage paints the element's current src. Images without a source
// (not loaded yet) get a flat placeholder; broken ones a crossed box.
func (r *Renderer) drawImage(ctx context.Context, box *layout.Box) {
	src, _ := box.Node.GetAttribute("src")
	if src == "" || r.cache == nil {
		r.context.SetRGB(0.93, 0.93, 0.93)
		r.context.DrawRectangle(box.X, box.Y, box.Width, box.Height)
		r.context.Fill()
		return
	}

	img, err := r.cache.Load(ctx, src)
	if err != nil {
		r.logger.Debug("image failed", zap.String("src", src), zap.Error(err))
		r.context.SetRGB(0.9, 0.9, 0.9)
		r.context.DrawRectangle(box.X, box.Y, box.Width, box.Height)
		r.context.Fill()

		r.context.SetRGB(0.5, 0.5, 0.5)
		r.context.SetLineWidth(2)
		r.context.DrawLine(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
		r.context.DrawLine(box.X+box.Width, box.Y, box.X, box.Y+box.Height)
		r.context.Stroke()
		return
	}
	r.drawScaled(img, box.X, box.Y, box.Width, box.Height)
}

func (r *Renderer) drawBackgroundImage(ctx context.Context, box *layout.Box) {
	uri, ok := ParseCSSURL(box.Node.Style("background-image"))
	if !ok || r.cache == nil {
		return
	}
	img, err := r.cache.Load(ctx, uri)
	if err != nil {
		r.logger.Debug("background image failed", zap.String("uri", uri), zap.Error(err))
		return
	}

	// background-size: cover, clipped to the box
	b := img.Bounds()
	scale := max(box.Width/float64(b.Dx()), box.Height/float64(b.Dy()))
	w, h := float64(b.Dx())*scale, float64(b.Dy())*scale
	r.context.Push()
	r.context.DrawRectangle(box.X, box.Y, box.Width, box.Height)
	r.context.Clip()
	r.drawScaled(img, box.X+(box.Width-w)/2, box.Y+(box.Height-h)/2, w, h)
	r.context.ResetClip()
	r.context.Pop()
}

func (r *Renderer) drawScaled(img image.Image, x, y, width, height float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || width <= 0 || height <= 0 {
		return
	}
	r.context.Push()
	r.context.Translate(x, y)
	r.context.Scale(width/float64(b.Dx()), height/float64(b.Dy()))
	r.context.DrawImage(img, 0, 0)
	r.context.Pop()
}

// Image returns the painted frame.
func (r *Renderer) Image() image.Image {
	return r.context.Image()
}

func (r *Renderer) SavePNG(filename string) error {
	return r.context.SavePNG(filename)
}

func (r *Renderer) EncodePNG(w io.Writer) error {
	return r.context.EncodePNG(w)
}

// ParseCSSURL extracts the address from a url(...) value.
func ParseCSSURL(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if !strings.HasPrefix(v, "url(") || !strings.HasSuffix(v, ")") {
		return "", false
	}
	v = strings.TrimSpace(v[4 : len(v)-1])
	v = strings.Trim(v, `"'`)
	return v, v != ""
}

// ParseColor understands #rgb, #rrggbb, rgb(r, g, b) and named colors.
func ParseColor(value string) (color.Color, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "" || v == "transparent":
		return nil, false
	case strings.HasPrefix(v, "#"):
		hex := v[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return nil, false
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return nil, false
		}
		return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}, true
	case strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")"):
		parts := strings.Split(v[4:len(v)-1], ",")
		if len(parts) != 3 {
			return nil, false
		}
		var rgb [3]uint8
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 || n > 255 {
				return nil, false
			}
			rgb[i] = uint8(n)
		}
		return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, true
	}
	c, ok := colornames.Map[v]
	return c, ok
}

func borderWidth(n *html.Node) float64 {
	v := n.Style("border-width")
	if v == "" {
		for _, f := range strings.Fields(n.Style("border")) {
			if strings.HasSuffix(f, "px") {
				v = f
				break
			}
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
	if err != nil {
		return 0
	}
	return f
}
