package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"lazyview/pkg/host"
	"lazyview/pkg/html"
	"lazyview/pkg/images"
	"lazyview/pkg/resource"
)

func solidPNG(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestRenderPageViewport(t *testing.T) {
	red := solidPNG(t, color.RGBA{R: 255, A: 255})
	blue := solidPNG(t, color.RGBA{B: 255, A: 255})
	doc, err := html.Parse(`<html><body style="margin:0">
		<div style="height: 100px; background-color: #00ff00"></div>
		<img id="pic" width="100" height="100">
		<div id="bg" style="height: 100px"></div>
	</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	doc.Root.GetElementByID("pic").SetAttribute("src", red)
	doc.Root.GetElementByID("bg").SetStyle("background-image", `url("`+blue+`")`)

	page := host.NewPage(doc, 200, 150)
	r := NewRenderer(200, 150, images.NewCache(resource.NewFetcher("")), nil)

	r.RenderPage(context.Background(), page)
	if rr, g, b := rgbAt(r.Image(), 50, 50); rr != 0 || g != 255 || b != 0 {
		t.Errorf("green block pixel = %d,%d,%d", rr, g, b)
	}
	if rr, g, b := rgbAt(r.Image(), 50, 120); rr != 255 || g != 0 || b != 0 {
		t.Errorf("image pixel = %d,%d,%d", rr, g, b)
	}

	// Content is 300px tall, so this is the last scroll position: the
	// image covers screen rows 0..50 and the background block 50..150.
	page.ScrollTo(150)
	r.RenderPage(context.Background(), page)
	if rr, g, b := rgbAt(r.Image(), 50, 20); rr != 255 || g != 0 || b != 0 {
		t.Errorf("scrolled image pixel = %d,%d,%d", rr, g, b)
	}
	if rr, g, b := rgbAt(r.Image(), 100, 120); rr != 0 || g != 0 || b != 255 {
		t.Errorf("background pixel = %d,%d,%d", rr, g, b)
	}
}

func TestRenderPlaceholderForUnloadedImage(t *testing.T) {
	doc, err := html.Parse(`<html><body style="margin:0"><img data-lazy-src="later.png" width="50" height="50"></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(100, 100, nil, nil)
	r.RenderPage(context.Background(), host.NewPage(doc, 100, 100))
	if rr, g, b := rgbAt(r.Image(), 25, 25); rr == 255 && g == 255 && b == 255 {
		t.Error("expected a placeholder, got blank page")
	}
	if rr, g, b := rgbAt(r.Image(), 75, 75); rr != 255 || g != 255 || b != 255 {
		t.Errorf("outside pixel = %d,%d,%d", rr, g, b)
	}
}

func TestParseCSSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`url("a.png")`, "a.png", true},
		{`url('b.png')`, "b.png", true},
		{`url(c.png)`, "c.png", true},
		{` url( "d.png" ) `, "d.png", true},
		{"none", "", false},
		{`url("")`, "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCSSURL(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCSSURL(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.Color
		ok   bool
	}{
		{"#fff", color.RGBA{255, 255, 255, 255}, true},
		{"#102030", color.RGBA{0x10, 0x20, 0x30, 255}, true},
		{"rgb(1, 2, 3)", color.RGBA{1, 2, 3, 255}, true},
		{"Red", color.RGBA{255, 0, 0, 255}, true},
		{"transparent", nil, false},
		{"#12", nil, false},
		{"rgb(300, 0, 0)", nil, false},
		{"notacolor", nil, false},
	}
	for _, tt := range tests {
		got, ok := ParseColor(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseColor(%q) ok = %v", tt.in, ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
