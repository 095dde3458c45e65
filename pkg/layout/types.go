package layout

import "lazyview/pkg/html"

type Box struct {
	Node     *html.Node
	X        float64
	Y        float64
	Width    float64 // Border-box width
	Height   float64 // Border-box height
	Children []*Box
	Parent   *Box

	// Positioned boxes are taken out of flow and placed by their top offset.
	Positioned bool
}

// Bottom returns the y coordinate of the box's bottom edge.
func (b *Box) Bottom() float64 {
	return b.Y + b.Height
}

type LayoutEngine struct {
	viewport struct {
		width  float64
		height float64
	}
	lineHeight float64
	charWidth  float64

	roots         []*Box
	boxes         map[*html.Node]*Box
	contentHeight float64
}

// edges holds the vertical and horizontal box model edges of one element.
type edges struct {
	Top, Right, Bottom, Left float64
}
