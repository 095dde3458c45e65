package layout

import (
	"math"
	"strings"

	"lazyview/pkg/html"
)

// Replaced elements without explicit dimensions get the CSS default object
// size.
const (
	defaultReplacedWidth  = 300.0
	defaultReplacedHeight = 150.0
)

func NewLayoutEngine(viewportWidth, viewportHeight float64) *LayoutEngine {
	le := &LayoutEngine{
		lineHeight: defaultFontSize * 1.25,
		charWidth:  defaultFontSize * 0.5,
	}
	le.viewport.width = viewportWidth
	le.viewport.height = viewportHeight
	return le
}

// Layout lays out the document as stacked blocks and returns the top-level
// boxes. Every element box is retrievable afterwards through BoxFor.
func (le *LayoutEngine) Layout(doc *html.Document) []*Box {
	le.boxes = make(map[*html.Node]*Box)
	le.contentHeight = 0

	var roots []*Box
	y := 0.0
	for _, child := range doc.Root.Children {
		box, _, marginBottom := le.layoutChild(child, 0, y, le.viewport.width, nil)
		if box == nil {
			continue
		}
		roots = append(roots, box)
		if !box.Positioned {
			y = box.Bottom() + marginBottom
		}
	}
	le.contentHeight = math.Max(le.contentHeight, y)
	le.roots = roots
	return roots
}

// Boxes returns the top-level boxes of the last Layout.
func (le *LayoutEngine) Boxes() []*Box {
	return le.roots
}

// BoxFor returns the box generated for an element by the last Layout.
func (le *LayoutEngine) BoxFor(node *html.Node) (*Box, bool) {
	b, ok := le.boxes[node]
	return b, ok
}

// ContentHeight is the bottom edge of the lowest box of the last Layout.
func (le *LayoutEngine) ContentHeight() float64 {
	return le.contentHeight
}

// Viewport returns the viewport size the engine lays out against.
func (le *LayoutEngine) Viewport() (width, height float64) {
	return le.viewport.width, le.viewport.height
}

// layoutChild places node with its top margin edge at y and returns its box
// together with its vertical margins.
func (le *LayoutEngine) layoutChild(node *html.Node, x, y, availableWidth float64, parent *Box) (*Box, float64, float64) {
	if node.Type == html.TextNode {
		box := le.layoutText(node, x, y, availableWidth, parent)
		return box, 0, 0
	}
	if !isRendered(node) {
		return nil, 0, 0
	}
	style := node.Style
	margin := le.parseEdges(style, "margin", availableWidth)

	if strings.TrimSpace(style("position")) == "absolute" {
		top, _ := le.parseLength(style("top"), le.viewport.height)
		left, _ := le.parseLength(style("left"), le.viewport.width)
		box := le.layoutNode(node, left+margin.Left, top+margin.Top, availableWidth-margin.Left-margin.Right, parent)
		box.Positioned = true
		return box, margin.Top, margin.Bottom
	}

	box := le.layoutNode(node, x+margin.Left, y+margin.Top, availableWidth-margin.Left-margin.Right, parent)
	return box, margin.Top, margin.Bottom
}

// layoutNode lays out an element whose border box starts at (x, y).
func (le *LayoutEngine) layoutNode(node *html.Node, x, y, availableWidth float64, parent *Box) *Box {
	style := node.Style
	padding := le.parseEdges(style, "padding", availableWidth)
	border := le.borderWidth(node)

	box := &Box{Node: node, X: x, Y: y, Width: availableWidth, Parent: parent}
	le.boxes[node] = box

	if w, ok := le.dimension(node, "width", availableWidth); ok {
		box.Width = w + padding.Left + padding.Right + 2*border
	} else if isReplaced(node) {
		box.Width = defaultReplacedWidth + padding.Left + padding.Right + 2*border
	}

	contentTop := y + border + padding.Top
	contentWidth := box.Width - padding.Left - padding.Right - 2*border
	cursor := contentTop
	for _, child := range node.Children {
		cb, _, marginBottom := le.layoutChild(child, x+border+padding.Left, cursor, contentWidth, box)
		if cb == nil {
			continue
		}
		box.Children = append(box.Children, cb)
		if !cb.Positioned {
			cursor = cb.Bottom() + marginBottom
		}
	}

	contentHeight := cursor - contentTop
	if h, ok := le.dimension(node, "height", le.viewport.height); ok {
		contentHeight = h
	} else if isReplaced(node) {
		contentHeight = le.replacedHeight(node, box.Width-padding.Left-padding.Right-2*border)
	}
	if mh, ok := le.parseLength(style("min-height"), le.viewport.height); ok && contentHeight < mh {
		contentHeight = mh
	}
	box.Height = contentHeight + padding.Top + padding.Bottom + 2*border
	le.contentHeight = math.Max(le.contentHeight, box.Bottom())
	return box
}

// layoutText gives a text run as many lines as it needs at the engine's
// fixed average character width.
func (le *LayoutEngine) layoutText(node *html.Node, x, y, availableWidth float64, parent *Box) *Box {
	text := strings.TrimSpace(node.Text)
	if text == "" {
		return nil
	}
	perLine := math.Max(1, math.Floor(availableWidth/le.charWidth))
	lines := math.Ceil(float64(len([]rune(text))) / perLine)
	box := &Box{Node: node, X: x, Y: y, Width: availableWidth, Height: lines * le.lineHeight, Parent: parent}
	le.contentHeight = math.Max(le.contentHeight, box.Bottom())
	return box
}

// dimension reads width or height from inline style, then from the
// presentational attribute.
func (le *LayoutEngine) dimension(node *html.Node, prop string, percentBase float64) (float64, bool) {
	if v, ok := le.parseLength(node.Style(prop), percentBase); ok {
		return v, true
	}
	if attr, ok := node.GetAttribute(prop); ok {
		return le.parseLength(attr, percentBase)
	}
	return 0, false
}

// replacedHeight keeps the aspect ratio when only the width is known.
func (le *LayoutEngine) replacedHeight(node *html.Node, width float64) float64 {
	if _, ok := le.dimension(node, "width", le.viewport.width); ok {
		return width * defaultReplacedHeight / defaultReplacedWidth
	}
	return defaultReplacedHeight
}

func (le *LayoutEngine) borderWidth(node *html.Node) float64 {
	if v, ok := le.parseLength(node.Style("border-width"), 0); ok {
		return v
	}
	for _, part := range strings.Fields(node.Style("border")) {
		if v, ok := le.parseLength(part, 0); ok {
			return v
		}
	}
	return 0
}

func isRendered(node *html.Node) bool {
	switch node.TagName {
	case "head", "title", "meta", "link", "script", "style", "template", "noscript":
		return false
	}
	if strings.TrimSpace(node.Style("display")) == "none" {
		return false
	}
	_, hidden := node.GetAttribute("hidden")
	return !hidden
}

func isReplaced(node *html.Node) bool {
	switch node.TagName {
	case "img", "video", "iframe", "canvas", "embed", "object":
		return true
	}
	return false
}
