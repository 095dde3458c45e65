package lazy

// IsVisible reports whether box, expanded by distance on both sides,
// intersects window. Both boundaries are inclusive.
func IsVisible(box Box, distance float64, window Window) bool {
	expandedTop := box.Top - distance
	expandedBottom := box.Top + box.Height + distance
	return expandedTop <= window.Bottom && expandedBottom >= window.Top
}
