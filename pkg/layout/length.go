package layout

import (
	"strconv"
	"strings"
)

const defaultFontSize = 16.0

// parseLength resolves a CSS length. Percentages resolve against
// percentBase and vh units against the viewport height. Returns false for
// "auto", empty and unparseable values.
func (le *LayoutEngine) parseLength(value string, percentBase float64) (float64, bool) {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" || v == "auto" {
		return 0, false
	}
	unit := ""
	for _, u := range []string{"px", "vh", "vw", "rem", "em", "%"} {
		if strings.HasSuffix(v, u) {
			unit = u
			v = strings.TrimSpace(strings.TrimSuffix(v, u))
			break
		}
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	switch unit {
	case "%":
		return percentBase * n / 100, true
	case "vh":
		return le.viewport.height * n / 100, true
	case "vw":
		return le.viewport.width * n / 100, true
	case "em", "rem":
		return n * defaultFontSize, true
	}
	return n, true
}

// parseEdges expands a margin or padding shorthand plus its longhands.
func (le *LayoutEngine) parseEdges(style func(string) string, prop string, percentBase float64) edges {
	var e edges
	if short := strings.Fields(style(prop)); len(short) > 0 {
		vals := make([]float64, len(short))
		for i, s := range short {
			vals[i], _ = le.parseLength(s, percentBase)
		}
		switch len(vals) {
		case 1:
			e = edges{vals[0], vals[0], vals[0], vals[0]}
		case 2:
			e = edges{vals[0], vals[1], vals[0], vals[1]}
		case 3:
			e = edges{vals[0], vals[1], vals[2], vals[1]}
		default:
			e = edges{vals[0], vals[1], vals[2], vals[3]}
		}
	}
	if v, ok := le.parseLength(style(prop+"-top"), percentBase); ok {
		e.Top = v
	}
	if v, ok := le.parseLength(style(prop+"-right"), percentBase); ok {
		e.Right = v
	}
	if v, ok := le.parseLength(style(prop+"-bottom"), percentBase); ok {
		e.Bottom = v
	}
	if v, ok := le.parseLength(style(prop+"-left"), percentBase); ok {
		e.Left = v
	}
	return e
}
