package html

import "strings"

// Declaration is a single property: value pair of an inline style.
type Declaration struct {
	Property string
	Value    string
}

// ParseInlineStyle parses a style attribute into declarations, keeping
// source order. Later duplicates replace earlier ones in place.
func ParseInlineStyle(s string) []Declaration {
	var decls []Declaration
	for _, part := range splitDeclarations(s) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, ':')
		if idx < 0 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(part[:idx]))
		val := strings.TrimSpace(part[idx+1:])
		if prop == "" {
			continue
		}
		decls = setDeclaration(decls, prop, val)
	}
	return decls
}

// splitDeclarations splits on ';' outside of quotes and parentheses so
// url("a;b") survives.
func splitDeclarations(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ';' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// SerializeInlineStyle converts declarations back to a style attribute.
func SerializeInlineStyle(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.Property+": "+d.Value)
	}
	return strings.Join(parts, "; ")
}

func setDeclaration(decls []Declaration, prop, val string) []Declaration {
	for i := range decls {
		if decls[i].Property == prop {
			decls[i].Value = val
			return decls
		}
	}
	return append(decls, Declaration{Property: prop, Value: val})
}

// Style returns the inline style value of prop, or "" when unset.
func (n *Node) Style(prop string) string {
	attr, _ := n.GetAttribute("style")
	prop = strings.ToLower(prop)
	for _, d := range ParseInlineStyle(attr) {
		if d.Property == prop {
			return d.Value
		}
	}
	return ""
}

// SetStyle sets an inline style property. An empty value removes it.
func (n *Node) SetStyle(prop, value string) {
	attr, _ := n.GetAttribute("style")
	prop = strings.ToLower(prop)
	decls := ParseInlineStyle(attr)
	if value == "" {
		kept := decls[:0]
		for _, d := range decls {
			if d.Property != prop {
				kept = append(kept, d)
			}
		}
		decls = kept
	} else {
		decls = setDeclaration(decls, prop, value)
	}
	if len(decls) == 0 {
		n.RemoveAttribute("style")
		return
	}
	n.SetAttribute("style", SerializeInlineStyle(decls))
}
