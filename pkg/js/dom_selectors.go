package js

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"lazyview/pkg/html"
)

// selector is a parsed selector group. Each alternative is a chain of
// compounds joined by descendant combinators.
type selector [][]compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrTest
}

type attrTest struct {
	name     string
	value    string
	hasValue bool
}

// parseSelector parses the subset used by lazy-loading scripts: type, #id,
// .class, [attr] and [attr=value] compounds, descendant combinators and
// comma-separated groups.
func parseSelector(src string) (selector, error) {
	var sel selector
	for _, part := range splitGroup(src) {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty selector in %q", src)
		}
		var chain []compound
		for _, tok := range splitCompounds(part) {
			c, err := parseCompound(tok)
			if err != nil {
				return nil, err
			}
			chain = append(chain, c)
		}
		sel = append(sel, chain)
	}
	if len(sel) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	return sel, nil
}

// splitGroup splits on commas outside brackets and quotes.
func splitGroup(s string) []string {
	var parts []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// splitCompounds splits on whitespace outside brackets.
func splitCompounds(s string) []string {
	var parts []string
	var cur strings.Builder
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case (c == ' ' || c == '\t' || c == '\n') && depth == 0:
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteByte(c)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	ident := func() string {
		start := i
		for i < len(s) && isIdentChar(s[i]) {
			i++
		}
		return s[start:i]
	}
	if i < len(s) && s[i] == '*' {
		i++
	} else {
		c.tag = strings.ToLower(ident())
	}
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			if c.id = ident(); c.id == "" {
				return c, fmt.Errorf("bad id in %q", s)
			}
		case '.':
			i++
			cls := ident()
			if cls == "" {
				return c, fmt.Errorf("bad class in %q", s)
			}
			c.classes = append(c.classes, cls)
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return c, fmt.Errorf("unterminated attribute in %q", s)
			}
			body := s[i+1 : i+end]
			i += end + 1
			at := attrTest{name: strings.ToLower(strings.TrimSpace(body))}
			if eq := strings.IndexByte(body, '='); eq >= 0 {
				at.name = strings.ToLower(strings.TrimSpace(body[:eq]))
				at.value = strings.Trim(strings.TrimSpace(body[eq+1:]), `"'`)
				at.hasValue = true
			}
			if at.name == "" {
				return c, fmt.Errorf("bad attribute in %q", s)
			}
			c.attrs = append(c.attrs, at)
		default:
			return c, fmt.Errorf("unsupported selector syntax %q", s)
		}
	}
	return c, nil
}

func isIdentChar(b byte) bool {
	return b == '-' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode || n.TagName == "document" {
		return false
	}
	if c.tag != "" && n.TagName != c.tag {
		return false
	}
	if c.id != "" {
		if id, _ := n.GetAttribute("id"); id != c.id {
			return false
		}
	}
	for _, cls := range c.classes {
		if !n.HasClass(cls) {
			return false
		}
	}
	for _, at := range c.attrs {
		v, ok := n.GetAttribute(at.name)
		if !ok || at.hasValue && v != at.value {
			return false
		}
	}
	return true
}

// matches reports whether n matches any alternative of the group.
func (sel selector) matches(n *html.Node) bool {
	for _, chain := range sel {
		if matchChain(n, chain) {
			return true
		}
	}
	return false
}

func matchChain(n *html.Node, chain []compound) bool {
	last := len(chain) - 1
	if !chain[last].matches(n) {
		return false
	}
	i := last - 1
	for p := n.Parent; p != nil && i >= 0; p = p.Parent {
		if chain[i].matches(p) {
			i--
		}
	}
	return i < 0
}

// registerQuerySelectors adds querySelector/querySelectorAll to a document object.
func registerQuerySelectors(ctx *domContext, obj *goja.Object, root *html.Node) {
	obj.Set("querySelector", querySelectorFn(ctx, root))
	obj.Set("querySelectorAll", querySelectorAllFn(ctx, root))
}

func (ctx *domContext) mustParse(method string, call goja.FunctionCall) selector {
	if len(call.Arguments) == 0 {
		panic(ctx.vm.NewTypeError(fmt.Sprintf("Failed to execute '%s': 1 argument required", method)))
	}
	sel, err := parseSelector(call.Arguments[0].String())
	if err != nil {
		panic(ctx.vm.NewTypeError(fmt.Sprintf("Failed to execute '%s': %v", method, err)))
	}
	return sel
}

// querySelectorFn returns a JS function implementing querySelector.
func querySelectorFn(ctx *domContext, root *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		sel := ctx.mustParse("querySelector", call)
		var result *html.Node
		root.Walk(func(n *html.Node) bool {
			if result != nil {
				return false
			}
			if n != root && sel.matches(n) {
				result = n
				return false
			}
			return true
		})
		if result == nil {
			return goja.Null()
		}
		return ctx.elementProxy(result)
	}
}

// querySelectorAllFn returns a JS function implementing querySelectorAll.
func querySelectorAllFn(ctx *domContext, root *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		sel := ctx.mustParse("querySelectorAll", call)
		results := root.FindAll(func(n *html.Node) bool {
			return n != root && sel.matches(n)
		})
		return ctx.elementArray(results)
	}
}

// matchesFn returns a JS function implementing element.matches(selector).
func matchesFn(ctx *domContext, node *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		return ctx.vm.ToValue(ctx.mustParse("matches", call).matches(node))
	}
}
