package html

import (
	"fmt"
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
)

// Parse parses an HTML document into the package's node model.
func Parse(src string) (*Document, error) {
	return ParseReader(strings.NewReader(src))
}

// ParseReader parses an HTML document from r. Inline <script> bodies are
// collected into Document.Scripts and not added to the tree; <style>
// elements are dropped.
func ParseReader(r io.Reader) (*Document, error) {
	root, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	doc := NewDocument()
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		convert(doc, doc.Root, c)
	}
	return doc, nil
}

func convert(doc *Document, parent *Node, src *xhtml.Node) {
	switch src.Type {
	case xhtml.TextNode:
		parent.AppendText(src.Data)
	case xhtml.ElementNode:
		switch src.Data {
		case "script":
			if _, external := attrValue(src, "src"); !external {
				doc.Scripts = append(doc.Scripts, textOf(src))
			}
			return
		case "style":
			return
		}
		node := NewElement(src.Data, make(map[string]string, len(src.Attr)))
		for _, a := range src.Attr {
			node.Attributes[strings.ToLower(a.Key)] = a.Val
		}
		parent.AddChild(node)
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			convert(doc, node, c)
		}
	}
}

func attrValue(n *xhtml.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textOf(n *xhtml.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// Body returns the <body> element, or the document root if none exists.
func (d *Document) Body() *Node {
	var body *Node
	d.Root.Walk(func(n *Node) bool {
		if body != nil {
			return false
		}
		if n.Type == ElementNode && n.TagName == "body" {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return d.Root
	}
	return body
}
