package html

import "strings"

// Classes returns the element's class tokens in attribute order.
func (n *Node) Classes() []string {
	attr, _ := n.GetAttribute("class")
	if attr == "" {
		return nil
	}
	return strings.Fields(attr)
}

func (n *Node) setClasses(classes []string) {
	if len(classes) == 0 {
		n.RemoveAttribute("class")
		return
	}
	n.SetAttribute("class", strings.Join(classes, " "))
}

// HasClass reports whether token is present in the class attribute.
func (n *Node) HasClass(token string) bool {
	return containsToken(n.Classes(), token)
}

// AddClass adds each whitespace-separated token of value that is not
// already present.
func (n *Node) AddClass(value string) {
	cls := n.Classes()
	for _, token := range strings.Fields(value) {
		if !containsToken(cls, token) {
			cls = append(cls, token)
		}
	}
	n.setClasses(cls)
}

// RemoveClass removes each whitespace-separated token of value.
func (n *Node) RemoveClass(value string) {
	cls := n.Classes()
	for _, token := range strings.Fields(value) {
		cls = removeToken(cls, token)
	}
	n.setClasses(cls)
}

// ToggleClass flips token and returns whether it is now present.
func (n *Node) ToggleClass(token string) bool {
	if n.HasClass(token) {
		n.RemoveClass(token)
		return false
	}
	n.AddClass(token)
	return true
}

func containsToken(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}

func removeToken(tokens []string, token string) []string {
	result := tokens[:0]
	for _, t := range tokens {
		if t != token {
			result = append(result, t)
		}
	}
	return result
}
