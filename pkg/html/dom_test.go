package html

import "testing"

func makeTree() *Node {
	// <div id="parent"><span>hello</span><img data-lazy-src="a.png"></div>
	parent := NewElement("div", map[string]string{"id": "parent"})
	span := NewElement("span", nil)
	span.AppendText("hello")
	parent.AddChild(span)

	img := NewElement("img", map[string]string{"id": "pic", "data-lazy-src": "a.png"})
	parent.AddChild(img)

	return parent
}

func TestRemoveChild(t *testing.T) {
	parent := makeTree()
	span := parent.Children[0]
	removed := parent.RemoveChild(span)
	if removed != span {
		t.Fatal("RemoveChild should return the removed child")
	}
	if span.Parent != nil {
		t.Error("removed child should have nil parent")
	}
	if len(parent.Children) != 1 {
		t.Errorf("expected 1 child, got %d", len(parent.Children))
	}
	if parent.RemoveChild(NewElement("em", nil)) != nil {
		t.Error("RemoveChild of non-child should return nil")
	}
}

func TestGetElementByID(t *testing.T) {
	parent := makeTree()
	if got := parent.GetElementByID("pic"); got == nil || got.TagName != "img" {
		t.Fatalf("GetElementByID(pic) = %v", got)
	}
	if parent.GetElementByID("missing") != nil {
		t.Error("expected nil for missing id")
	}
}

func TestFindAll(t *testing.T) {
	parent := makeTree()
	got := parent.FindAll(func(n *Node) bool {
		_, ok := n.Data("lazy-src")
		return ok
	})
	if len(got) != 1 || got[0].TagName != "img" {
		t.Fatalf("FindAll returned %d nodes", len(got))
	}
}

func TestData(t *testing.T) {
	img := makeTree().Children[1]
	v, ok := img.Data("lazy-src")
	if !ok || v != "a.png" {
		t.Errorf("Data(lazy-src) = %q, %v", v, ok)
	}
	if _, ok := img.Data("lazy-srcset"); ok {
		t.Error("absent data attribute reported present")
	}
}

func TestSerialize(t *testing.T) {
	parent := makeTree()
	got := parent.Serialize()
	want := `<span>hello</span><img data-lazy-src="a.png" id="pic">`
	if got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestSerializeEscaping(t *testing.T) {
	n := NewElement("p", nil)
	n.AppendText(`<b>"hello" & 'world'</b>`)
	got := n.Serialize()
	want := `&lt;b&gt;"hello" &amp; 'world'&lt;/b&gt;`
	if got != want {
		t.Errorf("Serialize() = %q, want %q", got, want)
	}
}

func TestSerializeAttributes(t *testing.T) {
	n := NewElement("a", map[string]string{"href": "/test", "class": "link", "title": `say "hi"`})
	n.AppendText("click")
	got := n.SerializeOuter()
	// Attributes sorted alphabetically
	want := `<a class="link" href="/test" title="say &quot;hi&quot;">click</a>`
	if got != want {
		t.Errorf("SerializeOuter() = %q, want %q", got, want)
	}
}

func TestClassList(t *testing.T) {
	n := NewElement("div", map[string]string{"class": "a b"})
	n.AddClass("c b")
	if got, _ := n.GetAttribute("class"); got != "a b c" {
		t.Errorf("after AddClass class = %q", got)
	}
	n.RemoveClass("a c")
	if got, _ := n.GetAttribute("class"); got != "b" {
		t.Errorf("after RemoveClass class = %q", got)
	}
	if !n.HasClass("b") || n.HasClass("a") {
		t.Error("HasClass mismatch")
	}
	n.RemoveClass("b")
	if _, ok := n.GetAttribute("class"); ok {
		t.Error("empty class list should drop the attribute")
	}
	if !n.ToggleClass("x") || n.ToggleClass("x") {
		t.Error("ToggleClass should report new presence")
	}
}

func TestInlineStyle(t *testing.T) {
	n := NewElement("div", map[string]string{
		"style": `height: 100px; background-image: url("a;b.png")`,
	})
	if got := n.Style("background-image"); got != `url("a;b.png")` {
		t.Errorf("background-image = %q", got)
	}
	if got := n.Style("HEIGHT"); got != "100px" {
		t.Errorf("height = %q", got)
	}
	n.SetStyle("background-image", "none")
	n.SetStyle("color", "red")
	if got, _ := n.GetAttribute("style"); got != "height: 100px; background-image: none; color: red" {
		t.Errorf("style = %q", got)
	}
	n.SetStyle("height", "")
	n.SetStyle("background-image", "")
	n.SetStyle("color", "")
	if _, ok := n.GetAttribute("style"); ok {
		t.Error("style attribute should be removed when empty")
	}
}

func TestEventListeners(t *testing.T) {
	n := NewElement("img", nil)
	var got []string
	remove := n.AddEventListener("lazy-loaded", func(target *Node, ev string) {
		if target != n {
			t.Error("listener got wrong target")
		}
		got = append(got, "first:"+ev)
	})
	n.AddEventListener("lazy-loaded", func(_ *Node, ev string) {
		got = append(got, "second:"+ev)
	})
	if c := n.DispatchEvent("lazy-loaded"); c != 2 {
		t.Errorf("dispatched to %d listeners, want 2", c)
	}
	remove()
	n.DispatchEvent("lazy-loaded")
	n.DispatchEvent("lazy-unloaded")
	want := []string{"first:lazy-loaded", "second:lazy-loaded", "second:lazy-loaded"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}
