package js

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lazyview/pkg/html"
)

func parseHTML(t *testing.T, s string) *html.Document {
	t.Helper()
	doc, err := html.Parse(s)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return doc
}

func TestGetElementById(t *testing.T) {
	doc := parseHTML(t, `<div id="foo">hello</div>`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var el = document.getElementById("foo");
		if (el === null) throw new Error("element not found");
		if (el.id !== "foo") throw new Error("wrong id: " + el.id);
		if (el.tagName !== "DIV") throw new Error("wrong tagName: " + el.tagName);
		if (document.getElementById("foo") !== el) throw new Error("proxy identity lost");
		if (document.getElementById("missing") !== null) throw new Error("expected null");
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}
}

func TestGetElementsByTagName(t *testing.T) {
	doc := parseHTML(t, `<p>one</p><p>two</p><div>three</div>`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var ps = document.getElementsByTagName("p");
		if (ps.length !== 2) throw new Error("expected 2 p tags, got: " + ps.length);
		if (document.body.tagName !== "BODY") throw new Error("document.body missing");
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}
}

func TestSetTextContent(t *testing.T) {
	doc := parseHTML(t, `<p id="target">original</p>`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		document.getElementById("target").textContent = "changed";
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}

	if got := getTextContent(doc.Root.GetElementByID("target")); got != "changed" {
		t.Errorf("textContent = %q, want %q", got, "changed")
	}
}

func TestStyleBackgroundImage(t *testing.T) {
	doc := parseHTML(t, `<div id="box" style="color: red">box</div>`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var el = document.getElementById("box");
		el.style.backgroundImage = 'url("a.png")';
		if (el.style.backgroundImage !== 'url("a.png")') throw new Error("read back: " + el.style.backgroundImage);
		if (el.style.color !== "red") throw new Error("color lost");
		el.style.color = "";
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}

	node := doc.Root.GetElementByID("box")
	if got := node.Style("background-image"); got != `url("a.png")` {
		t.Errorf("background-image = %q", got)
	}
	if got := node.Style("color"); got != "" {
		t.Errorf("color = %q after clearing", got)
	}
}

func TestAttributes(t *testing.T) {
	doc := parseHTML(t, `<img id="target" data-lazy-src="a.png">`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var el = document.getElementById("target");
		if (el.getAttribute("data-lazy-src") !== "a.png") throw new Error("getAttribute");
		if (el.getAttribute("src") !== null) throw new Error("absent attribute should be null");
		el.setAttribute("SRC", "b.png");
		if (!el.hasAttribute("src")) throw new Error("setAttribute lowercases names");
		el.removeAttribute("data-lazy-src");
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}

	node := doc.Root.GetElementByID("target")
	if v, _ := node.GetAttribute("src"); v != "b.png" {
		t.Errorf("src = %q", v)
	}
	if _, ok := node.GetAttribute("data-lazy-src"); ok {
		t.Error("data-lazy-src should be removed")
	}
}

func TestDataset(t *testing.T) {
	doc := parseHTML(t, `<div id="el" data-lazy-background-image="bg.png"></div>`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var el = document.getElementById("el");
		if (el.dataset.lazyBackgroundImage !== "bg.png") throw new Error("dataset read: " + el.dataset.lazyBackgroundImage);
		if (el.dataset.lazyClass !== undefined) throw new Error("absent key should be undefined");
		el.dataset.lazyThreshold = "10%";
		if (Object.keys(el.dataset).length !== 2) throw new Error("keys: " + Object.keys(el.dataset));
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Root.GetElementByID("el").Data("lazy-threshold"); v != "10%" {
		t.Errorf("data-lazy-threshold = %q", v)
	}
}

func TestEventListeners(t *testing.T) {
	doc := parseHTML(t, `<img id="el">`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var seen = [];
		var el = document.getElementById("el");
		function onLoaded(ev) { seen.push(ev.type + "@" + ev.target.id); }
		el.addEventListener("lazy-loaded", onLoaded);
		el.addEventListener("lazy-loaded", onLoaded);
		el.addEventListener("lazy-loaded", function() { throw new Error("listener failure"); });
		el.addEventListener("lazy-unloaded", function(ev) { seen.push(ev.type); });
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}

	node := doc.Root.GetElementByID("el")
	if n := node.DispatchEvent("lazy-loaded"); n != 2 {
		t.Errorf("dispatched to %d listeners, want 2", n)
	}
	node.DispatchEvent("lazy-unloaded")

	got, err := engine.Run(doc, `
		document.getElementById("el").removeEventListener("lazy-loaded", onLoaded);
		seen.join(",")`)
	if err != nil {
		t.Fatal(err)
	}
	if got != "lazy-loaded@el,lazy-unloaded" {
		t.Errorf("seen = %v", got)
	}
	if n := node.DispatchEvent("lazy-loaded"); n != 1 {
		t.Errorf("after removal dispatched to %d listeners, want 1", n)
	}
}

func TestAddEventListenerRequiresFunction(t *testing.T) {
	doc := parseHTML(t, `<img id="el">`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var threw = false;
		try { document.getElementById("el").addEventListener("lazy-loaded", 42); } catch (e) { threw = e instanceof TypeError; }
		if (!threw) throw new Error("expected TypeError");
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}
}

func TestConsoleUsesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	doc := parseHTML(t, `<p>text</p>`)
	engine := New(zap.New(core))
	doc.Scripts = append(doc.Scripts, `
		console.log("loaded", 3);
		console.warn("careful");
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	if entries[0].Message != "loaded 3" || entries[0].Level != zapcore.InfoLevel {
		t.Errorf("entry 0 = %q at %v", entries[0].Message, entries[0].Level)
	}
	if entries[1].Message != "careful" || entries[1].Level != zapcore.WarnLevel {
		t.Errorf("entry 1 = %q at %v", entries[1].Message, entries[1].Level)
	}
	if entries[0].LoggerName != "console" {
		t.Errorf("logger name = %q", entries[0].LoggerName)
	}
}

func TestScriptError(t *testing.T) {
	doc := parseHTML(t, `<p>text</p>`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `throw new Error("test error");`)
	if err := engine.Execute(doc); err == nil {
		t.Fatal("expected error from script")
	}
}

func TestIsInViewWithoutLazy(t *testing.T) {
	doc := parseHTML(t, `<img id="el">`)
	engine := New(nil)
	doc.Scripts = append(doc.Scripts, `
		var threw = false;
		try { document.getElementById("el").isInView(); } catch (e) { threw = true; }
		if (!threw) throw new Error("isInView should fail without LazyImage");
	`)
	if err := engine.Execute(doc); err != nil {
		t.Fatal(err)
	}
}

func TestCaseConversion(t *testing.T) {
	tests := []struct {
		camel, kebab string
	}{
		{"color", "color"},
		{"backgroundImage", "background-image"},
		{"lazySrc", "lazy-src"},
		{"lazyBackgroundImage", "lazy-background-image"},
	}
	for _, tt := range tests {
		if got := camelToKebab(tt.camel); got != tt.kebab {
			t.Errorf("camelToKebab(%q) = %q, want %q", tt.camel, got, tt.kebab)
		}
		if got := kebabToCamel(tt.kebab); got != tt.camel {
			t.Errorf("kebabToCamel(%q) = %q, want %q", tt.kebab, got, tt.camel)
		}
	}
	if got := camelToKebab("cssFloat"); got != "float" {
		t.Errorf("cssFloat = %q", got)
	}
}
