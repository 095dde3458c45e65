package lazy

// Kind identifies one lazy attribute kind. The set is closed.
type Kind int

const (
	KindSrc Kind = iota
	KindSrcset
	KindSizes
	KindClass
	KindBackgroundImage

	kindCount
)

// Kinds lists every attribute kind in the order transitions apply them.
var Kinds = [kindCount]Kind{KindSrc, KindSrcset, KindSizes, KindClass, KindBackgroundImage}

var kindNames = [kindCount]string{"src", "srcset", "sizes", "class", "background-image"}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// DataKey is the data-* attribute suffix declaring the kind's lazy value.
func (k Kind) DataKey() string {
	return "lazy-" + k.String()
}

// Values holds the declared lazy value of each kind. An empty value means
// the kind is not declared on the element.
type Values [kindCount]string

// Get returns the lazy value for k and whether it is declared.
func (v Values) Get(k Kind) (string, bool) {
	if k < 0 || k >= kindCount {
		return "", false
	}
	return v[k], v[k] != ""
}

// Empty reports whether no kind is declared.
func (v Values) Empty() bool {
	for _, s := range v {
		if s != "" {
			return false
		}
	}
	return true
}

// Declared is everything an element declares about its own lazy loading.
type Declared struct {
	Values Values

	// Threshold is the raw per-element threshold ("150", "25%"), or "".
	Threshold string
	// Unload is the raw per-element unload override ("true", "false"), or "".
	Unload string
}

// ReadDeclared builds a Declared from a data-attribute lookup. Source,
// source-set and sizes only apply to img elements.
func ReadDeclared(isImg bool, data func(key string) (string, bool)) Declared {
	var d Declared
	for _, k := range Kinds {
		if !isImg && (k == KindSrc || k == KindSrcset || k == KindSizes) {
			continue
		}
		if v, ok := data(k.DataKey()); ok {
			d.Values[k] = v
		}
	}
	d.Threshold, _ = data("lazy-threshold")
	d.Unload, _ = data("lazy-unload")
	return d
}

// Box is the vertical geometry of an element in document coordinates.
type Box struct {
	Top    float64
	Height float64
}

// Element is a page element the controller can evaluate and mutate. Every
// method is called from the goroutine that owns the page.
type Element interface {
	Declared() Declared
	Box() Box

	Attr(name string) (string, bool)
	SetAttr(name, value string)
	AddClass(name string)
	RemoveClass(name string)
	// BackgroundImage returns the element's background-image value, or "".
	BackgroundImage() string
	SetBackgroundImage(value string)

	// Emit fires a payload-free named signal on the element.
	Emit(event string)

	// Record returns the lazy state owned by this element. It must return
	// the same pointer for the lifetime of the element.
	Record() *Record
}
