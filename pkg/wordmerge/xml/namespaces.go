package xml

import "strings"

// Namespace URIs used by the engine.
const (
	NamespaceW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NamespaceA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NamespacePic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NamespaceMC  = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	NamespaceW14 = "http://schemas.microsoft.com/office/word/2010/wordml"
)

// KnownNamespaces maps the conventional prefixes of WordprocessingML parts
// to their namespace URIs.
var KnownNamespaces = map[string]string{
	"w":     NamespaceW,
	"r":     NamespaceR,
	"m":     "http://schemas.openxmlformats.org/officeDocument/2006/math",
	"wp":    NamespaceWP,
	"a":     NamespaceA,
	"pic":   NamespacePic,
	"wp14":  "http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing",
	"a14":   "http://schemas.microsoft.com/office/drawing/2010/main",
	"v":     "urn:schemas-microsoft-com:vml",
	"o":     "urn:schemas-microsoft-com:office:office",
	"w10":   "urn:schemas-microsoft-com:office:word",
	"mc":    NamespaceMC,
	"wps":   "http://schemas.microsoft.com/office/word/2010/wordprocessingShape",
	"wpc":   "http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas",
	"wpg":   "http://schemas.microsoft.com/office/word/2010/wordprocessingGroup",
	"wpi":   "http://schemas.microsoft.com/office/word/2010/wordprocessingInk",
	"w14":   NamespaceW14,
	"w15":   "http://schemas.microsoft.com/office/word/2012/wordml",
	"w16se": "http://schemas.microsoft.com/office/word/2015/wordml/symex",
	"wne":   "http://schemas.microsoft.com/office/word/2006/wordml",
}

// Namespaces returns the xmlns declarations of the document element,
// keyed by prefix ("" for the default namespace).
func (t *Tree) Namespaces() map[string]string {
	out := make(map[string]string)
	root := t.DocumentElement()
	if root == None {
		return out
	}
	for _, a := range t.nodes[root].attrs {
		switch {
		case a.Name == "xmlns":
			out[""] = a.Value
		case strings.HasPrefix(a.Name, "xmlns:"):
			out[a.Name[len("xmlns:"):]] = a.Value
		}
	}
	return out
}

// PrefixFor returns the prefix the document element binds to uri, falling
// back to the conventional prefix.
func (t *Tree) PrefixFor(uri string) string {
	for prefix, u := range t.Namespaces() {
		if u == uri && prefix != "" {
			return prefix
		}
	}
	for prefix, u := range KnownNamespaces {
		if u == uri {
			return prefix
		}
	}
	return ""
}

// DeclareNamespace adds xmlns:prefix to the document element unless the
// prefix is already bound. It reports whether a declaration was added.
func (t *Tree) DeclareNamespace(prefix, uri string) bool {
	root := t.DocumentElement()
	if root == None || prefix == "" {
		return false
	}
	if _, ok := t.Attr(root, "xmlns:"+prefix); ok {
		return false
	}
	t.SetAttr(root, "xmlns:"+prefix, uri)
	return true
}
