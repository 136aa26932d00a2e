package render

import (
	"strings"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// containers hold block content and must never be removed, only emptied.
var containers = map[string]bool{
	"w:body":        true,
	"w:tc":          true,
	"w:hdr":         true,
	"w:ftr":         true,
	"w:txbxContent": true,
	"w:footnote":    true,
	"w:endnote":     true,
	"w:comment":     true,
	"w:document":    true,
}

// requiresBlock lists the containers that must keep at least one block.
var requiresBlock = map[string]bool{
	"w:tc":          true,
	"w:hdr":         true,
	"w:ftr":         true,
	"w:txbxContent": true,
	"w:footnote":    true,
	"w:endnote":     true,
	"w:comment":     true,
}

var markupOnly = map[string]bool{
	"tblGrid":               true,
	"proofErr":              true,
	"bookmarkStart":         true,
	"bookmarkEnd":           true,
	"lastRenderedPageBreak": true,
	"permStart":             true,
	"permEnd":               true,
}

// emptyLeaves are elements that show nothing when they have no children.
var emptyLeaves = map[string]bool{
	"w:t":          true,
	"w:instrText":  true,
	"w:delText":    true,
	"w:r":          true,
	"w:p":          true,
	"w:tc":         true,
	"w:tr":         true,
	"w:tbl":        true,
	"w:hyperlink":  true,
	"w:fldSimple":  true,
	"w:sdtContent": true,
	"w:smartTag":   true,
}

// IsContainer reports whether id is a block container such as a body or a
// table cell.
func IsContainer(t *xml.Tree, id xml.NodeID) bool {
	return t.IsElement(id) && containers[t.Name(id)]
}

func isMarkup(t *xml.Tree, id xml.NodeID) bool {
	local := t.Local(id)
	return strings.HasSuffix(local, "Pr") || strings.HasSuffix(local, "PrEx") || markupOnly[local]
}

// HasContent reports whether id holds anything a reader would see: non-blank
// text, breaks, drawings, fields, or any foreign-namespace element. Property
// elements do not count unless they carry a section break.
func HasContent(t *xml.Tree, id xml.NodeID) bool {
	for c := t.FirstChild(id); c != xml.None; c = t.NextSibling(c) {
		if shows(t, c) {
			return true
		}
	}
	return false
}

func shows(t *xml.Tree, c xml.NodeID) bool {
	switch t.Kind(c) {
	case xml.TextNode:
		return strings.TrimSpace(t.Data(c)) != ""
	case xml.ElementNode:
		if isMarkup(t, c) {
			return t.Is(c, "w:sectPr") || t.Find(c, "w:sectPr") != xml.None
		}
		if t.FirstChild(c) == xml.None {
			return !emptyLeaves[t.Name(c)]
		}
		return HasContent(t, c)
	}
	return false
}

// EnsureBlock appends an empty paragraph to a container that must hold at
// least one block and has none left.
func EnsureBlock(t *xml.Tree, id xml.NodeID) {
	if !t.IsElement(id) || !requiresBlock[t.Name(id)] {
		return
	}
	for c := t.FirstChild(id); c != xml.None; c = t.NextSibling(c) {
		switch t.Name(c) {
		case "w:p", "w:tbl", "w:sdt", "w:altChunk", "w:customXml":
			return
		}
	}
	t.AppendChild(id, t.NewElement("w:p"))
}

// ClearCell removes everything from a table cell except its properties and
// leaves one empty paragraph, keeping the table grid intact.
func ClearCell(t *xml.Tree, tc xml.NodeID) {
	for _, c := range t.Children(tc) {
		if !t.Is(c, "w:tcPr") {
			t.Remove(c)
		}
	}
	t.AppendChild(tc, t.NewElement("w:p"))
}

func removeOrClear(t *xml.Tree, id xml.NodeID) {
	if t.Is(id, "w:tc") {
		ClearCell(t, id)
		return
	}
	t.Remove(id)
}

// BlockAncestor returns the nearest ancestor-or-self of id whose parent is a
// block container, or None.
func BlockAncestor(t *xml.Tree, id xml.NodeID) xml.NodeID {
	for n := id; n != xml.None; n = t.Parent(n) {
		p := t.Parent(n)
		if p != xml.None && IsContainer(t, p) {
			return n
		}
	}
	return xml.None
}

// PruneParagraph removes p if it was left without content, unless it is the
// last block of a container that needs one.
func PruneParagraph(t *xml.Tree, p xml.NodeID) bool {
	if !t.Is(p, "w:p") || !t.Attached(p) || HasContent(t, p) {
		return false
	}
	parent := t.Parent(p)
	if requiresBlock[t.Name(parent)] {
		blocks := 0
		for c := t.FirstChild(parent); c != xml.None; c = t.NextSibling(c) {
			if t.Is(c, "w:p") || t.Is(c, "w:tbl") {
				blocks++
			}
		}
		if blocks <= 1 {
			return false
		}
	}
	t.Remove(p)
	return true
}
