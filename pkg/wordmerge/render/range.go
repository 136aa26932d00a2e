package render

import (
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// RemoveRange deletes start, end and everything between them in document
// order. The two nodes may sit at different depths. Ancestors emptied by the
// removal go too, while block containers are emptied instead of removed and
// table cells are cleared rather than deleted so rows keep their grid.
// Nothing outside the range is touched. It reports false when either node is
// already detached.
func RemoveRange(t *xml.Tree, start, end xml.NodeID) bool {
	if !t.Attached(start) || !t.Attached(end) {
		return false
	}
	if t.Contains(start, end) {
		parent := t.Parent(start)
		removeOrClear(t, start)
		EnsureBlock(t, parent)
		return true
	}
	if t.Contains(end, start) {
		parent := t.Parent(end)
		removeOrClear(t, end)
		EnsureBlock(t, parent)
		return true
	}

	lca := t.CommonAncestor(start, end)
	s := childToward(t, lca, start)
	e := childToward(t, lca, end)

	var touched []xml.NodeID
	removeS := climb(t, start, s, true, &touched)
	for n := t.NextSibling(s); n != xml.None && n != e; {
		next := t.NextSibling(n)
		removeOrClear(t, n)
		n = next
	}
	removeE := climb(t, end, e, false, &touched)
	if removeS {
		removeOrClear(t, s)
	}
	if removeE {
		removeOrClear(t, e)
	}
	for _, c := range touched {
		EnsureBlock(t, c)
	}
	if !IsContainer(t, lca) && t.Parent(lca) != t.Root() && !HasContent(t, lca) {
		parent := t.Parent(lca)
		removeOrClear(t, lca)
		EnsureBlock(t, parent)
	} else {
		EnsureBlock(t, lca)
	}
	return true
}

// climb walks from n up to top, removing everything after n (forward) or
// before n (backward) at every level. It reports whether top has nothing
// left outside the range.
func climb(t *xml.Tree, n, top xml.NodeID, forward bool, touched *[]xml.NodeID) bool {
	removeSelf := true
	for x := n; x != top; {
		p := t.Parent(x)
		for y := sibling(t, x, forward); y != xml.None; {
			next := sibling(t, y, forward)
			removeOrClear(t, y)
			y = next
		}
		if removeSelf {
			removeOrClear(t, x)
		}
		if IsContainer(t, p) {
			*touched = append(*touched, p)
			removeSelf = false
		} else {
			removeSelf = !HasContent(t, p)
		}
		x = p
	}
	return removeSelf
}

func sibling(t *xml.Tree, n xml.NodeID, forward bool) xml.NodeID {
	if forward {
		return t.NextSibling(n)
	}
	return t.PrevSibling(n)
}

// childToward returns the child of ancestor on the path to n.
func childToward(t *xml.Tree, ancestor, n xml.NodeID) xml.NodeID {
	for t.Parent(n) != ancestor {
		n = t.Parent(n)
	}
	return n
}

// IsolateRange splits the paragraphs holding start and end when they
// differ, so that content before start and after end moves into paragraphs
// of their own.
func IsolateRange(t *xml.Tree, start, end xml.NodeID) {
	ps := t.Ancestor(start, "w:p")
	pe := t.Ancestor(end, "w:p")
	if ps == xml.None || pe == xml.None || t.Contains(ps, pe) || t.Contains(pe, ps) {
		return
	}
	SplitBefore(t, start)
	SplitAfter(t, end)
}

// SplitBefore moves the content preceding n in its paragraph into a new
// paragraph placed before it. Both halves keep the paragraph properties;
// the section break stays with the later half.
func SplitBefore(t *xml.Tree, n xml.NodeID) {
	p := t.Ancestor(n, "w:p")
	if p == xml.None {
		return
	}
	var head []xml.NodeID
	first := childToward(t, p, n)
	for c := t.FirstChild(p); c != first; c = t.NextSibling(c) {
		if !t.Is(c, "w:pPr") {
			head = append(head, c)
		}
	}
	splitOff(t, p, head, false)
}

// SplitAfter moves the content following n in its paragraph into a new
// paragraph placed after it.
func SplitAfter(t *xml.Tree, n xml.NodeID) {
	p := t.Ancestor(n, "w:p")
	if p == xml.None {
		return
	}
	var tail []xml.NodeID
	for c := t.NextSibling(childToward(t, p, n)); c != xml.None; c = t.NextSibling(c) {
		tail = append(tail, c)
	}
	splitOff(t, p, tail, true)
}

// splitOff moves nodes out of p into a new paragraph placed before or after
// it. Nothing moves unless one of the nodes shows something.
func splitOff(t *xml.Tree, p xml.NodeID, nodes []xml.NodeID, after bool) {
	visible := false
	for _, n := range nodes {
		if shows(t, n) {
			visible = true
			break
		}
	}
	if !visible {
		return
	}
	q := t.NewElement("w:p")
	if pPr := t.FirstChildElement(p, "w:pPr"); pPr != xml.None {
		cp := t.Clone(pPr)
		t.AppendChild(q, cp)
		if after {
			removeChildren(t, pPr, "w:sectPr")
		} else {
			removeChildren(t, cp, "w:sectPr")
		}
	}
	for _, n := range nodes {
		t.Remove(n)
		t.AppendChild(q, n)
	}
	if after {
		t.InsertAfter(p, q)
	} else {
		t.InsertBefore(p, q)
	}
}

func removeChildren(t *xml.Tree, parent xml.NodeID, name string) {
	for _, c := range t.ChildElements(parent, name) {
		t.Remove(c)
	}
}

// Range is a run of sibling nodes captured for repetition. Copies are
// inserted before Anchor, or appended to Parent when Anchor is None.
type Range struct {
	Parent xml.NodeID
	Anchor xml.NodeID
	Nodes  []xml.NodeID
}

// CaptureRange returns the siblings under the common ancestor of start and
// end that cover both.
func CaptureRange(t *xml.Tree, start, end xml.NodeID) (Range, bool) {
	if !t.Attached(start) || !t.Attached(end) || t.Contains(start, end) || t.Contains(end, start) {
		return Range{}, false
	}
	lca := t.CommonAncestor(start, end)
	return siblingsBetween(t, childToward(t, lca, start), childToward(t, lca, end)), true
}

// CaptureRows returns the table rows from the row holding start to the row
// holding end. Both rows must belong to the same table.
func CaptureRows(t *xml.Tree, start, end xml.NodeID) (Range, bool) {
	first := selfOrAncestor(t, start, "w:tr")
	last := selfOrAncestor(t, end, "w:tr")
	if first == xml.None || last == xml.None || t.Parent(first) != t.Parent(last) {
		return Range{}, false
	}
	for n := first; n != xml.None; n = t.NextSibling(n) {
		if n == last {
			return siblingsBetween(t, first, last), true
		}
	}
	return Range{}, false
}

func siblingsBetween(t *xml.Tree, first, last xml.NodeID) Range {
	r := Range{Parent: t.Parent(first), Anchor: t.NextSibling(last)}
	for n := first; ; n = t.NextSibling(n) {
		r.Nodes = append(r.Nodes, n)
		if n == last || n == xml.None {
			break
		}
	}
	return r
}

// Insert places nodes at the range's anchor position, in order.
func (r Range) Insert(t *xml.Tree, nodes []xml.NodeID) {
	for _, n := range nodes {
		if r.Anchor != xml.None {
			t.InsertBefore(r.Anchor, n)
		} else {
			t.AppendChild(r.Parent, n)
		}
	}
}

func selfOrAncestor(t *xml.Tree, n xml.NodeID, name string) xml.NodeID {
	if t.Is(n, name) {
		return n
	}
	return t.Ancestor(n, name)
}

// MoveToRowStart moves the marker's nodes to the start of the first
// paragraph of the first cell in row.
func MoveToRowStart(t *xml.Tree, m *Marker, row xml.NodeID) {
	cell := t.FirstChildElement(row, "w:tc")
	if cell == xml.None {
		return
	}
	p := t.FirstChildElement(cell, "w:p")
	if p == xml.None {
		p = t.NewElement("w:p")
		t.AppendChild(cell, p)
	}
	moveMarker(t, m, func(n xml.NodeID) {
		ref := t.FirstChild(p)
		for ref != xml.None && t.Is(ref, "w:pPr") {
			ref = t.NextSibling(ref)
		}
		if ref == xml.None {
			t.AppendChild(p, n)
		} else {
			t.InsertBefore(ref, n)
		}
	}, true)
}

// MoveToRowEnd moves the marker's nodes to the end of the last paragraph
// of the last cell in row.
func MoveToRowEnd(t *xml.Tree, m *Marker, row xml.NodeID) {
	cells := t.ChildElements(row, "w:tc")
	if len(cells) == 0 {
		return
	}
	cell := cells[len(cells)-1]
	ps := t.ChildElements(cell, "w:p")
	var p xml.NodeID
	if len(ps) == 0 {
		p = t.NewElement("w:p")
		t.AppendChild(cell, p)
	} else {
		p = ps[len(ps)-1]
	}
	moveMarker(t, m, func(n xml.NodeID) { t.AppendChild(p, n) }, false)
}

func moveMarker(t *xml.Tree, m *Marker, place func(xml.NodeID), reverse bool) {
	nodes := m.Nodes(t)
	from := t.Ancestor(m.Start, "w:p")
	if reverse {
		for i := len(nodes) - 1; i >= 0; i-- {
			place(nodes[i])
		}
	} else {
		for _, n := range nodes {
			place(n)
		}
	}
	if from != xml.None && from != t.Ancestor(m.Start, "w:p") {
		PruneParagraph(t, from)
	}
}
