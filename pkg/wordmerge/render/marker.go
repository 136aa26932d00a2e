package render

import (
	"strings"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// Marker is one field embedded in a part. A simple field is a single
// w:fldSimple element (Start == End); a complex field spans from the run
// holding its begin fldChar to the run holding its end fldChar.
type Marker struct {
	Instr string
	Start xml.NodeID
	End   xml.NodeID
	// Separate is the run holding the separate fldChar, or None.
	Separate xml.NodeID

	nodes   []xml.NodeID
	removed bool
}

// IsSimple reports whether the marker is a w:fldSimple element.
func (m *Marker) IsSimple() bool { return m.Start == m.End }

// Removed reports whether the marker's nodes are gone from the tree.
func (m *Marker) Removed(t *xml.Tree) bool {
	return m.removed || !t.Attached(m.Start) || !t.Attached(m.End)
}

// Nodes returns the top-most nodes covering the marker's span in document
// order. The list is computed once; later edits inside the span do not
// change it.
func (m *Marker) Nodes(t *xml.Tree) []xml.NodeID {
	if m.nodes != nil {
		return m.nodes
	}
	if m.IsSimple() {
		m.nodes = []xml.NodeID{m.Start}
		return m.nodes
	}
	m.nodes = spanNodes(t, m.Start, m.End)
	return m.nodes
}

// spanNodes lists maximal subtrees between start and end inclusive.
func spanNodes(t *xml.Tree, start, end xml.NodeID) []xml.NodeID {
	if t.Contains(start, end) {
		return []xml.NodeID{start}
	}
	var out []xml.NodeID
	x := start
	for x != xml.None {
		if t.Contains(x, end) {
			if x == end {
				out = append(out, x)
				break
			}
			x = t.FirstChild(x)
			continue
		}
		out = append(out, x)
		for t.NextSibling(x) == xml.None {
			x = t.Parent(x)
			if x == xml.None {
				return out
			}
		}
		x = t.NextSibling(x)
	}
	return out
}

// FindMarkers returns every field under the given roots, ordered by where
// each field begins. Complex fields whose end is missing are skipped.
func FindMarkers(t *xml.Tree, roots ...xml.NodeID) []*Marker {
	var (
		out   []*Marker
		open  []*Marker
		instr []*strings.Builder
	)
	for _, root := range roots {
		t.Walk(root, func(n xml.NodeID) bool {
			if !t.IsElement(n) {
				return true
			}
			switch t.Name(n) {
			case "w:fldSimple":
				out = append(out, &Marker{Instr: t.AttrValue(n, "w:instr"), Start: n, End: n, Separate: xml.None})
				return false
			case "w:instrText":
				if len(open) > 0 && open[len(open)-1].Separate == xml.None {
					instr[len(instr)-1].WriteString(t.Text(n))
				}
				return false
			case "w:fldChar":
				run := runOf(t, n)
				switch t.AttrValue(n, "w:fldCharType") {
				case "begin":
					m := &Marker{Start: run, Separate: xml.None}
					out = append(out, m)
					open = append(open, m)
					instr = append(instr, &strings.Builder{})
				case "separate":
					if len(open) > 0 {
						open[len(open)-1].Separate = run
					}
				case "end":
					if len(open) > 0 {
						m := open[len(open)-1]
						m.End = run
						m.Instr = instr[len(instr)-1].String()
						open = open[:len(open)-1]
						instr = instr[:len(instr)-1]
					}
				}
				return false
			}
			return true
		})
	}
	complete := out[:0]
	for _, m := range out {
		if m.End != xml.None {
			complete = append(complete, m)
		}
	}
	return complete
}

func runOf(t *xml.Tree, n xml.NodeID) xml.NodeID {
	if r := t.Ancestor(n, "w:r"); r != xml.None {
		return r
	}
	return n
}

// RemoveMarker deletes every node of the marker. With prune set, a
// paragraph left without content by the removal is deleted as well.
func RemoveMarker(t *xml.Tree, m *Marker, prune bool) {
	if m.Removed(t) {
		m.removed = true
		return
	}
	nodes := m.Nodes(t)
	para := t.Ancestor(m.Start, "w:p")
	for _, n := range nodes {
		t.Remove(n)
	}
	m.removed = true
	if prune && para != xml.None {
		PruneParagraph(t, para)
	}
}

// SetMarkerText replaces the marker with a single run showing text and
// returns that run. The run keeps the formatting of the field's result.
// Newlines become w:br and tabs become w:tab.
func SetMarkerText(t *xml.Tree, m *Marker, text string) xml.NodeID {
	if m.Removed(t) {
		return xml.None
	}
	nodes := m.Nodes(t)
	run := resultRun(t, m, nodes)
	if run == xml.None {
		run = t.NewElement("w:r")
		if rPr := firstRunProperties(t, nodes); rPr != xml.None {
			t.AppendChild(run, t.Clone(rPr))
		}
	}
	t.InsertBefore(m.Start, run)
	for _, n := range nodes {
		if n != run {
			t.Remove(n)
		}
	}
	m.removed = true
	WriteRunText(t, run, text)
	return run
}

// WriteRunText replaces the content of run, keeping its w:rPr.
func WriteRunText(t *xml.Tree, run xml.NodeID, text string) {
	for _, c := range t.Children(run) {
		if !t.Is(c, "w:rPr") {
			t.Remove(c)
		}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			t.AppendChild(run, t.NewElement("w:br"))
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				t.AppendChild(run, t.NewElement("w:tab"))
			}
			if part == "" && (i > 0 || j > 0) {
				continue
			}
			el := t.NewElement("w:t", xml.Attr{Name: "xml:space", Value: "preserve"})
			t.SetText(el, part)
			t.AppendChild(run, el)
		}
	}
}

// resultRun finds the run that displays the field's current result.
func resultRun(t *xml.Tree, m *Marker, nodes []xml.NodeID) xml.NodeID {
	if m.IsSimple() {
		if tx := t.Find(m.Start, "w:t"); tx != xml.None {
			return runOf(t, tx)
		}
		return xml.None
	}
	if m.Separate == xml.None {
		return xml.None
	}
	seen := false
	for _, n := range nodes {
		if t.Contains(n, m.Separate) {
			seen = true
			if n == m.Separate {
				continue
			}
		}
		if !seen || n == m.End {
			continue
		}
		var tx xml.NodeID
		if t.Is(n, "w:r") {
			tx = t.FirstChildElement(n, "w:t")
		} else {
			tx = t.Find(n, "w:t")
		}
		if tx != xml.None {
			r := runOf(t, tx)
			if r != m.Start && r != m.End && r != m.Separate {
				return r
			}
		}
	}
	return xml.None
}

func firstRunProperties(t *xml.Tree, nodes []xml.NodeID) xml.NodeID {
	for _, n := range nodes {
		if t.Is(n, "w:r") {
			if rPr := t.FirstChildElement(n, "w:rPr"); rPr != xml.None {
				return rPr
			}
			continue
		}
		if rPr := t.Find(n, "w:rPr"); rPr != xml.None {
			return rPr
		}
	}
	return xml.None
}
