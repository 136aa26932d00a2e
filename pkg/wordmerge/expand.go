package wordmerge

import (
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// expand binds a loop or table context to its array. It returns the
// contexts that take its place: one bound context per element plus any
// unrelated contexts found in the copies. Empty arrays remove the range and
// yield nothing.
func (s *session) expand(c *RenderContext) []*RenderContext {
	t := s.tree
	log := s.logger.WithFields(Fields{"part": s.part, "directive": c.Directive.String()})
	if c.Start.Removed(t) || c.End.Removed(t) {
		return nil
	}
	if c.depth() >= s.config.MaxRenderDepth {
		log.Warn("Loop nesting exceeds %d levels, dropping it", s.config.MaxRenderDepth)
		s.strip(c)
		return nil
	}

	value, _ := data.Lookup(c.scope(s.root), c.Directive.Field)
	items, ok := value.(data.Array)
	if !ok {
		if value != nil {
			log.Debug("Loop field holds %T, not an array", value)
		}
		s.strip(c)
		return nil
	}
	log.Debug("Expanding %d items", len(items))

	switch len(items) {
	case 0:
		s.removeRepeat(c)
		return nil
	case 1:
		if c.Directive.Verb == VerbTable {
			s.captureRows(c)
		}
		c.Index, c.item = 0, data.Item(items[0], 0, true)
		return []*RenderContext{c}
	}

	rng, ok := s.captureRepeat(c)
	if !ok {
		log.Warn("Cannot capture the repeated range, keeping it once")
		s.strip(c)
		return nil
	}
	original := render.FindMarkers(t, rng.Nodes...)
	at := -1
	for i, m := range original {
		if m.Start == c.Start.Start {
			at = i
			break
		}
	}

	c.Index, c.item = 0, data.Item(items[0], 0, false)
	out := []*RenderContext{c}
	for i := 1; i < len(items); i++ {
		copies := make([]xml.NodeID, len(rng.Nodes))
		for j, n := range rng.Nodes {
			copies[j] = t.Clone(n)
		}
		rng.Insert(t, copies)
		s.ids.refresh(t, copies...)

		markers := render.FindMarkers(t, copies...)
		var start *render.Marker
		if at >= 0 && len(markers) == len(original) {
			start = markers[at]
		}
		found := false
		for _, r := range s.builder.build(markers, c.Parent) {
			if start != nil && r.Start == start {
				r.Index, r.item = i, data.Item(items[i], i, i == len(items)-1)
				found = true
			}
			out = append(out, r)
		}
		if !found {
			log.Warn("Copy %d lost its loop markers", i+1)
		}
	}
	return out
}

// strip removes every marker of c and its descendants, keeping the content
// between them.
func (s *session) strip(c *RenderContext) {
	for _, m := range c.markers() {
		render.RemoveMarker(s.tree, m, true)
	}
}

// captureRepeat returns the nodes one iteration of c repeats. Table loops
// whose markers sit in rows of one table repeat whole rows. Text sharing a
// paragraph with the markers but lying outside them is split off first.
func (s *session) captureRepeat(c *RenderContext) (render.Range, bool) {
	t := s.tree
	if c.Directive.Verb == VerbTable {
		if rng, ok := s.captureRows(c); ok {
			return rng, true
		}
	}
	render.IsolateRange(t, c.Start.Start, c.End.End)
	return render.CaptureRange(t, c.Start.Start, c.End.End)
}

// captureRows relocates the markers of a table loop to the first and last
// data cells and captures the rows between them. A row holding nothing but
// a marker is dropped once the marker has moved out of it.
func (s *session) captureRows(c *RenderContext) (render.Range, bool) {
	t := s.tree
	startRow := t.Ancestor(c.Start.Start, "w:tr")
	endRow := t.Ancestor(c.End.End, "w:tr")
	if startRow == xml.None || endRow == xml.None || t.Parent(startRow) != t.Parent(endRow) {
		return render.Range{}, false
	}
	if startRow != endRow {
		if next := nextRow(t, startRow); next != xml.None {
			render.MoveToRowStart(t, c.Start, next)
			if render.HasContent(t, startRow) {
				render.MoveToRowStart(t, c.Start, startRow)
			} else {
				t.Remove(startRow)
				startRow = next
			}
		}
	}
	if startRow != endRow {
		if prev := prevRow(t, endRow); prev != xml.None {
			render.MoveToRowEnd(t, c.End, prev)
			if render.HasContent(t, endRow) {
				render.MoveToRowEnd(t, c.End, endRow)
			} else {
				t.Remove(endRow)
				endRow = prev
			}
		}
	}
	render.MoveToRowStart(t, c.Start, startRow)
	render.MoveToRowEnd(t, c.End, endRow)
	return render.CaptureRows(t, c.Start.Start, c.End.End)
}

// removeRepeat deletes the range of a loop over an empty array.
func (s *session) removeRepeat(c *RenderContext) {
	t := s.tree
	if c.Directive.Verb == VerbTable {
		if rng, ok := s.captureRows(c); ok {
			tbl := rng.Parent
			for _, row := range rng.Nodes {
				t.Remove(row)
			}
			if t.FirstChildElement(tbl, "w:tr") == xml.None {
				parent := t.Parent(tbl)
				t.Remove(tbl)
				render.EnsureBlock(t, parent)
			}
			return
		}
	}
	if !render.RemoveRange(t, c.Start.Start, c.End.End) {
		s.strip(c)
	}
}

func nextRow(t *xml.Tree, row xml.NodeID) xml.NodeID {
	for n := t.NextSibling(row); n != xml.None; n = t.NextSibling(n) {
		if t.Is(n, "w:tr") {
			return n
		}
	}
	return xml.None
}

func prevRow(t *xml.Tree, row xml.NodeID) xml.NodeID {
	for n := t.PrevSibling(row); n != xml.None; n = t.PrevSibling(n) {
		if t.Is(n, "w:tr") {
			return n
		}
	}
	return xml.None
}
