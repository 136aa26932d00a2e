package wordmerge

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// firstGeneratedID is the lowest drawing id handed out by a session.
const firstGeneratedID = 10000

// idGenerator hands out identifiers for one export. Numeric ids continue
// above every id already present in the document so generated ones never
// collide with existing ones. Paragraph ids are random and checked against
// every paragraph id seen or issued.
type idGenerator struct {
	next     uint32
	bookmark int
	paraIDs  map[uint32]bool
	random   func() uint32
}

func newIDGenerator() *idGenerator {
	return &idGenerator{
		next:     firstGeneratedID,
		bookmark: firstGeneratedID,
		paraIDs:  make(map[uint32]bool),
		random:   randomUint32,
	}
}

func randomUint32() uint32 {
	u := uuid.New()
	return binary.BigEndian.Uint32(u[:4])
}

// observe raises the counters above the ids used in t.
func (g *idGenerator) observe(t *xml.Tree) {
	t.Walk(t.Root(), func(n xml.NodeID) bool {
		if !t.IsElement(n) {
			return true
		}
		for _, name := range []string{"w14:paraId", "w14:textId"} {
			if v, err := strconv.ParseUint(t.AttrValue(n, name), 16, 32); err == nil {
				g.paraIDs[uint32(v)] = true
			}
		}
		switch t.Name(n) {
		case "wp:docPr", "pic:cNvPr":
			if v, err := strconv.ParseUint(t.AttrValue(n, "id"), 10, 32); err == nil && uint32(v) >= g.next {
				g.next = uint32(v) + 1
			}
		case "w:bookmarkStart":
			if v, err := strconv.Atoi(t.AttrValue(n, "w:id")); err == nil && v >= g.bookmark {
				g.bookmark = v + 1
			}
		}
		return true
	})
}

// Uint returns the next numeric drawing id.
func (g *idGenerator) Uint() uint32 {
	id := g.next
	g.next++
	return id
}

// Bookmark returns the next bookmark id.
func (g *idGenerator) Bookmark() int {
	id := g.bookmark
	g.bookmark++
	return id
}

// RelID returns a relationship id that cannot collide with ids written by
// Word ("rId<n>").
func (g *idGenerator) RelID() string {
	return "r" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ParaID returns an eight digit hex id valid for w14:paraId and
// w14:textId, which must stay below 0x80000000. It never returns an id
// observed in the document or issued before.
func (g *idGenerator) ParaID() string {
	for {
		v := g.random() & 0x7FFFFFFF
		if v != 0 && !g.paraIDs[v] {
			g.paraIDs[v] = true
			return fmt.Sprintf("%08X", v)
		}
	}
}

// Token returns a short unique string for part names.
func (g *idGenerator) Token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// refresh gives the copies under roots fresh drawing, bookmark and
// paragraph ids so they do not repeat the ids of the nodes they were
// cloned from.
func (g *idGenerator) refresh(t *xml.Tree, roots ...xml.NodeID) {
	bookmarks := make(map[string]string)
	for _, root := range roots {
		t.Walk(root, func(n xml.NodeID) bool {
			if !t.IsElement(n) {
				return true
			}
			switch t.Name(n) {
			case "wp:docPr":
				id := g.Uint()
				t.SetAttr(n, "id", strconv.FormatUint(uint64(id), 10))
				t.SetAttr(n, "name", fmt.Sprintf("Picture %d", id))
			case "pic:cNvPr":
				t.SetAttr(n, "id", strconv.FormatUint(uint64(g.Uint()), 10))
			case "w:bookmarkStart", "w:bookmarkEnd":
				old := t.AttrValue(n, "w:id")
				id, ok := bookmarks[old]
				if !ok {
					id = strconv.Itoa(g.Bookmark())
					bookmarks[old] = id
				}
				t.SetAttr(n, "w:id", id)
				if name, ok := t.Attr(n, "w:name"); ok && name != "_GoBack" {
					t.SetAttr(n, "w:name", name+"_"+id)
				}
			}
			if _, ok := t.Attr(n, "w14:paraId"); ok {
				t.SetAttr(n, "w14:paraId", g.ParaID())
			}
			if _, ok := t.Attr(n, "w14:textId"); ok {
				t.SetAttr(n, "w14:textId", g.ParaID())
			}
			return true
		})
	}
}
