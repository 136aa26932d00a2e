package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// NodeID addresses a node inside a Tree. The zero value is None.
type NodeID int32

// None is the absent node.
const None NodeID = 0

// Kind identifies what a node holds.
type Kind uint8

const (
	DocumentNode Kind = iota
	ElementNode
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Attr is an attribute with its qualified name as written ("w:val", "xmlns:r").
type Attr struct {
	Name  string
	Value string
}

type node struct {
	kind   Kind
	name   string
	attrs  []Attr
	data   string
	parent NodeID
	first  NodeID
	last   NodeID
	prev   NodeID
	next   NodeID
}

// Tree is an arena of XML nodes. Links between nodes are indices, so
// detaching a node never invalidates other ids; a detached subtree stays in
// the arena until the tree is dropped.
type Tree struct {
	nodes []node
	root  NodeID
}

// New returns a tree holding only a document node.
func New() *Tree {
	t := &Tree{nodes: make([]node, 1, 64)}
	t.root = t.alloc(node{kind: DocumentNode})
	return t
}

func (t *Tree) alloc(n node) NodeID {
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// Parse reads a whole XML part. Prefixes are kept exactly as written, so
// serializing an unmodified tree reproduces the same element and attribute
// names.
func Parse(r io.Reader) (*Tree, error) {
	t := New()
	if err := t.decodeInto(xml.NewDecoder(r), t.root); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(b []byte) (*Tree, error) {
	return Parse(bytes.NewReader(b))
}

func (t *Tree) decodeInto(d *xml.Decoder, top NodeID) error {
	cur := top
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to parse xml: %w", err)
		}
		switch tok := tok.(type) {
		case xml.StartElement:
			attrs := make([]Attr, len(tok.Attr))
			for i, a := range tok.Attr {
				attrs[i] = Attr{Name: qualify(a.Name), Value: a.Value}
			}
			id := t.NewElement(qualify(tok.Name), attrs...)
			t.AppendChild(cur, id)
			cur = id
		case xml.EndElement:
			if cur == top {
				return fmt.Errorf("failed to parse xml: unexpected end element %s", qualify(tok.Name))
			}
			if name := qualify(tok.Name); name != t.nodes[cur].name {
				return fmt.Errorf("failed to parse xml: element %s closed by %s", t.nodes[cur].name, name)
			}
			cur = t.nodes[cur].parent
		case xml.CharData:
			t.AppendChild(cur, t.NewText(string(tok)))
		case xml.Comment:
			t.AppendChild(cur, t.alloc(node{kind: CommentNode, data: string(tok)}))
		case xml.ProcInst:
			t.AppendChild(cur, t.alloc(node{kind: ProcInstNode, name: tok.Target, data: string(tok.Inst)}))
		case xml.Directive:
			t.AppendChild(cur, t.alloc(node{kind: DirectiveNode, data: string(tok)}))
		}
	}
	if cur != top {
		return fmt.Errorf("failed to parse xml: unclosed element %s", t.nodes[cur].name)
	}
	return nil
}

// ParseFragment parses a sequence of sibling nodes into detached nodes of t.
// Prefixes need no declarations because names are never resolved.
func (t *Tree) ParseFragment(s string) ([]NodeID, error) {
	holder := t.NewElement("fragment")
	d := xml.NewDecoder(strings.NewReader(s))
	if err := t.decodeInto(d, holder); err != nil {
		return nil, err
	}
	children := t.Children(holder)
	for _, c := range children {
		t.Remove(c)
	}
	return children, nil
}

func qualify(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// Root returns the document node.
func (t *Tree) Root() NodeID { return t.root }

// DocumentElement returns the first element child of the document node.
func (t *Tree) DocumentElement() NodeID {
	for c := t.nodes[t.root].first; c != None; c = t.nodes[c].next {
		if t.nodes[c].kind == ElementNode {
			return c
		}
	}
	return None
}

// Len reports the number of nodes ever allocated, attached or not.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

func (t *Tree) Kind(id NodeID) Kind { return t.nodes[id].kind }

// Name returns the qualified element name ("w:p"), or the target of a
// processing instruction.
func (t *Tree) Name(id NodeID) string { return t.nodes[id].name }

// Local returns the element name without its prefix.
func (t *Tree) Local(id NodeID) string {
	name := t.nodes[id].name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Prefix returns the element's namespace prefix, or "".
func (t *Tree) Prefix(id NodeID) string {
	name := t.nodes[id].name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return ""
}

// Is reports whether id is an element with the given qualified name.
func (t *Tree) Is(id NodeID, name string) bool {
	return id != None && t.nodes[id].kind == ElementNode && t.nodes[id].name == name
}

// IsElement reports whether id is an element.
func (t *Tree) IsElement(id NodeID) bool {
	return id != None && t.nodes[id].kind == ElementNode
}

func (t *Tree) Parent(id NodeID) NodeID      { return t.nodes[id].parent }
func (t *Tree) FirstChild(id NodeID) NodeID  { return t.nodes[id].first }
func (t *Tree) LastChild(id NodeID) NodeID   { return t.nodes[id].last }
func (t *Tree) NextSibling(id NodeID) NodeID { return t.nodes[id].next }
func (t *Tree) PrevSibling(id NodeID) NodeID { return t.nodes[id].prev }

// Children returns a snapshot of the direct children of id.
func (t *Tree) Children(id NodeID) []NodeID {
	var out []NodeID
	for c := t.nodes[id].first; c != None; c = t.nodes[c].next {
		out = append(out, c)
	}
	return out
}

// ChildElements returns the element children of id named name, or all
// element children when name is empty.
func (t *Tree) ChildElements(id NodeID, name string) []NodeID {
	var out []NodeID
	for c := t.nodes[id].first; c != None; c = t.nodes[c].next {
		if t.nodes[c].kind == ElementNode && (name == "" || t.nodes[c].name == name) {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildElement returns the first element child named name.
func (t *Tree) FirstChildElement(id NodeID, name string) NodeID {
	for c := t.nodes[id].first; c != None; c = t.nodes[c].next {
		if t.nodes[c].kind == ElementNode && (name == "" || t.nodes[c].name == name) {
			return c
		}
	}
	return None
}

// Walk visits id and its descendants in document order. Returning false
// from fn skips the children of the visited node.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	if !fn(id) {
		return
	}
	for c := t.nodes[id].first; c != None; {
		next := t.nodes[c].next
		t.Walk(c, fn)
		c = next
	}
}

// Find returns the first descendant element of id named name.
func (t *Tree) Find(id NodeID, name string) NodeID {
	found := None
	t.Walk(id, func(n NodeID) bool {
		if found != None {
			return false
		}
		if n != id && t.Is(n, name) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every descendant element of id named name, in document
// order.
func (t *Tree) FindAll(id NodeID, name string) []NodeID {
	var out []NodeID
	t.Walk(id, func(n NodeID) bool {
		if n != id && t.Is(n, name) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Ancestor returns the nearest proper ancestor of id named name.
func (t *Tree) Ancestor(id NodeID, name string) NodeID {
	for p := t.nodes[id].parent; p != None; p = t.nodes[p].parent {
		if t.nodes[p].kind == ElementNode && t.nodes[p].name == name {
			return p
		}
	}
	return None
}

// Contains reports whether a is id itself or one of its ancestors.
func (t *Tree) Contains(a, id NodeID) bool {
	for n := id; n != None; n = t.nodes[n].parent {
		if n == a {
			return true
		}
	}
	return false
}

// Attached reports whether id is still reachable from the document node.
func (t *Tree) Attached(id NodeID) bool {
	return id != None && t.Contains(t.root, id)
}

// Depth is the number of ancestors of id.
func (t *Tree) Depth(id NodeID) int {
	d := 0
	for p := t.nodes[id].parent; p != None; p = t.nodes[p].parent {
		d++
	}
	return d
}

// CommonAncestor returns the lowest node containing both a and b, or None
// when they live in different detached subtrees.
func (t *Tree) CommonAncestor(a, b NodeID) NodeID {
	da, db := t.Depth(a), t.Depth(b)
	for da > db {
		a = t.nodes[a].parent
		da--
	}
	for db > da {
		b = t.nodes[b].parent
		db--
	}
	for a != b {
		a = t.nodes[a].parent
		b = t.nodes[b].parent
	}
	return a
}

// Attr returns the value of the attribute with the qualified name.
func (t *Tree) Attr(id NodeID, name string) (string, bool) {
	for _, a := range t.nodes[id].attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrValue is Attr without the presence flag.
func (t *Tree) AttrValue(id NodeID, name string) string {
	v, _ := t.Attr(id, name)
	return v
}

// Attrs returns the attributes of id. The slice must not be modified.
func (t *Tree) Attrs(id NodeID) []Attr { return t.nodes[id].attrs }

// SetAttr adds or replaces an attribute.
func (t *Tree) SetAttr(id NodeID, name, value string) {
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

// RemoveAttr deletes an attribute if present.
func (t *Tree) RemoveAttr(id NodeID, name string) {
	n := &t.nodes[id]
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			n.attrs = append(n.attrs[:i:i], n.attrs[i+1:]...)
			return
		}
	}
}

// Data returns the character data of a text, comment or processing
// instruction node.
func (t *Tree) Data(id NodeID) string { return t.nodes[id].data }

func (t *Tree) SetData(id NodeID, s string) { t.nodes[id].data = s }

// Text concatenates every text node under id.
func (t *Tree) Text(id NodeID) string {
	var b strings.Builder
	t.Walk(id, func(n NodeID) bool {
		if t.nodes[n].kind == TextNode {
			b.WriteString(t.nodes[n].data)
		}
		return true
	})
	return b.String()
}

// SetText replaces the children of id with a single text node.
func (t *Tree) SetText(id NodeID, s string) {
	for _, c := range t.Children(id) {
		t.Remove(c)
	}
	if s != "" {
		t.AppendChild(id, t.NewText(s))
	}
}

// NewElement allocates a detached element.
func (t *Tree) NewElement(name string, attrs ...Attr) NodeID {
	var cp []Attr
	if len(attrs) > 0 {
		cp = append(cp, attrs...)
	}
	return t.alloc(node{kind: ElementNode, name: name, attrs: cp})
}

// NewText allocates a detached text node.
func (t *Tree) NewText(s string) NodeID {
	return t.alloc(node{kind: TextNode, data: s})
}

// AppendChild attaches child as the last child of parent, detaching it
// from its previous position first.
func (t *Tree) AppendChild(parent, child NodeID) {
	t.Remove(child)
	p := &t.nodes[parent]
	c := &t.nodes[child]
	c.parent = parent
	c.prev = p.last
	if p.last != None {
		t.nodes[p.last].next = child
	} else {
		p.first = child
	}
	p.last = child
}

// PrependChild attaches child as the first child of parent.
func (t *Tree) PrependChild(parent, child NodeID) {
	if first := t.nodes[parent].first; first != None {
		t.InsertBefore(first, child)
		return
	}
	t.AppendChild(parent, child)
}

// InsertBefore attaches n as the previous sibling of ref.
func (t *Tree) InsertBefore(ref, n NodeID) {
	if ref == n {
		return
	}
	t.Remove(n)
	r := &t.nodes[ref]
	parent := r.parent
	c := &t.nodes[n]
	c.parent = parent
	c.next = ref
	c.prev = r.prev
	if r.prev != None {
		t.nodes[r.prev].next = n
	} else if parent != None {
		t.nodes[parent].first = n
	}
	r.prev = n
}

// InsertAfter attaches n as the next sibling of ref.
func (t *Tree) InsertAfter(ref, n NodeID) {
	if next := t.nodes[ref].next; next != None {
		t.InsertBefore(next, n)
		return
	}
	if parent := t.nodes[ref].parent; parent != None {
		t.AppendChild(parent, n)
		return
	}
	t.Remove(n)
	t.nodes[ref].next = n
	t.nodes[n].prev = ref
}

// Remove detaches id (and its subtree) from its parent and siblings.
func (t *Tree) Remove(id NodeID) {
	n := &t.nodes[id]
	if n.prev != None {
		t.nodes[n.prev].next = n.next
	} else if n.parent != None {
		t.nodes[n.parent].first = n.next
	}
	if n.next != None {
		t.nodes[n.next].prev = n.prev
	} else if n.parent != None {
		t.nodes[n.parent].last = n.prev
	}
	n.parent, n.prev, n.next = None, None, None
}

// Replace puts n where old was and detaches old.
func (t *Tree) Replace(old, n NodeID) {
	t.InsertBefore(old, n)
	t.Remove(old)
}

// Clone deep-copies id into a new detached subtree.
func (t *Tree) Clone(id NodeID) NodeID {
	return t.Import(t, id)
}

// Import deep-copies node id of src into t as a detached subtree. src may be
// t itself.
func (t *Tree) Import(src *Tree, id NodeID) NodeID {
	sn := src.nodes[id]
	var attrs []Attr
	if len(sn.attrs) > 0 {
		attrs = append(attrs, sn.attrs...)
	}
	cp := t.alloc(node{kind: sn.kind, name: sn.name, attrs: attrs, data: sn.data})
	for c := sn.first; c != None; c = src.nodes[c].next {
		t.AppendChild(cp, t.Import(src, c))
	}
	return cp
}
