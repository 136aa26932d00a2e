package xml

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;")
)

type countWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countWriter) WriteString(s string) {
	n, _ := c.w.WriteString(s)
	c.n += int64(n)
}

// WriteTo serializes the whole tree.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: bufio.NewWriter(w)}
	for c := t.nodes[t.root].first; c != None; c = t.nodes[c].next {
		t.write(cw, c)
	}
	return cw.n, cw.w.Flush()
}

// Bytes serializes the whole tree into a new slice.
func (t *Tree) Bytes() []byte {
	var buf bytes.Buffer
	t.WriteTo(&buf)
	return buf.Bytes()
}

// OuterXML serializes id and its subtree.
func (t *Tree) OuterXML(id NodeID) string {
	var buf bytes.Buffer
	cw := &countWriter{w: bufio.NewWriter(&buf)}
	t.write(cw, id)
	cw.w.Flush()
	return buf.String()
}

func (t *Tree) write(w *countWriter, id NodeID) {
	n := &t.nodes[id]
	switch n.kind {
	case DocumentNode:
		for c := n.first; c != None; c = t.nodes[c].next {
			t.write(w, c)
		}
	case TextNode:
		w.WriteString(textEscaper.Replace(n.data))
	case CommentNode:
		w.WriteString("<!--")
		w.WriteString(n.data)
		w.WriteString("-->")
	case ProcInstNode:
		w.WriteString("<?")
		w.WriteString(n.name)
		if inst := strings.TrimLeft(n.data, " \t\r\n"); inst != "" {
			w.WriteString(" ")
			w.WriteString(inst)
		}
		w.WriteString("?>")
	case DirectiveNode:
		w.WriteString("<!")
		w.WriteString(n.data)
		w.WriteString(">")
	case ElementNode:
		w.WriteString("<")
		w.WriteString(n.name)
		for _, a := range n.attrs {
			w.WriteString(" ")
			w.WriteString(a.Name)
			w.WriteString(`="`)
			w.WriteString(attrEscaper.Replace(a.Value))
			w.WriteString(`"`)
		}
		if n.first == None {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		for c := n.first; c != None; c = t.nodes[c].next {
			t.write(w, c)
		}
		w.WriteString("</")
		w.WriteString(n.name)
		w.WriteString(">")
	}
}
