package xml

import (
	"strings"
	"testing"
)

const testDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t xml:space="preserve">a &amp; b</w:t></w:r><w:r><w:br/></w:r></w:p><w:p><w:r><w:t>second</w:t></w:r></w:p></w:body></w:document>`

func mustParse(t *testing.T, s string) *Tree {
	t.Helper()
	tree, err := Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return tree
}

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "document with prolog", input: testDocument},
		{name: "comments and attributes", input: `<a x="1 &lt; 2" y="&quot;q&quot;"><!-- note --><b/>text</a>`},
		{name: "prefixed attributes", input: `<w:p w14:paraId="12AB" xmlns:w14="urn:x"><w:pPr><w:jc w:val="center"/></w:pPr></w:p>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.input)
			if got := string(tree.Bytes()); got != tt.input {
				t.Errorf("round trip mismatch\n got: %s\nwant: %s", got, tt.input)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unclosed element", input: `<a><b></b>`},
		{name: "mismatched end", input: `<a><b></a></b>`},
		{name: "stray end", input: `<a></a></b>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTree_Navigation(t *testing.T) {
	tree := mustParse(t, testDocument)
	root := tree.DocumentElement()
	if !tree.Is(root, "w:document") {
		t.Fatalf("DocumentElement() = %q", tree.Name(root))
	}
	body := tree.Find(root, "w:body")
	paras := tree.ChildElements(body, "w:p")
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(paras))
	}
	if got := tree.Text(paras[0]); got != "a & b" {
		t.Errorf("Text() = %q, want %q", got, "a & b")
	}
	texts := tree.FindAll(root, "w:t")
	if len(texts) != 2 {
		t.Fatalf("FindAll(w:t) = %d nodes", len(texts))
	}
	if got := tree.Ancestor(texts[1], "w:p"); got != paras[1] {
		t.Errorf("Ancestor() = %d, want %d", got, paras[1])
	}
	if got := tree.CommonAncestor(texts[0], texts[1]); got != body {
		t.Errorf("CommonAncestor() = %s", tree.Name(got))
	}
	if tree.Local(paras[0]) != "p" || tree.Prefix(paras[0]) != "w" {
		t.Errorf("Local/Prefix = %q/%q", tree.Local(paras[0]), tree.Prefix(paras[0]))
	}
	if v, ok := tree.Attr(texts[0], "xml:space"); !ok || v != "preserve" {
		t.Errorf("Attr(xml:space) = %q, %v", v, ok)
	}
}

func TestTree_CloneInsertRemove(t *testing.T) {
	tree := mustParse(t, testDocument)
	body := tree.Find(tree.DocumentElement(), "w:body")
	paras := tree.ChildElements(body, "w:p")

	clone := tree.Clone(paras[1])
	if tree.Attached(clone) {
		t.Fatal("clone should start detached")
	}
	tree.InsertAfter(paras[1], clone)
	tree.SetText(tree.Find(clone, "w:t"), "third")

	var got []string
	for _, p := range tree.ChildElements(body, "w:p") {
		got = append(got, tree.Text(p))
	}
	if strings.Join(got, "|") != "a & b|second|third" {
		t.Errorf("paragraph texts = %v", got)
	}

	tree.Remove(paras[0])
	if tree.Attached(paras[0]) {
		t.Error("removed paragraph still attached")
	}
	if tree.FirstChild(body) != paras[1] {
		t.Error("first child not updated after remove")
	}
	if tree.LastChild(body) != clone {
		t.Error("last child should be the clone")
	}

	tree.PrependChild(body, paras[0])
	if tree.FirstChild(body) != paras[0] || tree.PrevSibling(paras[1]) != paras[0] {
		t.Error("PrependChild did not relink siblings")
	}

	tree.InsertBefore(paras[0], paras[0])
	if !tree.Attached(paras[0]) || tree.FirstChild(body) != paras[0] {
		t.Error("inserting a node before itself should leave it in place")
	}
}

func TestTree_AttrEditing(t *testing.T) {
	tree := New()
	el := tree.NewElement("wp:docPr", Attr{Name: "id", Value: "1"}, Attr{Name: "name", Value: "Picture 1"})
	tree.AppendChild(tree.Root(), el)

	tree.SetAttr(el, "id", "42")
	tree.SetAttr(el, "descr", "logo")
	tree.RemoveAttr(el, "name")

	want := `<wp:docPr id="42" descr="logo"/>`
	if got := tree.OuterXML(el); got != want {
		t.Errorf("OuterXML() = %s, want %s", got, want)
	}
}

func TestTree_ParseFragmentAndImport(t *testing.T) {
	tree := mustParse(t, testDocument)
	nodes, err := tree.ParseFragment(`<w:r><w:t>x</w:t></w:r><w:r><w:tab/></w:r>`)
	if err != nil {
		t.Fatalf("ParseFragment() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	for _, n := range nodes {
		if tree.Attached(n) || tree.Parent(n) != None {
			t.Error("fragment nodes must be detached")
		}
	}

	other := mustParse(t, `<w:p><w:r><w:t>imported</w:t></w:r></w:p>`)
	copied := tree.Import(other, other.DocumentElement())
	body := tree.Find(tree.DocumentElement(), "w:body")
	tree.AppendChild(body, copied)
	if got := tree.Text(tree.LastChild(body)); got != "imported" {
		t.Errorf("imported text = %q", got)
	}
	if other.Text(other.DocumentElement()) != "imported" {
		t.Error("source tree must be unchanged")
	}
}

func TestTree_Namespaces(t *testing.T) {
	tree := mustParse(t, testDocument)
	if !tree.DeclareNamespace("wp", NamespaceWP) {
		t.Error("expected wp declaration to be added")
	}
	if tree.DeclareNamespace("w", NamespaceW) {
		t.Error("w is already declared")
	}
	if got := tree.PrefixFor(NamespaceWP); got != "wp" {
		t.Errorf("PrefixFor(wp) = %q", got)
	}
	if got := tree.PrefixFor(NamespacePic); got != "pic" {
		t.Errorf("PrefixFor(pic) = %q", got)
	}
}
