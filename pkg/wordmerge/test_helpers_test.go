package wordmerge

import (
	"archive/zip"
	"bytes"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

const documentNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"`

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const testPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const emptyDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// field returns a simple merge field for directive.
func field(directive string) string {
	instr := attrEscaper.Replace(`MERGEFIELD ` + directive + ` \* MERGEFORMAT`)
	return `<w:fldSimple w:instr="` + instr + `"><w:r><w:t>«` + attrEscaper.Replace(directive) + `»</w:t></w:r></w:fldSimple>`
}

// complexMergeField returns directive as a begin/separate/end field.
func complexMergeField(directive string) string {
	instr := attrEscaper.Replace(` MERGEFIELD ` + directive + ` \* MERGEFORMAT `)
	return `<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve">` + instr + `</w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>«x»</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>`
}

func run(s string) string {
	return `<w:r><w:t xml:space="preserve">` + s + `</w:t></w:r>`
}

func para(content ...string) string {
	return `<w:p>` + strings.Join(content, "") + `</w:p>`
}

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + documentNS + `><w:body>` + body + `</w:body></w:document>`
}

// buildDocx returns a minimal package whose main document has body. extra
// parts are added as is and may replace the defaults.
func buildDocx(t *testing.T, body string, extra map[string]string) []byte {
	t.Helper()
	parts := map[string]string{
		"[Content_Types].xml":          testContentTypes,
		"_rels/.rels":                  testPackageRels,
		"word/document.xml":            documentXML(body),
		"word/_rels/document.xml.rels": emptyDocumentRels,
	}
	for name, content := range extra {
		parts[name] = content
	}
	order := []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/_rels/document.xml.rels"}
	for name := range extra {
		if !slices.Contains(order[:4], name) {
			order = append(order, name)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := io.WriteString(w, parts[name]); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// newTestEngine returns an engine without caching that logs nothing.
func newTestEngine(opts ...Option) *Engine {
	config := DefaultConfig()
	config.CacheMaxSize = 0
	base := []Option{WithConfig(config), WithLogger(NewLogger(io.Discard, LogOff))}
	return NewWithOptions(append(base, opts...)...)
}

// exportPackage renders body with value and returns the resulting package.
func exportPackage(t *testing.T, e *Engine, docx []byte, value any, opts ...ExportOption) *Package {
	t.Helper()
	tmpl, err := e.PrepareBytes(docx)
	if err != nil {
		t.Fatalf("PrepareBytes() error = %v", err)
	}
	out, err := tmpl.Export(value, opts...)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	b, err := io.ReadAll(out)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	pkg, err := ReadPackage(b)
	if err != nil {
		t.Fatalf("ReadPackage() error = %v", err)
	}
	return pkg
}

// exportBody renders body with value and returns the main document tree.
func exportBody(t *testing.T, body string, value any) *xml.Tree {
	t.Helper()
	pkg := exportPackage(t, newTestEngine(), buildDocx(t, body, nil), value)
	return mainTree(t, pkg)
}

func mainTree(t *testing.T, pkg *Package) *xml.Tree {
	t.Helper()
	tree, err := pkg.Tree(pkg.MainDocument())
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	return tree
}

// paragraphTexts returns the text of every paragraph under the body.
func paragraphTexts(tree *xml.Tree) []string {
	var out []string
	for _, p := range tree.FindAll(tree.DocumentElement(), "w:p") {
		var b strings.Builder
		for _, tx := range tree.FindAll(p, "w:t") {
			b.WriteString(tree.Text(tx))
		}
		out = append(out, b.String())
	}
	return out
}

// documentText joins the paragraph texts with "|".
func documentText(tree *xml.Tree) string {
	return strings.Join(paragraphTexts(tree), "|")
}

// parseTestBody parses body without going through a package.
func parseTestBody(t *testing.T, body string) (*xml.Tree, []*render.Marker) {
	t.Helper()
	tree, err := xml.ParseBytes([]byte(documentXML(body)))
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	return tree, render.FindMarkers(tree, tree.DocumentElement())
}
