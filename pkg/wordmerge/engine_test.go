package wordmerge

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

func TestExport_Fields(t *testing.T) {
	tests := []struct {
		name  string
		field string
		data  string
		want  string
	}{
		{"upper", field("name:upper()"), `{"name": "abc"}`, "Hello ABC"},
		{"null value removes field", field("name:upper()"), `{"name": null}`, "Hello "},
		{"missing field removes field", field("missing"), `{"name": "abc"}`, "Hello "},
		{"case insensitive lookup", field("NAME"), `{"name": "abc"}`, "Hello abc"},
		{"complex field", complexMergeField("name"), `{"name": "abc"}`, "Hello abc"},
		{"quoted directive", field(`"name:sub(0, 2)"`), `{"name": "abc"}`, "Hello ab"},
		{"array is joined", field("tags"), `{"tags": ["a", "b", 3]}`, "Hello a, b, 3"},
		{"array elements are formatted one by one", field("tags:upper()"), `{"tags": ["a", "b"]}`, "Hello A, B"},
		{"default format keeps commas", field("total(#,##0.00)"), `{"total": 1234.5}`, "Hello 1,234.50"},
		{"printf format", field("total(%.1f)"), `{"total": 3.14159}`, "Hello 3.1"},
		{"failing evaluator falls back to value", field("name:sub(x)"), `{"name": "abc"}`, "Hello abc"},
		{"object value removes field", field("obj"), `{"obj": {"a": 1}}`, "Hello "},
		{"unknown function leaves field", field("name:nope()"), `{"name": "abc"}`, "Hello «name:nope()»"},
		{"invalid directive leaves field", field("name:upper("), `{"name": "abc"}`, "Hello «name:upper(»"},
		{"boolean", field("ok"), `{"ok": true}`, "Hello true"},
		{"line breaks", field("lines"), `{"lines": "a\nb"}`, "Hello ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := exportBody(t, para(run("Hello "), tt.field), []byte(tt.data))
			if got := documentText(tree); got != tt.want {
				t.Errorf("document text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExport_LeavesForeignFields(t *testing.T) {
	body := para(`<w:fldSimple w:instr=" PAGE "><w:r><w:t>1</w:t></w:r></w:fldSimple>`, field("name"))
	tree := exportBody(t, body, map[string]any{"name": "x"})
	if got := documentText(tree); got != "1x" {
		t.Errorf("document text = %q, want %q", got, "1x")
	}
	if len(tree.FindAll(tree.DocumentElement(), "w:fldSimple")) != 1 {
		t.Error("PAGE field should be kept")
	}
}

func TestExport_Conditions(t *testing.T) {
	block := para(run("A")) + para(field("if(age>=18)")) + para(run("adult")) + para(field("endif")) + para(run("B"))
	inline := para(run("Hi"), field("if(vip==true)"), run(" VIP"), field("endif"))
	quoted := para(field(`if(state=='a,b')`), run("match"), field("endif"))

	tests := []struct {
		name string
		body string
		data string
		want string
	}{
		{"block kept", block, `{"age": 20}`, "A|adult|B"},
		{"block equal bound", block, `{"age": 18}`, "A|adult|B"},
		{"block removed", block, `{"age": 10}`, "A|B"},
		{"type mismatch is false", block, `{"age": "x"}`, "A|B"},
		{"missing field is false", block, `{}`, "A|B"},
		{"inline kept", inline, `{"vip": true}`, "Hi VIP"},
		{"inline removed", inline, `{"vip": false}`, "Hi"},
		{"quoted operand with comma", quoted, `{"state": "a,b"}`, "match"},
		{"null operand", para(field("if(x==null)"), run("none"), field("endif")), `{"x": null}`, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := exportBody(t, tt.body, []byte(tt.data))
			if got := documentText(tree); got != tt.want {
				t.Errorf("document text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExport_InvalidConditionKeepsPairing(t *testing.T) {
	body := para(field("if(age)")) + para(run("kept")) + para(field("endif")) +
		para(field("if(age>1)")) + para(run("old")) + para(field("endif"))
	tree := exportBody(t, body, []byte(`{"age": 0}`))
	// The invalid if is left in place and still pairs with its endif.
	if got := documentText(tree); !strings.Contains(got, "kept") || strings.Contains(got, "old") {
		t.Errorf("document text = %q", got)
	}
}

func TestExport_Loops(t *testing.T) {
	loop := para(run("before")) +
		para(field("loop(items)")) +
		para(field("name"), run(" #"), field("_index")) +
		para(field("endloop")) +
		para(run("after"))

	tests := []struct {
		name string
		body string
		data string
		want string
	}{
		{"empty array removes block", loop, `{"items": []}`, "before|after"},
		{"one item", loop, `{"items": [{"name": "a"}]}`, "before|a #1|after"},
		{"three items", loop, `{"items": [{"name": "a"}, {"name": "b"}, {"name": "c"}]}`, "before|a #1|b #2|c #3|after"},
		{"missing array keeps content once", loop, `{}`, "before| #|after"},
		{"scalar items", para(field("loop(items)"), field("."), run(";"), field("endloop")), `{"items": ["x", "y"]}`, "x;y;"},
		{"last flag", para(field("loop(items)"), field("."), field("if(_last==false)"), run(","), field("endif"), field("endloop")), `{"items": [1, 2, 3]}`, "1,2,3"},
		{"outer fields are not visible in items", para(field("loop(items)"), field("title"), field("."), field("endloop")), `{"title": "T", "items": ["a", "b"]}`, "ab"},
		{
			"nested loops",
			para(field("loop(groups)")) + para(field("name")) + para(field("loop(members)"), field("."), field("endloop")) + para(field("endloop")),
			`{"groups": [{"name": "g1", "members": ["a", "b"]}, {"name": "g2", "members": ["c"]}]}`,
			"g1|ab|g2|c",
		},
		{
			"text beside loop markers is not repeated",
			para(run("Header "), field("loop(items)")) + para(field(".")) + para(field("endloop"), run(" Footer")),
			`{"items": ["x", "y", "z"]}`,
			"Header |x|y|z| Footer",
		},
		{
			"fields beside loop markers render once at top level",
			para(field("title"), run(": "), complexMergeField("loop(items)")) + para(field("name")) + para(complexMergeField("endloop"), field("title")),
			`{"title": "T", "items": [{"name": "a"}, {"name": "b"}]}`,
			"T: |a|b|T",
		},
		{
			"if inside loop",
			para(field("loop(items)")) + para(field("if(n>1)"), field("n"), field("endif")) + para(field("endloop")),
			`{"items": [{"n": 1}, {"n": 2}, {"n": 3}]}`,
			"2|3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := exportBody(t, tt.body, []byte(tt.data))
			if got := documentText(tree); got != tt.want {
				t.Errorf("document text = %q, want %q", got, tt.want)
			}
			if n := len(tree.FindAll(tree.DocumentElement(), "w:fldSimple")); n != 0 {
				t.Errorf("%d fields left after export", n)
			}
		})
	}
}

func TestExport_LoopCopiesGetFreshIDs(t *testing.T) {
	drawing := `<w:r><w:drawing><wp:inline><wp:extent cx="10" cy="10"/><wp:docPr id="1" name="Picture 1"/>` +
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		`<pic:pic><pic:nvPicPr><pic:cNvPr id="1" name="x.png"/></pic:nvPicPr></pic:pic>` +
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`
	body := para(field("loop(items)")) +
		`<w:p><w:bookmarkStart w:id="0" w:name="mark"/>` + drawing + `<w:bookmarkEnd w:id="0"/></w:p>` +
		para(field("endloop"))
	tree := exportBody(t, body, []byte(`{"items": [1, 2, 3]}`))

	docPrs := tree.FindAll(tree.DocumentElement(), "wp:docPr")
	if len(docPrs) != 3 {
		t.Fatalf("found %d drawings, want 3", len(docPrs))
	}
	seen := map[string]bool{}
	for _, n := range docPrs {
		id := tree.AttrValue(n, "id")
		if seen[id] {
			t.Errorf("duplicate docPr id %s", id)
		}
		seen[id] = true
	}

	names := map[string]bool{}
	for _, n := range tree.FindAll(tree.DocumentElement(), "w:bookmarkStart") {
		names[tree.AttrValue(n, "w:name")] = true
	}
	if len(names) != 3 {
		t.Errorf("bookmark names = %v, want 3 distinct", names)
	}
}

func tableRow(cells ...string) string {
	var b strings.Builder
	b.WriteString(`<w:tr>`)
	for _, c := range cells {
		b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/></w:tcPr>` + c + `</w:tc>`)
	}
	b.WriteString(`</w:tr>`)
	return b.String()
}

func TestExport_TableLoop(t *testing.T) {
	table := `<w:tbl><w:tblPr/><w:tblGrid><w:gridCol w:w="2000"/><w:gridCol w:w="2000"/></w:tblGrid>` +
		tableRow(para(run("Name")), para(run("Qty"))) +
		tableRow(para(field("table(rows)")), para()) +
		tableRow(para(field("name")), para(field("qty"))) +
		tableRow(para(field("endtable")), para()) +
		`</w:tbl>`
	body := table + para(run("end"))

	tests := []struct {
		name     string
		data     string
		wantRows []string
		noTable  bool
	}{
		{"three rows", `{"rows": [{"name": "a", "qty": 1}, {"name": "b", "qty": 2}, {"name": "c", "qty": 3}]}`, []string{"NameQty", "a1", "b2", "c3"}, false},
		{"one row", `{"rows": [{"name": "a", "qty": 1}]}`, []string{"NameQty", "a1"}, false},
		{"empty keeps header", `{"rows": []}`, []string{"NameQty"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := exportBody(t, body, []byte(tt.data))
			tbl := tree.Find(tree.DocumentElement(), "w:tbl")
			if tbl == xml.None {
				t.Fatal("table was removed")
			}
			rows := tree.ChildElements(tbl, "w:tr")
			var got []string
			for _, r := range rows {
				got = append(got, tree.Text(r))
			}
			if strings.Join(got, "|") != strings.Join(tt.wantRows, "|") {
				t.Errorf("rows = %q, want %q", got, tt.wantRows)
			}
			for _, r := range rows {
				if n := len(tree.ChildElements(r, "w:tc")); n != 2 {
					t.Errorf("row has %d cells, want 2", n)
				}
			}
		})
	}
}

func TestExport_TableLoopOnlyRowsRemovesTable(t *testing.T) {
	table := `<w:tbl><w:tblPr/>` +
		tableRow(para(field("table(rows)"), field("name"), field("endtable"))) +
		`</w:tbl>`
	tree := exportBody(t, table+para(run("end")), []byte(`{"rows": []}`))
	if tree.Find(tree.DocumentElement(), "w:tbl") != xml.None {
		t.Error("table without rows should be removed")
	}
	if got := documentText(tree); got != "end" {
		t.Errorf("document text = %q", got)
	}
}

func TestExport_LoopDepthLimit(t *testing.T) {
	config := DefaultConfig()
	config.CacheMaxSize = 0
	config.MaxRenderDepth = 1
	e := newTestEngine(WithConfig(config))
	body := para(field("loop(a)"), field("loop(b)"), field("."), field("endloop"), field("endloop"))
	pkg := exportPackage(t, e, buildDocx(t, body, nil), []byte(`{"a": [{"b": ["x", "y"]}]}`))
	tree := mainTree(t, pkg)
	if n := len(tree.FindAll(tree.DocumentElement(), "w:fldSimple")); n != 0 {
		t.Errorf("%d fields left after export", n)
	}
	if got := documentText(tree); strings.Contains(got, "x") {
		t.Errorf("nested loop beyond the limit should not expand, got %q", got)
	}
}

func TestExport_HeadersAndFooters(t *testing.T) {
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>
</Relationships>`
	header := `<w:hdr ` + documentNS + `>` + para(field("title:upper()")) + `</w:hdr>`
	footer := `<w:ftr ` + documentNS + `>` + para(run("page of "), field("title")) + `</w:ftr>`
	docx := buildDocx(t, para(field("title")), map[string]string{
		"word/_rels/document.xml.rels": rels,
		"word/header1.xml":             header,
		"word/footer1.xml":             footer,
	})
	pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"title": "report"})

	for part, want := range map[string]string{
		"word/document.xml": "report",
		"word/header1.xml":  "REPORT",
		"word/footer1.xml":  "page of report",
	} {
		tree, err := pkg.Tree(part)
		if err != nil {
			t.Fatalf("Tree(%s) error = %v", part, err)
		}
		if got := documentText(tree); got != want {
			t.Errorf("%s text = %q, want %q", part, got, want)
		}
	}
}

func TestExport_RemoveFallback(t *testing.T) {
	body := para(`<mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">` +
		`<mc:Choice Requires="wps">` + run("choice") + `</mc:Choice>` +
		`<mc:Fallback>` + run("fallback") + `</mc:Fallback></mc:AlternateContent>`)
	docx := buildDocx(t, body, nil)

	tree := mainTree(t, exportPackage(t, newTestEngine(), docx, map[string]any{}))
	if got := documentText(tree); got != "choice" {
		t.Errorf("with fallback removal text = %q", got)
	}
	tree = mainTree(t, exportPackage(t, newTestEngine(), docx, map[string]any{}, WithRemoveFallback(false)))
	if got := documentText(tree); got != "choicefallback" {
		t.Errorf("without fallback removal text = %q", got)
	}
}

func TestExport_CustomEvaluators(t *testing.T) {
	e := newTestEngine(WithEvaluator("Initials", func(v any, _ []any) (string, error) {
		var b strings.Builder
		for _, w := range strings.Fields(v.(string)) {
			b.WriteString(w[:1])
		}
		return b.String(), nil
	}))
	e.RegisterEvaluator("boom", func(any, []any) (string, error) { panic("boom") })

	docx := buildDocx(t, para(field("name:initials()"), run("/"), field("name:boom()")), nil)
	tmpl, err := e.PrepareBytes(docx)
	if err != nil {
		t.Fatal(err)
	}
	tmpl.RegisterEvaluator("initials", func(any, []any) (string, error) { return "override", nil })

	out, err := tmpl.Export(map[string]any{"name": "Ada Lovelace"})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out); err != nil {
		t.Fatal(err)
	}
	pkg, err := ReadPackage(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got := documentText(mainTree(t, pkg)); got != "override/Ada Lovelace" {
		t.Errorf("document text = %q", got)
	}

	// The engine's registry is not changed by the template override.
	got := documentText(mainTree(t, exportPackage(t, e, docx, map[string]any{"name": "Ada Lovelace"})))
	if got != "AL/Ada Lovelace" {
		t.Errorf("engine export text = %q", got)
	}
}

func TestExport_Errors(t *testing.T) {
	e := newTestEngine()
	tmpl, err := e.PrepareBytes(buildDocx(t, para(field("x")), nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpl.Export(nil); err != ErrNilData {
		t.Errorf("Export(nil) error = %v, want ErrNilData", err)
	}
	if _, err := tmpl.Export([]byte("null")); err != ErrNilData {
		t.Errorf("Export(null) error = %v, want ErrNilData", err)
	}
	if _, err := tmpl.Export([]byte("{")); err == nil {
		t.Error("Export() with broken JSON should fail")
	}
	var nilTmpl *Template
	if _, err := nilTmpl.Export(map[string]any{}); err != ErrNilSource {
		t.Errorf("nil template error = %v, want ErrNilSource", err)
	}
	if _, err := e.PrepareBytes(nil); err != ErrNilSource {
		t.Errorf("PrepareBytes(nil) error = %v, want ErrNilSource", err)
	}
	if _, err := e.Prepare(nil); err != ErrNilSource {
		t.Errorf("Prepare(nil) error = %v, want ErrNilSource", err)
	}
	if _, err := e.PrepareBytes([]byte("not a zip")); !IsDocumentError(err) {
		t.Errorf("PrepareBytes(garbage) error = %v, want document error", err)
	}
}

func TestExport_DataForms(t *testing.T) {
	type customer struct {
		Name string `json:"name"`
	}
	docx := buildDocx(t, para(field("name")), nil)
	tests := []struct {
		name  string
		value any
	}{
		{"bytes", []byte(`{"name": "n"}`)},
		{"reader", strings.NewReader(`{"name": "n"}`)},
		{"map", map[string]any{"name": "n"}},
		{"struct", customer{Name: "n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mainTree(t, exportPackage(t, newTestEngine(), docx, tt.value))
			if got := documentText(tree); got != "n" {
				t.Errorf("document text = %q", got)
			}
		})
	}
}

func TestExport_Concurrent(t *testing.T) {
	e := newTestEngine()
	tmpl, err := e.PrepareBytes(buildDocx(t, para(field("loop(items)"), field("."), field("endloop")), nil))
	if err != nil {
		t.Fatal(err)
	}
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			var buf bytes.Buffer
			errs <- tmpl.ExportTo(&buf, map[string]any{"items": []any{"a", "b"}})
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Errorf("ExportTo() error = %v", err)
		}
	}
}

// testPNG returns a w by h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExport_Image(t *testing.T) {
	raw := testPNG(t, 4, 2)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name      string
		directive string
		value     string
		wantCX    string
	}{
		{"data uri at natural size", "logo:image()", uri, ""},
		{"plain base64", "logo:image()", base64.StdEncoding.EncodeToString(raw), ""},
		{"half the text width", "logo:image(50)", uri, "2971800"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docx := buildDocx(t, para(run("x"), field(tt.directive)), nil)
			pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"logo": tt.value})
			if !pkg.Has("word/media/image1.png") {
				t.Fatalf("image part missing, parts = %v", pkg.Names())
			}
			if got, _ := pkg.Raw("word/media/image1.png"); !bytes.Equal(got, raw) {
				t.Error("image part content differs")
			}
			rels, err := pkg.Rels("word/document.xml")
			if err != nil {
				t.Fatal(err)
			}
			images := rels.ByType(relTypeImage)
			if len(images) != 1 || images[0].Target != "media/image1.png" {
				t.Fatalf("image rels = %+v", images)
			}

			tree := mainTree(t, pkg)
			blip := tree.Find(tree.DocumentElement(), "a:blip")
			if blip == xml.None || tree.AttrValue(blip, "r:embed") != images[0].ID {
				t.Error("blip does not reference the image relationship")
			}
			extent := tree.Find(tree.DocumentElement(), "wp:extent")
			if tt.wantCX != "" && tree.AttrValue(extent, "cx") != tt.wantCX {
				t.Errorf("extent cx = %s, want %s", tree.AttrValue(extent, "cx"), tt.wantCX)
			}
			if docPr := tree.Find(tree.DocumentElement(), "wp:docPr"); tree.AttrValue(docPr, "id") != "10000" {
				t.Errorf("docPr id = %s, want 10000", tree.AttrValue(docPr, "id"))
			}
			if got := documentText(tree); got != "x" {
				t.Errorf("document text = %q", got)
			}
		})
	}
}

func TestExport_ImageIntoPlaceholderDrawing(t *testing.T) {
	raw := testPNG(t, 4, 2)
	placeholder := `<w:r><w:drawing><wp:anchor><wp:extent cx="1000" cy="1000"/><wp:docPr id="5" name="Box" descr=""/>` +
		`<a:graphic><a:graphicData uri="http://schemas.microsoft.com/office/word/2010/wordprocessingShape">` +
		`<w:txbxContent>` + para(field("logo:image()")) + `</w:txbxContent>` +
		`</a:graphicData></a:graphic></wp:anchor></w:drawing></w:r>`
	docx := buildDocx(t, para(placeholder), nil)
	pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"logo": base64.StdEncoding.EncodeToString(raw)})
	tree := mainTree(t, pkg)

	gd := tree.Find(tree.DocumentElement(), "a:graphicData")
	if tree.AttrValue(gd, "uri") != pictureURI {
		t.Errorf("graphicData uri = %s", tree.AttrValue(gd, "uri"))
	}
	if tree.Find(gd, "w:txbxContent") != xml.None {
		t.Error("placeholder content should be replaced")
	}
	rect := tree.Find(gd, "a:srcRect")
	if rect == xml.None || tree.AttrValue(rect, "l") != "25000" || tree.AttrValue(rect, "r") != "25000" {
		t.Errorf("crop = %s", tree.OuterXML(rect))
	}
	if ext := tree.Find(gd, "a:ext"); tree.AttrValue(ext, "cx") != "1000" {
		t.Errorf("picture should keep the placeholder extent")
	}
}

func TestExport_MediaFailureRemovesField(t *testing.T) {
	docx := buildDocx(t, para(run("x"), field("logo:image()")), nil)
	metrics := NewMetrics()
	pkg := exportPackage(t, newTestEngine(WithMetrics(metrics)), docx, map[string]any{"logo": "not an image"})
	if got := documentText(mainTree(t, pkg)); got != "x" {
		t.Errorf("document text = %q", got)
	}
	for _, name := range pkg.Names() {
		if strings.HasPrefix(name, "word/media/") {
			t.Errorf("unexpected part %s", name)
		}
	}
}

func TestExport_Codes(t *testing.T) {
	tests := []struct {
		name      string
		directive string
	}{
		{"qr code", "code:qrcode()"},
		{"qr code with size", "code:qrcode(128, 2)"},
		{"barcode", "code:barcode()"},
		{"barcode with colours", "code:barcode(50, 2, '#000080', '#FFFFFF')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docx := buildDocx(t, para(field(tt.directive)), nil)
			pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"code": "HELLO-123"})
			raw, ok := pkg.Raw("word/media/image1.png")
			if !ok {
				t.Fatalf("code image missing, parts = %v", pkg.Names())
			}
			if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
				t.Errorf("code image is not a PNG: %v", err)
			}
			tree := mainTree(t, pkg)
			if tree.Find(tree.DocumentElement(), "w:drawing") == xml.None {
				t.Error("no drawing inserted")
			}
		})
	}
}

type stubCodes struct{ calls int }

func (s *stubCodes) Barcode(content string, height, barWidth int, style CodeStyle) ([]byte, error) {
	s.calls++
	return stubPNG, nil
}

func (s *stubCodes) QRCode(content string, size, border int, style CodeStyle) ([]byte, error) {
	s.calls++
	return stubPNG, nil
}

var stubPNG = func() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)))
	return buf.Bytes()
}()

func TestExport_CodeRenderer(t *testing.T) {
	stub := &stubCodes{}
	docx := buildDocx(t, para(field("code:qrcode()"), field("code:barcode()")), nil)
	exportPackage(t, newTestEngine(WithCodeRenderer(stub)), docx, map[string]any{"code": "x"})
	if stub.calls != 2 {
		t.Errorf("renderer called %d times, want 2", stub.calls)
	}
}

func TestExport_HTMLAndMarkdown(t *testing.T) {
	tests := []struct {
		name      string
		directive string
		value     string
		contains  string
	}{
		{"html fragment", "body:html()", "<p>Hello <b>world</b></p>", "<b>world</b>"},
		{"html document", "body:html()", "<html><body><p>full</p></body></html>", "<p>full</p>"},
		{"markdown", "body:markdown()", "# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |", "<table>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docx := buildDocx(t, para(run("before"))+para(run("Intro:"), field(tt.directive), run("Outro")), nil)
			pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"body": tt.value})

			rels, err := pkg.Rels("word/document.xml")
			if err != nil {
				t.Fatal(err)
			}
			chunks := rels.ByType(relTypeAFChunk)
			if len(chunks) != 1 {
				t.Fatalf("aFChunk rels = %+v", chunks)
			}
			raw, ok := pkg.Raw(pkg.Target("word/document.xml", chunks[0]))
			if !ok {
				t.Fatal("html chunk part missing")
			}
			if !strings.Contains(string(raw), tt.contains) || !strings.Contains(string(raw), "<html") {
				t.Errorf("chunk = %s", raw)
			}

			tree := mainTree(t, pkg)
			alt := tree.Find(tree.DocumentElement(), "w:altChunk")
			if alt == xml.None || tree.AttrValue(alt, "r:id") != chunks[0].ID {
				t.Fatal("altChunk missing or not related")
			}
			body := tree.Parent(alt)
			if !tree.Is(body, "w:body") {
				t.Error("altChunk should be a body child")
			}
			if prev := tree.PrevSibling(alt); tree.Text(prev) != "Intro:" {
				t.Errorf("altChunk follows %q, want the text before the field", tree.Text(prev))
			}
			if next := tree.NextSibling(alt); tree.Text(next) != "Outro" {
				t.Errorf("altChunk precedes %q, want the text after the field", tree.Text(next))
			}
			if got := documentText(tree); got != "before|Intro:|Outro" {
				t.Errorf("document text = %q", got)
			}
		})
	}
}

// subDocx returns a document whose body is body, with one image related
// as rId1 at word/media/image1.png and a style.
func subDocx(t *testing.T, body string, img []byte) []byte {
	t.Helper()
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>
</Relationships>`
	styles := `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
		`<w:style w:type="paragraph" w:styleId="SubHeading"><w:name w:val="Sub Heading"/></w:style>` +
		`</w:styles>`
	return buildDocx(t, body, map[string]string{
		"word/_rels/document.xml.rels": rels,
		"word/media/image1.png":        string(img),
		"word/styles.xml":              styles,
	})
}

func TestExport_Word(t *testing.T) {
	hostImage := testPNG(t, 1, 1)
	subImage := testPNG(t, 3, 3)

	blip := func(id string) string {
		return `<w:r><w:drawing><wp:inline><wp:extent cx="10" cy="10"/><wp:docPr id="1" name="P"/><a:graphic><a:graphicData uri="` + pictureURI + `">` +
			`<pic:pic><pic:nvPicPr><pic:cNvPr id="1" name="p"/></pic:nvPicPr><pic:blipFill><a:blip r:embed="` + id + `"/></pic:blipFill></pic:pic>` +
			`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`
	}
	sub := subDocx(t,
		`<w:p><w:pPr><w:pStyle w:val="SubHeading"/><w:ind w:left="720"/></w:pPr>`+run("imported")+`</w:p>`+
			para(blip("rId1"))+
			para(`<w:hyperlink r:id="rId3">`+run("link")+`</w:hyperlink>`)+
			`<w:sectPr/>`,
		subImage)

	hostRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`
	hostStyles := `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Host Normal"/></w:style></w:styles>`
	body := para(blip("rId1")) +
		`<w:p><w:pPr><w:jc w:val="center"/><w:ind w:left="100"/></w:pPr>` + field("doc:word()") + `</w:p>` +
		para(run("after"))
	docx := buildDocx(t, body, map[string]string{
		"word/_rels/document.xml.rels": hostRels,
		"word/media/image1.png":        string(hostImage),
		"word/styles.xml":              hostStyles,
	})

	pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"doc": base64.StdEncoding.EncodeToString(sub)})
	tree := mainTree(t, pkg)

	if got := documentText(tree); got != "|imported||link|after" {
		t.Errorf("document text = %q", got)
	}
	if tree.Find(tree.Find(tree.DocumentElement(), "w:body"), "w:sectPr") != xml.None {
		t.Error("sub-document section properties should not be imported")
	}

	rels, err := pkg.Rels("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	images := rels.ByType(relTypeImage)
	if len(images) != 2 {
		t.Fatalf("image rels = %+v", images)
	}
	targets := map[string]string{}
	for _, r := range images {
		targets[r.ID] = r.Target
	}
	if targets["rId1"] != "media/image1.png" {
		t.Errorf("host image rel changed: %v", targets)
	}
	if got, _ := pkg.Raw("word/media/image1.png"); !bytes.Equal(got, hostImage) {
		t.Error("host image was overwritten")
	}
	if got, _ := pkg.Raw("word/media/image2.png"); !bytes.Equal(got, subImage) {
		t.Error("sub-document image not copied to image2.png")
	}

	blips := tree.FindAll(tree.DocumentElement(), "a:blip")
	if len(blips) != 2 {
		t.Fatalf("found %d pictures, want 2", len(blips))
	}
	imported := tree.AttrValue(blips[1], "r:embed")
	if imported == "rId1" || targets[imported] != "media/image2.png" {
		t.Errorf("imported picture references %q -> %q", imported, targets[imported])
	}
	docPrIDs := map[string]bool{}
	for _, n := range tree.FindAll(tree.DocumentElement(), "wp:docPr") {
		docPrIDs[tree.AttrValue(n, "id")] = true
	}
	if len(docPrIDs) != 2 {
		t.Errorf("docPr ids not unique: %v", docPrIDs)
	}

	link := tree.Find(tree.DocumentElement(), "w:hyperlink")
	rel, ok := rels.Get(tree.AttrValue(link, "r:id"))
	if !ok || rel.Target != "https://example.com" || !rel.External() {
		t.Errorf("hyperlink rel = %+v, %v", rel, ok)
	}

	first := tree.ChildElements(tree.Find(tree.DocumentElement(), "w:body"), "w:p")[1]
	pPr := tree.FirstChildElement(first, "w:pPr")
	var names []string
	for _, c := range tree.Children(pPr) {
		names = append(names, tree.Name(c))
	}
	if strings.Join(names, ",") != "w:pStyle,w:ind,w:jc" {
		t.Errorf("merged paragraph properties = %v", names)
	}
	if ind := tree.FirstChildElement(pPr, "w:ind"); tree.AttrValue(ind, "w:left") != "100" {
		t.Errorf("indentation should come from the host paragraph")
	}

	styles, err := pkg.Tree("word/styles.xml")
	if err != nil {
		t.Fatal(err)
	}
	ids := styleIDs(styles)
	if !ids["paragraph/SubHeading"] || len(ids) != 2 {
		t.Errorf("merged styles = %v", ids)
	}
	normal := styles.ChildElements(styles.DocumentElement(), "w:style")[0]
	if styles.AttrValue(styles.FirstChildElement(normal, "w:name"), "w:val") != "Host Normal" {
		t.Error("host style should win")
	}
}

func TestExport_WordMultiSection(t *testing.T) {
	subRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footnotes" Target="footnotes.xml"/>
<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>
</Relationships>`
	sub := buildDocx(t,
		`<w:p><w:pPr><w:sectPr><w:headerReference w:type="default" r:id="rId4"/></w:sectPr></w:pPr>`+run("section one")+`</w:p>`+
			para(run("section two"), `<w:r><w:footnoteReference w:id="1"/></w:r>`)+
			para(`<w:hyperlink r:id="rId2">`+run("dangling")+`</w:hyperlink>`)+
			`<w:altChunk r:id="rId4"/>`+
			`<w:sectPr><w:headerReference w:type="default" r:id="rId4"/></w:sectPr>`,
		map[string]string{
			"word/_rels/document.xml.rels": subRels,
			"word/header1.xml":             `<w:hdr ` + documentNS + `>` + para(run("sub header")) + `</w:hdr>`,
			"word/footnotes.xml":           `<w:footnotes ` + documentNS + `/>`,
		})

	hostRels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>
</Relationships>`
	docx := buildDocx(t, para(run("Intro: "), field("doc:word()"), run(" end")), map[string]string{
		"word/_rels/document.xml.rels": hostRels,
		"word/media/image1.png":        string(testPNG(t, 1, 1)),
	})

	pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"doc": base64.StdEncoding.EncodeToString(sub)})
	tree := mainTree(t, pkg)

	if got := documentText(tree); got != "Intro: |section one|section two|dangling| end" {
		t.Errorf("document text = %q", got)
	}
	for _, name := range []string{"w:sectPr", "w:headerReference", "w:footnoteReference", "w:altChunk"} {
		if tree.Find(tree.DocumentElement(), name) != xml.None {
			t.Errorf("%s should not be imported", name)
		}
	}
	if _, ok := tree.Attr(tree.Find(tree.DocumentElement(), "w:hyperlink"), "r:id"); ok {
		t.Error("hyperlink kept a relationship id the host does not own")
	}

	rels, err := pkg.Rels("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels.Relationship) != 1 || len(rels.ByType(relTypeHeader)) != 0 {
		t.Errorf("host relationships = %+v", rels.Relationship)
	}
	tree.Walk(tree.DocumentElement(), func(n xml.NodeID) bool {
		for _, a := range tree.Attrs(n) {
			if strings.HasPrefix(a.Name, "r:") {
				t.Errorf("%s %s=%q left in the document", tree.Name(n), a.Name, a.Value)
			}
		}
		return true
	})
}

func TestExport_WordOutsideMainDocument(t *testing.T) {
	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>
</Relationships>`
	header := `<w:hdr ` + documentNS + `>` + para(run("h"), field("doc:word()")) + `</w:hdr>`
	docx := buildDocx(t, para(run("body")), map[string]string{
		"word/_rels/document.xml.rels": rels,
		"word/header1.xml":             header,
	})
	sub := subDocx(t, para(run("imported")), testPNG(t, 1, 1))
	pkg := exportPackage(t, newTestEngine(), docx, map[string]any{"doc": base64.StdEncoding.EncodeToString(sub)})
	tree, err := pkg.Tree("word/header1.xml")
	if err != nil {
		t.Fatal(err)
	}
	if got := documentText(tree); got != "h" {
		t.Errorf("header text = %q", got)
	}
}
