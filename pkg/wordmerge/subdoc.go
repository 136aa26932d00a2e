package wordmerge

import (
	"fmt"
	"path"
	"strings"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// documentLevelRels are relationships a main document may hold only once.
// Sub-documents never bring them along; styles are merged separately.
var documentLevelRels = map[string]bool{}

// partReferences point into parts a sub-document never brings along.
var partReferences = map[string]bool{
	"w:sectPr":            true,
	"w:footnoteReference": true,
	"w:endnoteReference":  true,
	"w:commentReference":  true,
	"w:commentRangeStart": true,
	"w:commentRangeEnd":   true,
}

// referenceOnly elements exist only to hold a relationship reference.
var referenceOnly = map[string]bool{
	"w:headerReference": true,
	"w:footerReference": true,
	"w:altChunk":        true,
}

// pPrOrder is the schema order of paragraph property children.
var pPrOrder = map[string]int{}

func init() {
	for _, typ := range []string{
		relTypeHeader, relTypeFooter, relTypeStyles, relTypeNumbering,
		relTypeSettings, relTypeFontTable, relTypeTheme, relTypeWebSettings,
		relationshipTypeBase + "footnotes",
		relationshipTypeBase + "endnotes",
		relationshipTypeBase + "comments",
		relationshipTypeBase + "customXml",
		relationshipTypeBase + "glossaryDocument",
		relationshipTypeBase + "stylesWithEffects",
	} {
		documentLevelRels[typ] = true
	}
	for i, name := range []string{
		"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr",
		"widowControl", "numPr", "suppressLineNumbers", "pBdr", "shd", "tabs",
		"suppressAutoHyphens", "kinsoku", "wordWrap", "overflowPunct",
		"topLinePunct", "autoSpaceDE", "autoSpaceDN", "bidi", "adjustRightInd",
		"snapToGrid", "spacing", "ind", "contextualSpacing", "mirrorIndents",
		"suppressOverlap", "jc", "textDirection", "textAlignment",
		"textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr", "sectPr",
		"pPrChange",
	} {
		pPrOrder[name] = i
	}
}

// subImporter copies the parts a sub-document references into the host
// package. Each part is copied once; every relationship gets a fresh id.
type subImporter struct {
	s      *session
	sub    *Package
	copied map[string]string
}

// insertDocument inlines the body of the document held by value where the
// field stands in the main document.
func (s *session) insertDocument(c *RenderContext, value any) error {
	if s.part != s.pkg.MainDocument() {
		return fmt.Errorf("documents can only be inserted into the main document")
	}
	raw, err := decodeDocument(data.String(value))
	if err != nil {
		return err
	}
	sub, err := ReadPackage(raw)
	if err != nil {
		return err
	}
	subMain := sub.MainDocument()
	src, err := sub.Tree(subMain)
	if err != nil {
		return err
	}
	body := src.FirstChildElement(src.DocumentElement(), "w:body")
	if body == xml.None {
		return fmt.Errorf("inserted document has no body")
	}

	t := s.tree
	block := render.BlockAncestor(t, c.Start.Start)
	if block == xml.None {
		return fmt.Errorf("word field is not inside a block")
	}

	if t.Is(block, "w:p") {
		render.SplitBefore(t, c.Start.Start)
	}
	imp := &subImporter{s: s, sub: sub, copied: make(map[string]string)}
	ids, err := imp.relate(subMain, s.part)
	if err != nil {
		return err
	}
	for prefix, uri := range src.Namespaces() {
		t.DeclareNamespace(prefix, uri)
	}

	var hostPPr xml.NodeID = xml.None
	if t.Is(block, "w:p") {
		hostPPr = t.FirstChildElement(block, "w:pPr")
	}
	var inserted []xml.NodeID
	for _, el := range src.Children(body) {
		if !src.IsElement(el) || src.Is(el, "w:sectPr") {
			continue
		}
		n := t.Import(src, el)
		dropPartReferences(t, n)
		if !remapRelIDs(t, n, ids) {
			continue
		}
		if hostPPr != xml.None && t.Is(n, "w:p") {
			mergeParagraphProperties(t, n, hostPPr)
		}
		t.InsertBefore(block, n)
		inserted = append(inserted, n)
	}
	s.ids.refresh(t, inserted...)
	if err := s.importStyles(sub, subMain); err != nil {
		s.logger.WithField("part", s.part).Warn("Failed to merge styles: %v", err)
	}
	render.RemoveMarker(t, c.Start, true)
	return nil
}

// decodeDocument reads a base64 or data URI encoded document.
func decodeDocument(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty document value")
	}
	if strings.HasPrefix(value, "data:") {
		_, b, err := parseDataURI(value)
		return b, err
	}
	return decodeBase64(value)
}

// relate copies the targets of source's relationships in the sub-document
// into the host, relating them to hostSource. It returns the mapping from
// old to new relationship ids.
func (imp *subImporter) relate(source, hostSource string) (map[string]string, error) {
	rels, err := imp.sub.Rels(source)
	if err != nil {
		return nil, err
	}
	hostRels, err := imp.s.pkg.Rels(hostSource)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string)
	for _, rel := range rels.Relationship {
		if documentLevelRels[rel.Type] {
			continue
		}
		id := imp.s.ids.RelID()
		if rel.External() {
			hostRels.Add(Relationship{ID: id, Type: rel.Type, Target: rel.Target, TargetMode: rel.TargetMode})
			ids[rel.ID] = id
			continue
		}
		name, err := imp.copyPart(imp.sub.Target(source, rel))
		if err != nil {
			imp.s.logger.WithField("rel", rel.ID).Warn("Skipping related part: %v", err)
			continue
		}
		hostRels.Add(Relationship{ID: id, Type: rel.Type, Target: relativeTarget(hostSource, name)})
		ids[rel.ID] = id
	}
	return ids, nil
}

// copyPart copies one sub-document part and, recursively, the parts it
// relates to. It returns the name of the copy.
func (imp *subImporter) copyPart(name string) (string, error) {
	if done, ok := imp.copied[name]; ok {
		return done, nil
	}
	raw, ok := imp.sub.Raw(name)
	if !ok {
		return "", fmt.Errorf("part %s not found", name)
	}
	types, err := imp.sub.ContentTypes()
	if err != nil {
		return "", err
	}
	contentType := types.TypeOf(name)
	if contentType == "" {
		contentType = extensionContentTypes[strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))]
	}

	prefix, ext := partPrefix(name)
	copyName := imp.s.pkg.UniqueName(path.Dir(name), prefix, ext)
	imp.copied[name] = copyName

	hostTypes, err := imp.s.pkg.ContentTypes()
	if err != nil {
		return "", err
	}
	imp.s.pkg.Put(copyName, raw)
	if contentType != "" {
		if extensionContentTypes[strings.ToLower(ext)] == contentType {
			hostTypes.EnsureDefault(ext, contentType)
		} else {
			hostTypes.SetOverride(copyName, contentType)
		}
	}

	subRels, err := imp.sub.Rels(name)
	if err != nil || len(subRels.Relationship) == 0 {
		return copyName, nil
	}
	ids, err := imp.relate(name, copyName)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(contentType, "xml") {
		t, err := imp.s.pkg.Tree(copyName)
		if err != nil {
			return copyName, nil
		}
		remapRelIDs(t, t.DocumentElement(), ids)
	}
	return copyName, nil
}

// partPrefix splits "word/media/image12.png" into "image" and "png".
func partPrefix(name string) (string, string) {
	base := path.Base(name)
	ext := strings.TrimPrefix(path.Ext(base), ".")
	stem := strings.TrimRight(strings.TrimSuffix(base, path.Ext(base)), "0123456789")
	if stem == "" {
		stem = "part"
	}
	if ext == "" {
		ext = "bin"
	}
	return stem, ext
}

// remapRelIDs rewrites every relationship reference under root to its new
// id. A reference without a new id would resolve against the host's own
// relationships, so it is dropped: the whole element when it exists only to
// hold the reference, the attribute otherwise. It reports false when root
// itself was such an element.
func remapRelIDs(t *xml.Tree, root xml.NodeID, ids map[string]string) bool {
	var drop []xml.NodeID
	t.Walk(root, func(n xml.NodeID) bool {
		if !t.IsElement(n) {
			return true
		}
		attrs := append([]xml.Attr(nil), t.Attrs(n)...)
		for _, a := range attrs {
			if !strings.HasPrefix(a.Name, "r:") {
				continue
			}
			if id, ok := ids[a.Value]; ok {
				t.SetAttr(n, a.Name, id)
				continue
			}
			if referenceOnly[t.Name(n)] {
				drop = append(drop, n)
				return false
			}
			t.RemoveAttr(n, a.Name)
		}
		return true
	})
	for _, n := range drop {
		if n == root {
			return false
		}
		t.Remove(n)
	}
	return true
}

// dropPartReferences removes section properties and references to notes and
// comments from imported content.
func dropPartReferences(t *xml.Tree, root xml.NodeID) {
	var drop []xml.NodeID
	t.Walk(root, func(n xml.NodeID) bool {
		if n != root && t.IsElement(n) && partReferences[t.Name(n)] {
			drop = append(drop, n)
			return false
		}
		return true
	})
	for _, n := range drop {
		t.Remove(n)
	}
}

// mergeParagraphProperties gives an inserted paragraph the properties of the
// paragraph it replaces: its own properties win, except indentation, which
// always comes from the host.
func mergeParagraphProperties(t *xml.Tree, p, host xml.NodeID) {
	merged := t.NewElement("w:pPr")
	have := make(map[string]bool)
	if own := t.FirstChildElement(p, "w:pPr"); own != xml.None {
		for _, c := range t.Children(own) {
			if t.IsElement(c) && !t.Is(c, "w:ind") {
				have[t.Name(c)] = true
				t.AppendChild(merged, t.Clone(c))
			}
		}
		t.Remove(own)
	}
	for _, c := range t.Children(host) {
		if !t.IsElement(c) || have[t.Name(c)] || t.Is(c, "w:sectPr") {
			continue
		}
		t.AppendChild(merged, t.Clone(c))
	}
	children := t.Children(merged)
	if len(children) == 0 {
		return
	}
	sortByOrder(t, merged, children)
	t.PrependChild(p, merged)
}

func sortByOrder(t *xml.Tree, parent xml.NodeID, children []xml.NodeID) {
	rank := func(n xml.NodeID) int {
		if r, ok := pPrOrder[t.Local(n)]; ok {
			return r
		}
		return len(pPrOrder)
	}
	for i := 1; i < len(children); i++ {
		for j := i; j > 0 && rank(children[j]) < rank(children[j-1]); j-- {
			children[j], children[j-1] = children[j-1], children[j]
		}
	}
	for _, c := range children {
		t.Remove(c)
		t.AppendChild(parent, c)
	}
}
