package wordmerge

import (
	"path"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// stylesPart returns the styles part related to source, or "".
func stylesPart(p *Package, source string) string {
	rels, err := p.Rels(source)
	if err != nil {
		return ""
	}
	for _, rel := range rels.ByType(relTypeStyles) {
		if name := p.Target(source, rel); p.Has(name) {
			return name
		}
	}
	return ""
}

// styleIDs indexes the w:style elements of a styles tree by type and id.
func styleIDs(t *xml.Tree) map[string]bool {
	ids := make(map[string]bool)
	for _, st := range t.ChildElements(t.DocumentElement(), "w:style") {
		ids[t.AttrValue(st, "w:type")+"/"+t.AttrValue(st, "w:styleId")] = true
	}
	return ids
}

// mergeStyles copies the styles of src that dst does not define into dst
// and returns how many were added. Existing styles always win.
func mergeStyles(dst, src *xml.Tree) int {
	existing := styleIDs(dst)
	root := dst.DocumentElement()
	added := 0
	for _, st := range src.ChildElements(src.DocumentElement(), "w:style") {
		key := src.AttrValue(st, "w:type") + "/" + src.AttrValue(st, "w:styleId")
		if existing[key] {
			continue
		}
		dst.AppendChild(root, dst.Import(src, st))
		existing[key] = true
		added++
	}
	return added
}

// importStyles merges the styles of a sub-document into the styles part of
// the host's main document, creating that part when the host has none.
func (s *session) importStyles(sub *Package, subMain string) error {
	from := stylesPart(sub, subMain)
	if from == "" {
		return nil
	}
	src, err := sub.Tree(from)
	if err != nil {
		return err
	}
	main := s.pkg.MainDocument()
	to := stylesPart(s.pkg, main)
	if to == "" {
		raw, _ := sub.Raw(from)
		name := path.Join(path.Dir(main), "styles.xml")
		if s.pkg.Has(name) {
			name = s.pkg.UniqueName(path.Dir(main), "styles", "xml")
		}
		_, err := s.pkg.AddPart(main, name, relTypeStyles, stylesContentType, raw, s.ids.RelID())
		return err
	}
	dst, err := s.pkg.Tree(to)
	if err != nil {
		return err
	}
	if n := mergeStyles(dst, src); n > 0 {
		s.logger.WithField("part", to).Debug("Merged %d styles", n)
	}
	return nil
}
