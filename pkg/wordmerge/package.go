package wordmerge

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	wxml "github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

	contentTypesPart      = "[Content_Types].xml"
	relationshipsNS       = "http://schemas.openxmlformats.org/package/2006/relationships"
	contentTypesNS        = "http://schemas.openxmlformats.org/package/2006/content-types"
	relationshipTypeBase  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	relTypeOfficeDocument = relationshipTypeBase + "officeDocument"
	relTypeHeader         = relationshipTypeBase + "header"
	relTypeFooter         = relationshipTypeBase + "footer"
	relTypeStyles         = relationshipTypeBase + "styles"
	relTypeImage          = relationshipTypeBase + "image"
	relTypeAFChunk        = relationshipTypeBase + "aFChunk"
	relTypeNumbering      = relationshipTypeBase + "numbering"
	relTypeSettings       = relationshipTypeBase + "settings"
	relTypeFontTable      = relationshipTypeBase + "fontTable"
	relTypeTheme          = relationshipTypeBase + "theme"
	relTypeWebSettings    = relationshipTypeBase + "webSettings"

	mainDocumentContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	stylesContentType       = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	htmlContentType         = "text/html"
)

// Relationship represents a relationship in the package
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// External reports whether the target lies outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships represents the collection of relationships of one part
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// Get finds a relationship by id.
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, rel := range r.Relationship {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// ByType returns the relationships of the given type in document order.
func (r *Relationships) ByType(typ string) []Relationship {
	var out []Relationship
	for _, rel := range r.Relationship {
		if rel.Type == typ {
			out = append(out, rel)
		}
	}
	return out
}

func (r *Relationships) Add(rel Relationship) {
	r.Relationship = append(r.Relationship, rel)
}

// ContentTypeDefault maps a file extension to a content type
type ContentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypeOverride sets the content type of one part
type ContentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// ContentTypes is the [Content_Types].xml part
type ContentTypes struct {
	XMLName   xml.Name              `xml:"Types"`
	Namespace string                `xml:"xmlns,attr"`
	Defaults  []ContentTypeDefault  `xml:"Default"`
	Overrides []ContentTypeOverride `xml:"Override"`
}

// EnsureDefault registers ext unless it already has a content type.
func (c *ContentTypes) EnsureDefault(ext, contentType string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, d := range c.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return
		}
	}
	c.Defaults = append(c.Defaults, ContentTypeDefault{Extension: ext, ContentType: contentType})
}

// SetOverride sets the content type of a part.
func (c *ContentTypes) SetOverride(part, contentType string) {
	name := "/" + strings.TrimPrefix(part, "/")
	for i, o := range c.Overrides {
		if strings.EqualFold(o.PartName, name) {
			c.Overrides[i].ContentType = contentType
			return
		}
	}
	c.Overrides = append(c.Overrides, ContentTypeOverride{PartName: name, ContentType: contentType})
}

// TypeOf returns the content type of a part from its override or the
// default of its extension.
func (c *ContentTypes) TypeOf(part string) string {
	name := "/" + strings.TrimPrefix(part, "/")
	for _, o := range c.Overrides {
		if strings.EqualFold(o.PartName, name) {
			return o.ContentType
		}
	}
	ext := strings.TrimPrefix(path.Ext(part), ".")
	for _, d := range c.Defaults {
		if strings.EqualFold(d.Extension, ext) {
			return d.ContentType
		}
	}
	return ""
}

var extensionContentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"emf":  "image/x-emf",
	"wmf":  "image/x-wmf",
	"html": htmlContentType,
	"xml":  "application/xml",
	"rels": "application/vnd.openxmlformats-package.relationships+xml",
}

// Package is an opened document archive. Parts are kept as raw bytes until
// they are parsed; parsed parts, relationships and content types are
// serialized again on Write.
type Package struct {
	names []string
	files map[string][]byte
	trees map[string]*wxml.Tree
	rels  map[string]*Relationships
	types *ContentTypes
}

// ReadPackage opens an archive held in memory.
func ReadPackage(b []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, NewDocumentError("open", "", fmt.Errorf("failed to read zip file: %w", err))
	}
	p := &Package{
		files: make(map[string][]byte, len(zr.File)),
		trees: make(map[string]*wxml.Tree),
		rels:  make(map[string]*Relationships),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, NewDocumentError("read", f.Name, err)
		}
		if _, dup := p.files[f.Name]; !dup {
			p.names = append(p.names, f.Name)
		}
		p.files[f.Name] = content
	}
	if !p.Has(p.MainDocument()) {
		return nil, NewDocumentError("open", p.MainDocument(), fmt.Errorf("not a valid DOCX file: missing main document"))
	}
	return p, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Names lists the parts in archive order; added parts come last.
func (p *Package) Names() []string {
	return append([]string(nil), p.names...)
}

func (p *Package) Has(name string) bool {
	_, ok := p.files[name]
	return ok
}

// Raw returns the current bytes of a part.
func (p *Package) Raw(name string) ([]byte, bool) {
	if !p.Has(name) {
		return nil, false
	}
	b, err := p.serialize(name)
	return b, err == nil
}

// Put adds or replaces a part with raw bytes.
func (p *Package) Put(name string, content []byte) {
	if !p.Has(name) {
		p.names = append(p.names, name)
	}
	p.files[name] = content
	delete(p.trees, name)
}

// Tree parses a part once and returns the same tree on later calls.
func (p *Package) Tree(name string) (*wxml.Tree, error) {
	if t, ok := p.trees[name]; ok {
		return t, nil
	}
	content, ok := p.files[name]
	if !ok {
		return nil, NewDocumentError("parse", name, fmt.Errorf("part not found"))
	}
	t, err := wxml.ParseBytes(content)
	if err != nil {
		return nil, NewDocumentError("parse", name, err)
	}
	p.trees[name] = t
	return t, nil
}

// PutTree adds a part whose content is the given tree.
func (p *Package) PutTree(name string, t *wxml.Tree) {
	if !p.Has(name) {
		p.names = append(p.names, name)
		p.files[name] = nil
	}
	p.trees[name] = t
}

// relsPath returns the relationships part of a part, e.g.
// "word/document.xml" -> "word/_rels/document.xml.rels".
func relsPath(part string) string {
	dir, base := path.Split(part)
	return dir + "_rels/" + base + ".rels"
}

func isRelsPart(name string) bool {
	return strings.HasSuffix(name, ".rels") && strings.Contains(name, "_rels/")
}

// sourceOfRels is the inverse of relsPath.
func sourceOfRels(name string) string {
	dir, base := path.Split(name)
	dir = strings.TrimSuffix(dir, "_rels/")
	return dir + strings.TrimSuffix(base, ".rels")
}

// Rels returns the relationships of a part. A part without a relationships
// part gets an empty one that is written only if something is added.
func (p *Package) Rels(part string) (*Relationships, error) {
	if r, ok := p.rels[part]; ok {
		return r, nil
	}
	r := &Relationships{Namespace: relationshipsNS}
	if content, ok := p.files[relsPath(part)]; ok {
		if err := xml.Unmarshal(content, r); err != nil {
			return nil, NewDocumentError("parse", relsPath(part), fmt.Errorf("failed to parse relationships: %w", err))
		}
		r.Namespace = relationshipsNS
	}
	p.rels[part] = r
	return r, nil
}

// ContentTypes returns the parsed [Content_Types].xml.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	if p.types != nil {
		return p.types, nil
	}
	ct := &ContentTypes{Namespace: contentTypesNS}
	if content, ok := p.files[contentTypesPart]; ok {
		if err := xml.Unmarshal(content, ct); err != nil {
			return nil, NewDocumentError("parse", contentTypesPart, err)
		}
		ct.Namespace = contentTypesNS
	}
	p.types = ct
	return ct, nil
}

// MainDocument returns the name of the main document part.
func (p *Package) MainDocument() string {
	if content, ok := p.files["_rels/.rels"]; ok {
		var r Relationships
		if xml.Unmarshal(content, &r) == nil {
			for _, rel := range r.ByType(relTypeOfficeDocument) {
				return resolveTarget("", rel.Target)
			}
		}
	}
	return "word/document.xml"
}

// Target resolves the target of a relationship of source to a part name.
func (p *Package) Target(source string, rel Relationship) string {
	return resolveTarget(source, rel.Target)
}

func resolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(source), target), "/")
}

// relativeTarget expresses part relative to the directory of source.
func relativeTarget(source, part string) string {
	dir := path.Dir(source)
	if dir == "." || dir == "" {
		return part
	}
	if strings.HasPrefix(part, dir+"/") {
		return strings.TrimPrefix(part, dir+"/")
	}
	return "/" + part
}

// UniqueName returns dir/prefix<n>.ext for the first n not taken.
func (p *Package) UniqueName(dir, prefix, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s/%s%d.%s", dir, prefix, n, ext)
		if !p.Has(name) {
			return name
		}
	}
}

// AddPart stores content as a new part related to source and returns the
// relationship id.
func (p *Package) AddPart(source, name, relType, contentType string, content []byte, id string) (string, error) {
	rels, err := p.Rels(source)
	if err != nil {
		return "", err
	}
	ct, err := p.ContentTypes()
	if err != nil {
		return "", err
	}
	p.Put(name, content)
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" && extensionContentTypes[strings.ToLower(ext)] == contentType {
		ct.EnsureDefault(ext, contentType)
	} else {
		ct.SetOverride(name, contentType)
	}
	rels.Add(Relationship{ID: id, Type: relType, Target: relativeTarget(source, name)})
	return id, nil
}

// Write serializes the package as a zip archive.
func (p *Package) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	written := make(map[string]bool, len(p.names))
	writeEntry := func(name string, content []byte) error {
		fw, err := zw.Create(name)
		if err != nil {
			return NewDocumentError("write", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			return NewDocumentError("write", name, err)
		}
		written[name] = true
		return nil
	}

	for _, name := range p.names {
		content, err := p.serialize(name)
		if err != nil {
			return err
		}
		if err := writeEntry(name, content); err != nil {
			return err
		}
	}
	if p.types != nil && !written[contentTypesPart] {
		content, err := marshalPart(p.types)
		if err != nil {
			return NewDocumentError("marshal", contentTypesPart, err)
		}
		if err := writeEntry(contentTypesPart, content); err != nil {
			return err
		}
	}
	sources := make([]string, 0, len(p.rels))
	for source := range p.rels {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		r := p.rels[source]
		name := relsPath(source)
		if written[name] || len(r.Relationship) == 0 {
			continue
		}
		content, err := marshalPart(r)
		if err != nil {
			return NewDocumentError("marshal", name, err)
		}
		if err := writeEntry(name, content); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return NewDocumentError("write", "", fmt.Errorf("failed to close zip writer: %w", err))
	}
	return nil
}

func (p *Package) serialize(name string) ([]byte, error) {
	if t, ok := p.trees[name]; ok {
		return t.Bytes(), nil
	}
	if name == contentTypesPart && p.types != nil {
		b, err := marshalPart(p.types)
		if err != nil {
			return nil, NewDocumentError("marshal", name, err)
		}
		return b, nil
	}
	if isRelsPart(name) {
		if r, ok := p.rels[sourceOfRels(name)]; ok {
			b, err := marshalPart(r)
			if err != nil {
				return nil, NewDocumentError("marshal", name, err)
			}
			return b, nil
		}
	}
	return p.files[name], nil
}

// marshalPart writes v with the declaration Word requires.
func marshalPart(v any) ([]byte, error) {
	output, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xmlHeader), output...), nil
}
