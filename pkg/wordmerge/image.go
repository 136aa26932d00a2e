package wordmerge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

const (
	emuPerInch = 914400
	emuPerTwip = 635

	pictureURI = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	// Letter with one inch margins, in twips.
	defaultTextWidth = 12240 - 2*1440
)

// picture is a decoded image ready to be stored in the package.
type picture struct {
	data   []byte
	mime   string
	ext    string
	width  int
	height int
}

var formatExtensions = map[string]string{
	"png":  "png",
	"jpeg": "jpeg",
	"gif":  "gif",
	"bmp":  "bmp",
	"tiff": "tiff",
	"webp": "webp",
}

// parseDataURI splits `data:<mime>;base64,<payload>` and decodes the
// payload.
func parseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	uri = uri[len("data:"):]
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	meta, payload := uri[:comma], uri[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("missing base64 marker")
	}
	if payload == "" {
		return "", nil, fmt.Errorf("no image data")
	}
	b, err := decodeBase64(payload)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSuffix(meta, ";base64"), b, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err2 := base64.RawStdEncoding.DecodeString(s); err2 == nil {
			return b, nil
		}
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return b, nil
}

// decodePicture reads a data URI or bare base64 image and detects its
// format and pixel size.
func decodePicture(value string) (*picture, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty image value")
	}
	var (
		raw []byte
		err error
	)
	if strings.HasPrefix(value, "data:") {
		_, raw, err = parseDataURI(value)
	} else {
		raw, err = decodeBase64(value)
	}
	if err != nil {
		return nil, err
	}
	return newPicture(raw)
}

func newPicture(raw []byte) (*picture, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	ext, ok := formatExtensions[format]
	if !ok {
		return nil, fmt.Errorf("unsupported image type: %s", format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has no size")
	}
	return &picture{data: raw, mime: "image/" + format, ext: ext, width: cfg.Width, height: cfg.Height}, nil
}

// extent returns the natural size of p in EMU.
func (p *picture) extent(dpi float64) (int64, int64) {
	return int64(float64(p.width) / dpi * emuPerInch), int64(float64(p.height) / dpi * emuPerInch)
}

func (s *session) insertImage(c *RenderContext, value any, params []any) error {
	pic, err := decodePicture(data.String(value))
	if err != nil {
		return err
	}
	var percent float64
	if len(params) > 0 {
		d, err := toDecimal(params[0])
		if err != nil {
			return fmt.Errorf("invalid width percentage: %w", err)
		}
		percent, _ = d.Float64()
	}
	return s.placePicture(c, pic, percent)
}

// placePicture stores pic and shows it at the marker. A marker inside an
// existing drawing turns that drawing into the picture; otherwise a new
// inline drawing replaces the marker, at natural size or at percent of the
// text width.
func (s *session) placePicture(c *RenderContext, pic *picture, percent float64) error {
	t := s.tree
	id := s.ids.RelID()
	name := s.pkg.UniqueName(path.Join(path.Dir(s.part), "media"), "image", pic.ext)
	if _, err := s.pkg.AddPart(s.part, name, relTypeImage, pic.mime, pic.data, id); err != nil {
		return err
	}
	t.DeclareNamespace("r", xml.NamespaceR)
	t.DeclareNamespace("wp", xml.NamespaceWP)

	if drawing := t.Ancestor(c.Start.Start, "w:drawing"); drawing != xml.None {
		return s.swapPicture(drawing, id, pic)
	}

	cx, cy := pic.extent(s.config.ImageDPI)
	if percent > 0 {
		width := int64(float64(s.textWidth()*emuPerTwip) * percent / 100)
		cy = cy * width / cx
		cx = width
	}
	docPr := s.ids.Uint()
	nodes, err := t.ParseFragment(fmt.Sprintf(
		`<w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="%d" cy="%d"/><wp:effectExtent l="0" t="0" r="0" b="0"/><wp:docPr id="%d" name="Picture %d"/><wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="%s" noChangeAspect="1"/></wp:cNvGraphicFramePr><a:graphic xmlns:a="%s"><a:graphicData uri="%s">%s</a:graphicData></a:graphic></wp:inline></w:drawing>`,
		cx, cy, docPr, docPr, xml.NamespaceA, xml.NamespaceA, pictureURI, pictureXML(s.ids.Uint(), name, id, cx, cy, "")))
	if err != nil {
		return err
	}
	run := s.replaceWithRun(c)
	if run == xml.None {
		return fmt.Errorf("marker is gone")
	}
	for _, n := range nodes {
		t.AppendChild(run, n)
	}
	return nil
}

// pictureXML is the pic:pic element showing the image related as relID.
func pictureXML(id uint32, name, relID string, cx, cy int64, srcRect string) string {
	return fmt.Sprintf(
		`<pic:pic xmlns:pic="%s"><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr><pic:blipFill><a:blip r:embed="%s"/>%s<a:stretch><a:fillRect/></a:stretch></pic:blipFill><pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic>`,
		pictureURI, id, path.Base(name), relID, srcRect, cx, cy)
}

// swapPicture replaces the graphic of an existing drawing with pic. The
// drawing keeps its extent; the image is cropped around its center when
// the aspect ratios differ.
func (s *session) swapPicture(drawing xml.NodeID, relID string, pic *picture) error {
	t := s.tree
	extent := t.Find(drawing, "wp:extent")
	gd := t.Find(drawing, "a:graphicData")
	if extent == xml.None || gd == xml.None {
		return fmt.Errorf("placeholder drawing has no graphic")
	}
	cx, _ := strconv.ParseInt(t.AttrValue(extent, "cx"), 10, 64)
	cy, _ := strconv.ParseInt(t.AttrValue(extent, "cy"), 10, 64)
	if cx <= 0 || cy <= 0 {
		cx, cy = pic.extent(s.config.ImageDPI)
	}
	nodes, err := t.ParseFragment(pictureXML(s.ids.Uint(), "placeholder", relID, cx, cy, cropRect(pic, cx, cy)))
	if err != nil {
		return err
	}
	for _, c := range t.Children(gd) {
		t.Remove(c)
	}
	t.SetAttr(gd, "uri", pictureURI)
	for _, n := range nodes {
		t.AppendChild(gd, n)
	}
	return nil
}

// cropRect returns an a:srcRect trimming pic equally on both sides so it
// fills a cx by cy box, or "" when no crop is needed. Offsets are in
// thousandths of a percent.
func cropRect(pic *picture, cx, cy int64) string {
	img := float64(pic.width) / float64(pic.height)
	box := float64(cx) / float64(cy)
	switch {
	case img > box*1.0001:
		side := int((1 - box/img) / 2 * 100000)
		return fmt.Sprintf(`<a:srcRect l="%d" r="%d"/>`, side, side)
	case box > img*1.0001:
		side := int((1 - img/box) / 2 * 100000)
		return fmt.Sprintf(`<a:srcRect t="%d" b="%d"/>`, side, side)
	}
	return ""
}

// textWidth is the page width minus the side margins of the main
// document's last section, in twips.
func (s *session) textWidth() int64 {
	t, err := s.pkg.Tree(s.pkg.MainDocument())
	if err != nil {
		return defaultTextWidth
	}
	sections := t.FindAll(t.DocumentElement(), "w:sectPr")
	if len(sections) == 0 {
		return defaultTextWidth
	}
	sect := sections[len(sections)-1]
	pgSz := t.FirstChildElement(sect, "w:pgSz")
	pgMar := t.FirstChildElement(sect, "w:pgMar")
	if pgSz == xml.None {
		return defaultTextWidth
	}
	twips := func(n xml.NodeID, attr string) int64 {
		if n == xml.None {
			return 0
		}
		v, _ := strconv.ParseInt(t.AttrValue(n, attr), 10, 64)
		return v
	}
	w := twips(pgSz, "w:w") - twips(pgMar, "w:left") - twips(pgMar, "w:right")
	if w <= 0 {
		return defaultTextWidth
	}
	return w
}

// replaceWithRun swaps the marker for an empty run carrying the field's
// formatting and returns it.
func (s *session) replaceWithRun(c *RenderContext) xml.NodeID {
	t := s.tree
	run := render.SetMarkerText(t, c.Start, "")
	if run == xml.None {
		return xml.None
	}
	for _, n := range t.Children(run) {
		if !t.Is(n, "w:rPr") {
			t.Remove(n)
		}
	}
	return run
}
