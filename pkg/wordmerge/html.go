package wordmerge

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

const htmlEnvelope = `<html><head><meta charset="UTF-8"></head><body>%s</body></html>`

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// normalizeHTML parses an HTML fragment or document and renders the body
// content as well-formed markup.
func normalizeHTML(src string) (string, error) {
	var nodes []*html.Node
	lower := strings.ToLower(src)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "<body") {
		doc, err := html.Parse(strings.NewReader(src))
		if err != nil {
			return "", fmt.Errorf("parsing HTML: %w", err)
		}
		if body := findElement(doc, atom.Body); body != nil {
			for c := body.FirstChild; c != nil; c = c.NextSibling {
				nodes = append(nodes, c)
			}
		}
	} else {
		ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		var err error
		nodes, err = html.ParseFragment(strings.NewReader(src), ctx)
		if err != nil {
			return "", fmt.Errorf("parsing HTML: %w", err)
		}
	}
	var b bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", fmt.Errorf("rendering HTML: %w", err)
		}
	}
	return b.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// insertHTML stores the value as an HTML part and places an altChunk
// importing it where the field stands. Text before the field stays in a
// paragraph above the chunk.
func (s *session) insertHTML(c *RenderContext, value string) error {
	body, err := normalizeHTML(value)
	if err != nil {
		return err
	}
	t := s.tree
	block := render.BlockAncestor(t, c.Start.Start)
	if block == xml.None {
		return fmt.Errorf("html field is not inside a block")
	}
	id := s.ids.RelID()
	name := s.pkg.UniqueName(path.Dir(s.part), "htmlchunk", "html")
	if _, err := s.pkg.AddPart(s.part, name, relTypeAFChunk, htmlContentType, []byte(fmt.Sprintf(htmlEnvelope, body)), id); err != nil {
		return err
	}
	if t.Is(block, "w:p") {
		render.SplitBefore(t, c.Start.Start)
	}
	t.DeclareNamespace("r", xml.NamespaceR)
	chunk := t.NewElement("w:altChunk", xml.Attr{Name: "r:id", Value: id})
	t.InsertBefore(block, chunk)
	render.RemoveMarker(t, c.Start, true)
	return nil
}

// insertMarkdown converts the value to HTML and imports it like html().
func (s *session) insertMarkdown(c *RenderContext, value string) error {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(value), &buf); err != nil {
		return fmt.Errorf("converting markdown: %w", err)
	}
	return s.insertHTML(c, buf.String())
}
