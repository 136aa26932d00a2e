package wordmerge

import (
	"strings"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// session renders one package against one data tree. It owns every id
// generated during the export and is used by a single goroutine.
type session struct {
	pkg      *Package
	registry *Registry
	config   *Config
	ids      *idGenerator
	logger   *Logger
	metrics  *Metrics
	builder  *contextBuilder
	codes    CodeRenderer
	root     any

	// part and tree are the part being rendered.
	part string
	tree *xml.Tree
}

func newSession(pkg *Package, root any, registry *Registry, config *Config, logger *Logger, metrics *Metrics, codes CodeRenderer) *session {
	if codes == nil {
		codes = DefaultCodeRenderer
	}
	return &session{
		pkg:      pkg,
		registry: registry,
		config:   config,
		ids:      newIDGenerator(),
		logger:   logger,
		metrics:  metrics,
		builder:  &contextBuilder{registry: registry, logger: logger, metrics: metrics},
		codes:    codes,
		root:     root,
	}
}

// parts lists the parts to render: headers, the main document, then
// footers.
func (s *session) parts() ([]string, error) {
	main := s.pkg.MainDocument()
	rels, err := s.pkg.Rels(main)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{main: true}
	related := func(typ string) []string {
		var out []string
		for _, rel := range rels.ByType(typ) {
			if rel.External() {
				continue
			}
			name := s.pkg.Target(main, rel)
			if !seen[name] && s.pkg.Has(name) {
				seen[name] = true
				out = append(out, name)
			}
		}
		return out
	}
	headers := related(relTypeHeader)
	footers := related(relTypeFooter)
	out := append(headers, main)
	return append(out, footers...), nil
}

// run renders every part in place.
func (s *session) run(removeFallback bool) (int, error) {
	parts, err := s.parts()
	if err != nil {
		return 0, err
	}
	trees := make([]*xml.Tree, len(parts))
	for i, name := range parts {
		t, err := s.pkg.Tree(name)
		if err != nil {
			return 0, err
		}
		s.ids.observe(t)
		trees[i] = t
	}
	for i, name := range parts {
		if removeFallback {
			if n := render.RemoveFallbacks(trees[i]); n > 0 {
				s.logger.WithField("part", name).Debug("Removed %d fallback blocks", n)
			}
		}
		s.renderPart(name, trees[i])
	}
	return len(parts), nil
}

func (s *session) renderPart(name string, t *xml.Tree) {
	s.part, s.tree = name, t
	markers := render.FindMarkers(t, t.DocumentElement())
	if len(markers) == 0 {
		return
	}
	s.logger.WithField("part", name).Debug("Rendering %d field markers", len(markers))
	s.renderList(s.builder.build(markers, nil))
}

// renderList renders contexts depth first in document order. Loop and
// table contexts are replaced by the contexts their expansion yields, and
// the updated list is returned.
func (s *session) renderList(list []*RenderContext) []*RenderContext {
	for i := 0; i < len(list); i++ {
		c := list[i]
		if c.Directive.Verb.Scope() && c.item == nil {
			list = splice(list, i, s.expand(c))
			i--
			continue
		}
		s.renderContext(c)
	}
	return list
}

func splice(list []*RenderContext, i int, repl []*RenderContext) []*RenderContext {
	out := make([]*RenderContext, 0, len(list)-1+len(repl))
	out = append(out, list[:i]...)
	out = append(out, repl...)
	return append(out, list[i+1:]...)
}

func (s *session) renderContext(c *RenderContext) {
	switch {
	case c.item != nil:
		render.RemoveMarker(s.tree, c.Start, true)
		render.RemoveMarker(s.tree, c.End, true)
		c.Children = s.renderList(c.Children)
	case c.Directive.Verb == VerbIf:
		s.renderCondition(c)
	default:
		s.renderField(c)
	}
}

// renderCondition keeps the guarded content when the comparison holds and
// removes the whole range otherwise.
func (s *session) renderCondition(c *RenderContext) {
	t := s.tree
	if c.Start.Removed(t) {
		return
	}
	left, _ := data.Lookup(c.scope(s.root), c.Directive.Field)
	right := operand(c.Directive.Params)
	ok, err := Test(left, right, c.Directive.Operator)
	if err != nil {
		s.logger.WithField("directive", c.Directive.String()).Warn("Condition failed: %v", err)
		ok = false
	}
	if ok {
		render.RemoveMarker(t, c.Start, true)
		render.RemoveMarker(t, c.End, true)
		return
	}
	if !render.RemoveRange(t, c.Start.Start, c.End.End) {
		render.RemoveMarker(t, c.Start, true)
		render.RemoveMarker(t, c.End, true)
	}
}

// operand converts the right-hand side of a condition. A single quoted
// token keeps its escapes resolved; anything else is converted as a whole.
func operand(params string) any {
	if toks := SplitParameters(params); len(toks) == 1 {
		return ConvertParameter(toks[0])
	}
	return ConvertParameter(strings.TrimSpace(params))
}

// renderField substitutes one leaf directive.
func (s *session) renderField(c *RenderContext) {
	t := s.tree
	if c.Start.Removed(t) {
		return
	}
	value, _ := data.Lookup(c.scope(s.root), c.Directive.Field)
	if value == nil {
		render.RemoveMarker(t, c.Start, false)
		return
	}
	if _, ok := value.(*data.Object); ok {
		s.logger.WithField("field", c.Directive.Field).Debug("Object bound to a plain field, removing marker")
		render.RemoveMarker(t, c.Start, false)
		return
	}
	if c.Evaluator.Kind.IsMedia() {
		s.renderMedia(c, value)
		return
	}
	params := s.parameters(c)
	var text string
	if arr, ok := value.(data.Array); ok {
		parts := make([]string, len(arr))
		for i, v := range arr {
			parts[i] = s.format(c, v, params)
		}
		text = strings.Join(parts, ", ")
	} else {
		text = s.format(c, value, params)
	}
	render.SetMarkerText(t, c.Start, text)
}

// parameters converts the parameter text of c. The default evaluator takes
// the whole text as one format pattern, commas included.
func (s *session) parameters(c *RenderContext) []any {
	d := c.Directive
	if d.Params == "" {
		return nil
	}
	if c.Evaluator.Kind == KindDefault && d.Function == "" {
		return []any{unquote(d.Params)}
	}
	return ParseParameters(d.Params)
}

// format runs the evaluator of c and falls back to the plain string form of
// value when it fails or panics.
func (s *session) format(c *RenderContext, value any, params []any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			s.evaluationFailed(c, RecoverError(r))
			text = data.String(value)
		}
	}()
	out, err := c.Evaluator.Format(value, params)
	if err != nil {
		s.evaluationFailed(c, err)
		return data.String(value)
	}
	return out
}

func (s *session) evaluationFailed(c *RenderContext, err error) {
	err = NewEvaluationError(c.Directive.Field, c.Directive.Function, err)
	s.logger.WithFields(Fields{"part": s.part, "directive": c.Directive.String()}).Warn("%v", err)
	s.metrics.failure(c.Directive.Function)
}

// renderMedia inserts a picture, imported HTML or another document. On
// failure the marker is removed and nothing is written.
func (s *session) renderMedia(c *RenderContext, value any) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = RecoverError(r)
			}
		}()
		params := ParseParameters(c.Directive.Params)
		switch c.Evaluator.Kind {
		case KindImage:
			return s.insertImage(c, value, params)
		case KindBarcode, KindQRCode:
			return s.insertCode(c, value, params)
		case KindHTML:
			return s.insertHTML(c, data.String(value))
		case KindMarkdown:
			return s.insertMarkdown(c, data.String(value))
		case KindWord:
			return s.insertDocument(c, value)
		}
		return nil
	}()
	if err != nil {
		s.evaluationFailed(c, err)
		render.RemoveMarker(s.tree, c.Start, false)
	}
}
