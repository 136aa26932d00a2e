package wordmerge

import (
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/render"
)

// RenderContext is one directive bound to its place in a part. Loop and
// table contexts own the contexts between their markers; every other
// directive is a leaf.
type RenderContext struct {
	Directive Directive
	Evaluator Evaluator
	Start     *render.Marker
	// End is the end marker of a block directive.
	End      *render.Marker
	Parent   *RenderContext
	Children []*RenderContext
	// Index is the position of the item a loop context renders.
	Index int

	// item is the data scope of a loop context once it is bound to one
	// array element.
	item *data.Object
}

// scope returns the data fields are resolved against: the item of the
// nearest enclosing loop, or root.
func (c *RenderContext) scope(root any) any {
	for p := c.Parent; p != nil; p = p.Parent {
		if p.item != nil {
			return p.item
		}
	}
	return root
}

// depth counts the loop contexts enclosing c.
func (c *RenderContext) depth() int {
	d := 0
	for p := c.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// markers returns the markers of c and of every context below it.
func (c *RenderContext) markers() []*render.Marker {
	out := []*render.Marker{c.Start}
	if c.End != nil {
		out = append(out, c.End)
	}
	for _, child := range c.Children {
		out = append(out, child.markers()...)
	}
	return out
}

// contextBuilder turns the markers of a part into a context tree with two
// stacks: scopes holds the open loops that new contexts attach to, and
// blocks holds every block still waiting for its end marker. An if is a
// block but not a scope, so contexts inside it stay siblings of the if.
type contextBuilder struct {
	registry *Registry
	logger   *Logger
	metrics  *Metrics
}

func (b *contextBuilder) build(markers []*render.Marker, parent *RenderContext) []*RenderContext {
	var (
		roots  []*RenderContext
		scopes []*RenderContext
		blocks []*RenderContext
	)
	for _, m := range markers {
		text, ok := FieldDirective(m.Instr)
		if !ok {
			continue
		}
		d, err := ParseDirective(text)
		if d.Verb.IsEnd() {
			if (d.Verb == VerbEndLoop || d.Verb == VerbEndTable) && len(scopes) > 0 {
				scopes = scopes[:len(scopes)-1]
			}
			if len(blocks) > 0 {
				blocks[len(blocks)-1].End = m
				blocks = blocks[:len(blocks)-1]
			} else {
				b.logger.Debug("Ignoring unmatched %s", d.Verb)
			}
			continue
		}
		if err != nil {
			b.logger.WithField("directive", text).Warn("Dropping directive: %v", err)
			b.metrics.directive("invalid")
			if d.Verb == VerbIf {
				// Holds the slot of the invalid if so its endif pairs with it.
				blocks = append(blocks, &RenderContext{Directive: d, Start: m})
			}
			continue
		}

		ctx := &RenderContext{Directive: d, Start: m}
		switch d.Verb {
		case VerbIf:
			ctx.Evaluator = Builtin(KindCondition)
		case VerbLoop:
			ctx.Evaluator = Builtin(KindLoop)
		case VerbTable:
			ctx.Evaluator = Builtin(KindTable)
		default:
			e, ok := b.registry.Lookup(d.Function)
			if !ok {
				b.logger.WithField("directive", text).Warn("Unknown function %q, leaving field untouched", d.Function)
				b.metrics.directive("unknown")
				continue
			}
			ctx.Evaluator = e
		}
		b.metrics.directive(ctx.Evaluator.Kind.String())
		if b.logger.IsDebugMode() {
			b.logger.Debug("Parsed directive %s", d)
		}

		if len(scopes) > 0 {
			ctx.Parent = scopes[len(scopes)-1]
			ctx.Parent.Children = append(ctx.Parent.Children, ctx)
		} else {
			ctx.Parent = parent
			roots = append(roots, ctx)
		}
		if d.Verb.IsBlock() {
			blocks = append(blocks, ctx)
		}
		if d.Verb.Scope() {
			scopes = append(scopes, ctx)
		}
	}
	return b.dropUnterminated(roots, parent)
}

// dropUnterminated removes blocks that never met their end marker,
// splicing their children into their place.
func (b *contextBuilder) dropUnterminated(list []*RenderContext, parent *RenderContext) []*RenderContext {
	out := make([]*RenderContext, 0, len(list))
	for _, c := range list {
		c.Children = b.dropUnterminated(c.Children, c)
		if c.Directive.Verb.IsBlock() && c.End == nil {
			b.logger.Warn("Dropping unterminated %s", c.Directive)
			for _, child := range c.Children {
				child.Parent = parent
			}
			out = append(out, c.Children...)
			continue
		}
		out = append(out, c)
	}
	return out
}
