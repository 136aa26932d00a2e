package wordmerge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
)

// Kind tells which built-in an Evaluator is, or KindCustom for functions
// registered by callers.
type Kind uint8

const (
	KindDefault Kind = iota
	KindSub
	KindLeft
	KindRight
	KindTrim
	KindUpper
	KindLower
	KindIf
	KindCondition
	KindCurrency
	KindPercentage
	KindReplace
	KindLoop
	KindTable
	KindImage
	KindBarcode
	KindQRCode
	KindHTML
	KindMarkdown
	KindWord
	KindCustom
)

var kindNames = map[Kind]string{
	KindDefault:    "",
	KindSub:        "sub",
	KindLeft:       "left",
	KindRight:      "right",
	KindTrim:       "trim",
	KindUpper:      "upper",
	KindLower:      "lower",
	KindIf:         "if",
	KindCondition:  "condition",
	KindCurrency:   "currency",
	KindPercentage: "percentage",
	KindReplace:    "replace",
	KindLoop:       "loop",
	KindTable:      "table",
	KindImage:      "image",
	KindBarcode:    "barcode",
	KindQRCode:     "qrcode",
	KindHTML:       "html",
	KindMarkdown:   "markdown",
	KindWord:       "word",
}

func (k Kind) String() string {
	if k == KindCustom {
		return "custom"
	}
	if k == KindDefault {
		return "default"
	}
	return kindNames[k]
}

// IsMedia reports whether evaluators of this kind insert content other than
// text: pictures, imported HTML or another document.
func (k Kind) IsMedia() bool {
	switch k {
	case KindImage, KindBarcode, KindQRCode, KindHTML, KindMarkdown, KindWord:
		return true
	}
	return false
}

// IsBlock reports whether the kind drives a repeated block.
func (k Kind) IsBlock() bool {
	return k == KindLoop || k == KindTable
}

// Func formats a field value with the directive's converted parameters.
// Functions must not keep references to their arguments.
type Func func(value any, params []any) (string, error)

// Evaluator is a registered directive function. Built-ins are identified by
// Kind; custom evaluators wrap a Func.
type Evaluator struct {
	Kind Kind
	fn   Func
}

// Custom wraps fn as an evaluator.
func Custom(fn Func) Evaluator {
	return Evaluator{Kind: KindCustom, fn: fn}
}

// Builtin returns the built-in evaluator of kind k.
func Builtin(k Kind) Evaluator {
	return Evaluator{Kind: k}
}

// Format produces the display text of value. Media and block evaluators
// have no text form and return an error.
func (e Evaluator) Format(value any, params []any) (string, error) {
	switch e.Kind {
	case KindDefault:
		return formatDefault(value, params)
	case KindSub:
		return formatSub(value, params)
	case KindLeft:
		return formatSub(value, append([]any{int64(0)}, params...))
	case KindRight:
		return formatRight(value, params)
	case KindTrim:
		return strings.TrimSpace(data.String(value)), nil
	case KindUpper:
		return formatCase(value, params, true)
	case KindLower:
		return formatCase(value, params, false)
	case KindIf:
		return formatIf(value, params)
	case KindCondition:
		return formatCondition(value, params)
	case KindCurrency:
		return formatCurrency(value, params)
	case KindPercentage:
		return formatPercentage(value, params)
	case KindReplace:
		return formatReplace(value, params)
	case KindCustom:
		if e.fn == nil {
			return "", fmt.Errorf("custom evaluator has no function")
		}
		return e.fn(value, params)
	}
	return "", fmt.Errorf("%s evaluator has no text form", e.Kind)
}

// Test compares left with right under op. Values of different types are
// unequal under every operator.
func Test(left, right any, op string) (bool, error) {
	c := data.Compare(left, right)
	switch op {
	case ">":
		return c == data.Greater, nil
	case "<":
		return c == data.Less, nil
	case "==", "=":
		return c == data.Equal, nil
	case "!=", "<>":
		return c != data.Equal, nil
	case ">=":
		return c == data.Greater || c == data.Equal, nil
	case "<=":
		return c == data.Less || c == data.Equal, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// Registry maps lower-cased names to evaluators. The empty name is the
// default evaluator and is always present. A Registry is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewRegistry returns a registry holding every built-in evaluator.
func NewRegistry() *Registry {
	r := &Registry{evaluators: make(map[string]Evaluator, len(kindNames))}
	for k, name := range kindNames {
		r.evaluators[name] = Builtin(k)
	}
	return r
}

// Register adds or replaces the evaluator under name. Names are
// case-insensitive. Registering an empty name replaces the default.
func (r *Registry) Register(name string, e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[strings.ToLower(strings.TrimSpace(name))] = e
}

// RegisterFunc registers fn as a custom evaluator.
func (r *Registry) RegisterFunc(name string, fn Func) {
	r.Register(name, Custom(fn))
}

// Lookup finds the evaluator registered under name.
func (r *Registry) Lookup(name string) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[strings.ToLower(strings.TrimSpace(name))]
	if !ok && name == "" {
		return Builtin(KindDefault), true
	}
	return e, ok
}

// Names returns the registered names in sorted order. The default
// evaluator is listed as "".
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.evaluators))
	for name := range r.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := &Registry{evaluators: make(map[string]Evaluator, len(r.evaluators))}
	for k, v := range r.evaluators {
		cp.evaluators[k] = v
	}
	return cp
}
