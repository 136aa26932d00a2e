package wordmerge

import (
	"strings"
)

// Verb identifies a block directive or one of its end markers.
type Verb uint8

const (
	VerbNone Verb = iota
	VerbIf
	VerbLoop
	VerbTable
	VerbEndIf
	VerbEndLoop
	VerbEndTable
)

func (v Verb) String() string {
	switch v {
	case VerbIf:
		return "if"
	case VerbLoop:
		return "loop"
	case VerbTable:
		return "table"
	case VerbEndIf:
		return "endif"
	case VerbEndLoop:
		return "endloop"
	case VerbEndTable:
		return "endtable"
	default:
		return ""
	}
}

// IsBlock reports whether v opens a block that needs an end marker.
func (v Verb) IsBlock() bool {
	return v == VerbIf || v == VerbLoop || v == VerbTable
}

// IsEnd reports whether v closes a block.
func (v Verb) IsEnd() bool {
	return v == VerbEndIf || v == VerbEndLoop || v == VerbEndTable
}

// Scope reports whether v opens a data scope (a loop or a table loop).
func (v Verb) Scope() bool {
	return v == VerbLoop || v == VerbTable
}

// Operators accepted by if, in the order they are searched for.
var operators = []string{">=", "<=", "!=", "<>", ">", "<", "==", "="}

var endVerbs = map[string]Verb{
	"endif":    VerbEndIf,
	"endloop":  VerbEndLoop,
	"endtable": VerbEndTable,
}

// Directive is one parsed field instruction.
type Directive struct {
	// Field is the data field the directive reads.
	Field string
	// Function is the lower-cased evaluator name; empty selects the default.
	Function string
	// Params is the raw parameter text between the parentheses. For if it
	// is the comparison operand.
	Params string
	// Operator is the comparison operator of an if.
	Operator string
	Verb     Verb
}

func (d Directive) String() string {
	switch {
	case d.Verb.IsEnd():
		return d.Verb.String()
	case d.Verb == VerbIf:
		return "if(" + d.Field + d.Operator + d.Params + ")"
	case d.Verb.Scope():
		return d.Verb.String() + "(" + d.Field + ")"
	case d.Function != "":
		return d.Field + ":" + d.Function + "(" + d.Params + ")"
	case d.Params != "":
		return d.Field + "(" + d.Params + ")"
	}
	return d.Field
}

const (
	mergeFieldKeyword = "MERGEFIELD"
	mergeFormatSwitch = "MERGEFORMAT"
)

// FieldDirective extracts the directive text from a field instruction of the
// form `MERGEFIELD <directive> \* MERGEFORMAT`. Fields of any other form are
// not owned by the engine and report false.
func FieldDirective(instr string) (string, bool) {
	s := strings.TrimSpace(instr)
	if len(s) < len(mergeFieldKeyword) || !strings.EqualFold(s[:len(mergeFieldKeyword)], mergeFieldKeyword) {
		return "", false
	}
	s = s[len(mergeFieldKeyword):]
	if s == "" || (s[0] != ' ' && s[0] != '\t') {
		return "", false
	}
	i := strings.LastIndex(s, `\*`)
	if i < 0 || !strings.EqualFold(strings.TrimSpace(s[i+2:]), mergeFormatSwitch) {
		return "", false
	}
	s = strings.TrimSpace(s[:i])
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = unescapeQuoted(s[1 : len(s)-1])
	}
	if s == "" {
		return "", false
	}
	return s, true
}

func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ParseDirective parses `field[:function][(params)]`, the verbs if, loop and
// table, and the end markers. An if whose condition cannot be parsed still
// returns Verb set to VerbIf together with the error, so callers can keep
// block pairing intact.
func ParseDirective(text string) (Directive, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Directive{}, NewParseError(text, "empty directive")
	}

	name := strings.ToLower(text)
	name = strings.TrimSpace(strings.TrimSuffix(name, "()"))
	if v, ok := endVerbs[name]; ok {
		return Directive{Verb: v}, nil
	}

	open := strings.IndexByte(text, '(')
	if open < 0 {
		if strings.ContainsAny(text, ")") {
			return Directive{}, NewParseError(text, "unbalanced parenthesis")
		}
		return splitFunction(text, "", text)
	}
	if !strings.HasSuffix(text, ")") {
		return Directive{}, NewParseError(text, "missing closing parenthesis")
	}
	head := strings.TrimSpace(text[:open])
	params := strings.TrimSpace(text[open+1 : len(text)-1])

	if !strings.Contains(head, ":") {
		switch strings.ToLower(head) {
		case "if":
			return parseCondition(text, params)
		case "loop", "table":
			v := VerbLoop
			if strings.EqualFold(head, "table") {
				v = VerbTable
			}
			field := unquote(params)
			if field == "" {
				return Directive{Verb: v}, NewParseError(text, "missing field name")
			}
			return Directive{Field: field, Verb: v}, nil
		}
	}
	return splitFunction(text, params, head)
}

// splitFunction handles `field[:function]` with the given parameter text.
func splitFunction(text, params, head string) (Directive, error) {
	field, fn := head, ""
	if i := strings.IndexByte(head, ':'); i >= 0 {
		field = strings.TrimSpace(head[:i])
		fn = strings.ToLower(strings.TrimSpace(head[i+1:]))
	}
	if field == "" {
		return Directive{}, NewParseError(text, "missing field name")
	}
	switch fn {
	case "loop":
		return Directive{Field: field, Verb: VerbLoop}, nil
	case "table":
		return Directive{Field: field, Verb: VerbTable}, nil
	}
	return Directive{Field: field, Function: fn, Params: params}, nil
}

// parseCondition splits `field<op>operand` at the first operator found,
// trying operators in precedence order. Quoted text never matches.
func parseCondition(text, params string) (Directive, error) {
	bare := maskQuoted(params)
	for _, op := range operators {
		i := strings.Index(bare, op)
		if i < 0 {
			continue
		}
		field := strings.TrimSpace(params[:i])
		if field == "" {
			return Directive{Verb: VerbIf}, NewParseError(text, "missing field name")
		}
		return Directive{
			Field:    field,
			Operator: op,
			Params:   strings.TrimSpace(params[i+len(op):]),
			Verb:     VerbIf,
		}, nil
	}
	return Directive{Verb: VerbIf}, NewParseError(text, "no comparison operator")
}

// maskQuoted blanks quoted sections of s, keeping byte offsets.
func maskQuoted(s string) string {
	b := []byte(s)
	var quote byte
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case quote != 0 && c == '\\' && i+1 < len(b):
			b[i], b[i+1] = ' ', ' '
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b[i] = ' '
		case c == '"' || c == '\'':
			quote = c
			b[i] = ' '
		}
	}
	return string(b)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
