package wordmerge

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Layouts tried, in order, when a parameter looks like a date.
var parameterDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// SplitParameters splits parameter text at top-level commas. Commas inside
// single or double quotes do not split; a backslash escapes a quote or a
// backslash inside quotes. Tokens keep their quotes and are trimmed.
func SplitParameters(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var (
		out   []string
		cur   strings.Builder
		quote rune
		esc   bool
	)
	for _, r := range s {
		switch {
		case esc:
			if r != quote && r != '\\' {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			esc = false
		case quote != 0 && r == '\\':
			esc = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ',':
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if esc {
		cur.WriteRune('\\')
	}
	return append(out, strings.TrimSpace(cur.String()))
}

// ParseParameters splits and converts parameter text.
func ParseParameters(s string) []any {
	tokens := SplitParameters(s)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]any, len(tokens))
	for i, tok := range tokens {
		out[i] = ConvertParameter(tok)
	}
	return out
}

// ConvertParameter converts one token by trying, in order: int64, float64,
// decimal, a date, a boolean and null. Anything else is a string with one
// layer of matching quotes removed. Quoted numbers therefore stay strings.
func ConvertParameter(tok string) any {
	if tok == "" {
		return ""
	}
	if i, ok := parseInt(tok); ok {
		return i
	}
	if f, ok := parseFloat(tok); ok {
		return f
	}
	if d, ok := parseDecimal(tok); ok {
		return d
	}
	if t, ok := parseTime(tok); ok {
		return t
	}
	if b, ok := parseBoolean(tok); ok {
		return b
	}
	if strings.EqualFold(tok, "null") {
		return nil
	}
	if len(tok) >= 2 && (tok[0] == '"' || tok[0] == '\'') && tok[len(tok)-1] == tok[0] {
		return tok[1 : len(tok)-1]
	}
	return tok
}

func parseInt(s string) (int64, bool) {
	i, err := strconv.ParseInt(s, 10, 64)
	return i, err == nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	return d, err == nil
}

func parseTime(s string) (time.Time, bool) {
	if len(s) < 8 {
		return time.Time{}, false
	}
	for _, layout := range parameterDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseBoolean(s string) (bool, bool) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return false, false
}
