package wordmerge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
)

const (
	defaultCurrency       = "USD"
	defaultCurrencyLocale = "en-US"
	defaultPercentDigits  = 2
)

type formatSegment struct {
	literal bool
	text    string
	spec    formatSpec
}

type formatSpec struct {
	flags     string
	width     string
	precision string
	verb      rune
}

var (
	formatSpecRegex = regexp.MustCompile(`%([-#+ 0,]*)?(\d+)?(\.\d+)?([a-zA-Z%])`)
	digitPattern    = regexp.MustCompile(`^[#0,]*0?(\.[0#]+)?$`)
	standardPattern = regexp.MustCompile(`^([NnFf])(\d{0,2})$`)
)

// parseFormatPattern splits a printf pattern into literal text and verbs.
func parseFormatPattern(pattern string) []formatSegment {
	var segments []formatSegment
	lastEnd := 0
	for _, m := range formatSpecRegex.FindAllStringSubmatchIndex(pattern, -1) {
		if m[0] > lastEnd {
			segments = append(segments, formatSegment{literal: true, text: pattern[lastEnd:m[0]]})
		}
		spec := formatSpec{}
		if m[2] >= 0 {
			spec.flags = pattern[m[2]:m[3]]
		}
		if m[4] >= 0 {
			spec.width = pattern[m[4]:m[5]]
		}
		if m[6] >= 0 {
			spec.precision = pattern[m[6]:m[7]]
		}
		spec.verb = rune(pattern[m[8]])
		segments = append(segments, formatSegment{spec: spec})
		lastEnd = m[1]
	}
	if lastEnd < len(pattern) {
		segments = append(segments, formatSegment{literal: true, text: pattern[lastEnd:]})
	}
	return segments
}

// formatPrintf formats value with every verb of pattern. A ',' flag groups
// digits.
func formatPrintf(pattern string, value any) (string, error) {
	var b strings.Builder
	for _, seg := range parseFormatPattern(pattern) {
		if seg.literal {
			b.WriteString(seg.text)
			continue
		}
		if seg.spec.verb == '%' {
			b.WriteByte('%')
			continue
		}
		converted, err := convertFormatValue(value, seg.spec.verb)
		if err != nil {
			return "", err
		}
		flags := strings.ReplaceAll(seg.spec.flags, ",", "")
		verb := "%" + flags + seg.spec.width + seg.spec.precision + string(seg.spec.verb)
		if strings.Contains(seg.spec.flags, ",") {
			b.WriteString(message.NewPrinter(language.English).Sprintf(verb, converted))
		} else {
			b.WriteString(fmt.Sprintf(verb, converted))
		}
	}
	return b.String(), nil
}

// convertFormatValue converts a value to the type the verb expects
func convertFormatValue(value any, verb rune) (any, error) {
	switch verb {
	case 'd', 'b', 'o', 'x', 'X', 'c', 'U':
		d, err := toDecimal(value)
		if err != nil {
			return nil, err
		}
		return d.IntPart(), nil
	case 'e', 'E', 'f', 'F', 'g', 'G':
		d, err := toDecimal(value)
		if err != nil {
			return nil, err
		}
		return d.InexactFloat64(), nil
	default:
		return data.String(value), nil
	}
}

// formatNumber formats a number with a printf pattern ("%.2f"), a digit
// pattern ("#,##0.00") or a standard pattern ("N2", "F0").
func formatNumber(value any, format string) (string, error) {
	if strings.Contains(format, "%") {
		return formatPrintf(format, value)
	}
	d, err := toDecimal(value)
	if err != nil {
		return "", err
	}
	if m := standardPattern.FindStringSubmatch(format); m != nil {
		digits := 2
		if m[2] != "" {
			digits, _ = strconv.Atoi(m[2])
		}
		return groupNumber(d, digits, strings.EqualFold(m[1], "n"), language.English), nil
	}
	if digitPattern.MatchString(format) {
		digits := 0
		if i := strings.IndexByte(format, '.'); i >= 0 {
			digits = len(format) - i - 1
		}
		return groupNumber(d, digits, strings.Contains(format, ","), language.English), nil
	}
	return "", fmt.Errorf("unsupported number format %q", format)
}

// groupNumber rounds d to digits fraction digits, optionally grouping the
// integer part the way tag does.
func groupNumber(d decimal.Decimal, digits int, grouping bool, tag language.Tag) string {
	d = d.Round(int32(digits))
	if !grouping {
		return d.StringFixed(int32(digits))
	}
	p := message.NewPrinter(tag)
	return p.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(digits)))
}

// formatCurrency implements currency([code[, locale]]).
func formatCurrency(value any, params []any) (string, error) {
	d, err := toDecimal(value)
	if err != nil {
		return "", err
	}
	code, locale := defaultCurrency, defaultCurrencyLocale
	if len(params) > 0 && params[0] != nil {
		code = strings.ToUpper(data.String(params[0]))
	}
	if len(params) > 1 && params[1] != nil {
		locale = data.String(params[1])
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	symbol := message.NewPrinter(tag).Sprint(currency.Symbol(unit))
	amount := groupNumber(d.Abs(), scale, true, tag)

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	if symbolAfter(tag) {
		return sign + amount + " " + symbol, nil
	}
	return sign + symbol + amount, nil
}

// symbolAfter reports whether the language writes the currency symbol after
// the amount.
func symbolAfter(tag language.Tag) bool {
	base, _ := tag.Base()
	switch base.String() {
	case "de", "fr", "es", "it", "pt", "nl", "pl", "cs", "sk", "hu", "sv", "da", "fi", "nb", "ru", "uk", "vi":
		return true
	}
	return false
}

// formatPercentage implements percentage([decimals[, locale]]).
func formatPercentage(value any, params []any) (string, error) {
	d, err := toDecimal(value)
	if err != nil {
		return "", err
	}
	digits := defaultPercentDigits
	if len(params) > 0 && params[0] != nil {
		if digits, err = toInt(params[0]); err != nil {
			return "", err
		}
		if digits < 0 {
			digits = 0
		}
	}
	tag := language.English
	if len(params) > 1 && params[1] != nil {
		if tag, err = language.Parse(data.String(params[1])); err != nil {
			return "", fmt.Errorf("invalid locale: %w", err)
		}
	}
	return groupNumber(d.Mul(decimal.NewFromInt(100)), digits, true, tag) + "%", nil
}
