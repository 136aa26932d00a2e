package wordmerge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
)

// formatDefault writes the value as is, or through the format given as the
// first parameter: a date pattern for times, a printf or digit pattern for
// numbers.
func formatDefault(value any, params []any) (string, error) {
	if len(params) == 0 || params[0] == nil {
		return data.String(value), nil
	}
	format := data.String(params[0])
	if format == "" {
		return data.String(value), nil
	}
	switch v := value.(type) {
	case time.Time:
		return formatDate(v, format), nil
	case int64, float64, decimal.Decimal:
		return formatNumber(v, format)
	case string:
		if strings.Contains(format, "%") {
			return formatPrintf(format, v)
		}
	}
	return data.String(value), nil
}

// formatSub implements sub(start[, length[, suffix]]). The suffix is added
// only when the text was cut.
func formatSub(value any, params []any) (string, error) {
	s := []rune(data.String(value))
	if len(params) == 0 {
		return string(s), nil
	}
	start, err := toInt(params[0])
	if err != nil {
		return "", fmt.Errorf("sub start: %w", err)
	}
	if start < 0 {
		start = 0
	}
	if start >= len(s) {
		return "", nil
	}
	if len(params) < 2 || params[1] == nil {
		return string(s[start:]), nil
	}
	length, err := toInt(params[1])
	if err != nil {
		return "", fmt.Errorf("sub length: %w", err)
	}
	if length <= 0 {
		return "", nil
	}
	if start+length >= len(s) {
		return string(s[start:]), nil
	}
	out := string(s[start : start+length])
	if len(params) >= 3 && params[2] != nil {
		out += data.String(params[2])
	}
	return out, nil
}

// formatRight implements right(n).
func formatRight(value any, params []any) (string, error) {
	s := []rune(data.String(value))
	if len(params) == 0 || params[0] == nil {
		return string(s), nil
	}
	n, err := toInt(params[0])
	if err != nil {
		return "", fmt.Errorf("right length: %w", err)
	}
	if n <= 0 {
		return "", nil
	}
	if n >= len(s) {
		return string(s), nil
	}
	return string(s[len(s)-n:]), nil
}

// formatCase implements upper([locale]) and lower([locale]).
func formatCase(value any, params []any, upper bool) (string, error) {
	tag := language.Und
	if len(params) > 0 && params[0] != nil {
		t, err := language.Parse(data.String(params[0]))
		if err != nil {
			return "", fmt.Errorf("invalid locale: %w", err)
		}
		tag = t
	}
	s := data.String(value)
	if upper {
		return cases.Upper(tag).String(s), nil
	}
	return cases.Lower(tag).String(s), nil
}

// formatIf implements if(compare, whenEqual[, otherwise]). Without an
// otherwise branch an unequal value is written as is.
func formatIf(value any, params []any) (string, error) {
	if len(params) < 2 || params[0] == nil {
		return data.String(value), nil
	}
	if data.Compare(value, params[0]) == data.Equal {
		return data.String(params[1]), nil
	}
	if len(params) >= 3 {
		return data.String(params[2]), nil
	}
	return data.String(value), nil
}

// formatCondition implements condition(op, operand, whenTrue[, whenFalse]).
func formatCondition(value any, params []any) (string, error) {
	if len(params) < 3 {
		return "", fmt.Errorf("condition expects at least 3 parameters, got %d", len(params))
	}
	ok, err := Test(value, params[1], data.String(params[0]))
	if err != nil {
		return "", err
	}
	if ok {
		return data.String(params[2]), nil
	}
	if len(params) >= 4 {
		return data.String(params[3]), nil
	}
	return "", nil
}

// formatReplace implements replace(pattern, replacement) with a regular
// expression pattern; $1 style references are expanded.
func formatReplace(value any, params []any) (string, error) {
	s := data.String(value)
	if len(params) < 2 || params[0] == nil || params[1] == nil {
		return s, nil
	}
	re, err := regexp.Compile(data.String(params[0]))
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}
	return re.ReplaceAllString(s, data.String(params[1])), nil
}

func toInt(v any) (int, error) {
	switch v := v.(type) {
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case decimal.Decimal:
		return int(v.IntPart()), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", v)
		}
		return i, nil
	}
	return 0, fmt.Errorf("cannot convert %T to integer", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case decimal.Decimal:
		return v, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("cannot convert %q to number", v)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("cannot convert %T to number", v)
}
