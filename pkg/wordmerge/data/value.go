package data

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IsScalar reports whether v is neither an object nor an array.
func IsScalar(v any) bool {
	switch v.(type) {
	case *Object, Array:
		return false
	}
	return true
}

// String returns the default display form of a value. Arrays are joined
// with ", "; objects have no display form.
func String(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case Array:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = String(e)
		}
		return strings.Join(parts, ", ")
	case *Object:
		return ""
	}
	return ""
}

// Ordering is the result of comparing two values.
type Ordering int

const (
	Less Ordering = 1 << iota
	Equal
	Greater
)

// Unordered is returned for values of different types; it is unequal under
// every operator.
const Unordered = Less | Greater

// Compare orders a against b. Values must have the same type to be
// compared; nil equals nil and the string "null".
func Compare(a, b any) Ordering {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return Equal
		}
		other := a
		if a == nil {
			other = b
		}
		if s, ok := other.(string); ok && strings.EqualFold(s, "null") {
			return Equal
		}
		return Unordered
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return order(x < y, x == y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return order(x < y, x == y)
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			c := x.Cmp(y)
			return order(c < 0, c == 0)
		}
	case string:
		if y, ok := b.(string); ok {
			return order(x < y, x == y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return order(!x && y, x == y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return order(x.Before(y), x.Equal(y))
		}
	}
	return Unordered
}

func order(less, equal bool) Ordering {
	switch {
	case equal:
		return Equal
	case less:
		return Less
	default:
		return Greater
	}
}
