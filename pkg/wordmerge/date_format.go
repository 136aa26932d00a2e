package wordmerge

import (
	"strings"
	"time"
)

// dateTokens maps pattern letters, longest first, to Go layout elements.
var dateTokens = []struct {
	pattern string
	layout  string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"dd", "02"},
	{"d", "2"},
	{"EEEE", "Monday"},
	{"EEE", "Mon"},
	{"E", "Mon"},
	{"HH", "15"},
	{"H", "15"},
	{"hh", "03"},
	{"h", "3"},
	{"mm", "04"},
	{"m", "4"},
	{"ss", "05"},
	{"s", "5"},
	{"SSS", "000"},
	{"fff", "000"},
	{"tt", "PM"},
	{"a", "PM"},
	{"XXX", "Z07:00"},
	{"XX", "Z0700"},
	{"X", "Z07"},
	{"zzz", "MST"},
	{"Z", "-0700"},
}

// translateDateFormat converts a date pattern such as "dd.MM.yyyy HH:mm" to
// a Go layout. Text in single quotes is copied literally.
func translateDateFormat(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, tok := range dateTokens {
			if strings.HasPrefix(pattern[i:], tok.pattern) {
				b.WriteString(tok.layout)
				i += len(tok.pattern)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// formatDate formats t with a date pattern, or with a Go layout when the
// pattern already is one.
func formatDate(t time.Time, pattern string) string {
	if strings.Contains(pattern, "2006") || strings.Contains(pattern, "Jan") {
		return t.Format(pattern)
	}
	return t.Format(translateDateFormat(pattern))
}
