// Package timestamp parses and formats the lexical forms of XML Schema date
// and time literals. Values without a timezone are read as UTC.
package timestamp

import (
	"fmt"
	"strings"
	"time"
)

// Kind selects a date or time lexical space.
type Kind int

// Kinds.
const (
	DateTime Kind = iota
	Date
	Time
)

func (k Kind) String() string {
	switch k {
	case DateTime:
		return "dateTime"
	case Date:
		return "date"
	case Time:
		return "time"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Fractional seconds are optional in every layout.
var layouts = map[Kind][]string{
	DateTime: {
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999",
	},
	Date: {
		"2006-01-02",
		"2006-01-02Z07:00",
	},
	Time: {
		"15:04:05.999999999Z07:00",
		"15:04:05.999999999",
	},
}

// Parse reads lexical as a value of kind. Surrounding whitespace is ignored.
func Parse(kind Kind, lexical string) (time.Time, error) {
	candidates, ok := layouts[kind]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown kind %v", kind)
	}
	s := strings.TrimSpace(lexical)
	for _, layout := range candidates {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a valid %v", lexical, kind)
}

// Valid reports whether lexical parses as kind.
func Valid(kind Kind, lexical string) bool {
	_, err := Parse(kind, lexical)
	return err == nil
}

// Format writes t in the canonical layout of kind: RFC 3339 for date-times,
// and the date or clock part alone otherwise.
func Format(kind Kind, t time.Time) string {
	switch kind {
	case Date:
		return t.Format(time.DateOnly)
	case Time:
		return t.Format(time.TimeOnly)
	default:
		return t.Format(time.RFC3339Nano)
	}
}
