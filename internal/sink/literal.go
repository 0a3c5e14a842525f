package sink

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Cell values for list-valued columns are written as a bracketed list of
// mappings, e.g. [{'item': 'Burger', 'qty': '2'}, {'item': None}].
// Keys are sorted so the same record always renders the same cell.

func stringMapsLiteral(items []map[string]*string) string {
	if items == nil {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, m := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeMapping(&b, sortedKeys(m), func(k string) string {
			if v := m[k]; v != nil {
				return quote(*v)
			}
			return "None"
		})
	}
	b.WriteByte(']')
	return b.String()
}

func floatMapsLiteral(items []map[string]*float64) string {
	if items == nil {
		return ""
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, m := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		writeMapping(&b, sortedKeys(m), func(k string) string {
			if v := m[k]; v != nil {
				return floatLiteral(*v)
			}
			return "None"
		})
	}
	b.WriteByte(']')
	return b.String()
}

func writeMapping(b *strings.Builder, keys []string, value func(string) string) {
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(k))
		b.WriteString(": ")
		b.WriteString(value(k))
	}
	b.WriteByte('}')
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// quote uses single quotes unless the text contains a single quote and no double quote.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// floatLiteral always carries a decimal point inside list literals (50 -> 50.0).
func floatLiteral(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatFloat renders a scalar amount cell in its shortest round-trip form.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
