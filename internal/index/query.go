package index

import (
	"strings"
	"unicode"
)

// special lists the characters that carry meaning in a query.
const special = `+-&|!(){}[]^"~*?:\`

func isSpecial(r rune) bool { return strings.ContainsRune(special, r) }

// EscapeQuery returns text with every query special character prefixed by
// a single backslash, so the result matches text literally.
func EscapeQuery(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	AppendEscapedQuery(&b, text)
	return b.String()
}

// AppendEscapedQuery writes the escaped form of text to b. A nil builder is
// a no-op.
func AppendEscapedQuery(b *strings.Builder, text string) {
	if b == nil {
		return
	}
	for _, r := range text {
		if isSpecial(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
}

// term is one clause of a parsed query. An empty field means vendor or
// product.
type term struct {
	field string
	text  string
}

var fields = map[string]bool{
	FieldVendor:  true,
	FieldProduct: true,
	FieldVersion: true,
	FieldCPE:     true,
}

// parseQuery splits a query into terms. Terms are separated by whitespace
// and by unescaped special characters other than ':'; a leading "field:"
// restricts a term to one field. Escaped characters are taken literally.
func parseQuery(q string) []term {
	var (
		out   []term
		cur   strings.Builder
		field string
		esc   bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, term{field: field, text: strings.ToLower(cur.String())})
		}
		cur.Reset()
		field = ""
	}
	for _, r := range q {
		switch {
		case esc:
			cur.WriteRune(r)
			esc = false
		case r == '\\':
			esc = true
		case r == ':':
			name := strings.ToLower(cur.String())
			if field == "" && fields[name] {
				field = name
				cur.Reset()
				continue
			}
			flush()
		case unicode.IsSpace(r) || isSpecial(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

// tokens returns the posting keys for a document value: the whole value
// and its parts split on '-' and '_'.
func tokens(value string) []string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return nil
	}
	out := []string{v}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '-' || r == '_' || unicode.IsSpace(r) })
	if len(parts) > 1 {
		out = append(out, parts...)
	}
	return out
}
