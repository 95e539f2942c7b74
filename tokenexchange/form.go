package tokenexchange

import (
	"net/url"
	"strings"
)

// form is an ordered application/x-www-form-urlencoded body. url.Values sorts keys on
// Encode; the exchange request keeps the order fields were added in.
type form []formField

type formField struct {
	name  string
	value string
}

func (f form) add(name, value string) form {
	return append(f, formField{name: name, value: value})
}

// Encode produces "name=value&..." with url.QueryEscape, the same escaping as url.Values
func (f form) Encode() string {
	var sb strings.Builder
	for i, field := range f {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(field.name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(field.value))
	}
	return sb.String()
}
