package protocol

import "strings"

// Free-text fields (names, descriptions) may contain protocol separator
// characters. They are percent-escaped before joining and unescaped after
// splitting, so the wire format stays unambiguous without length prefixes.
//
// Both replacers run in a single left-to-right pass, which makes
// UnescapeField an exact inverse of EscapeField.
var (
	fieldEscaper = strings.NewReplacer(
		"%", "%25",
		"|", "%7C",
		";", "%3B",
		",", "%2C",
		"\r", "%0D",
		"\n", "%0A",
	)
	fieldUnescaper = strings.NewReplacer(
		"%7C", "|",
		"%3B", ";",
		"%2C", ",",
		"%0D", "\r",
		"%0A", "\n",
		"%25", "%",
	)
)

// EscapeField makes an arbitrary string safe to embed as one protocol field.
func EscapeField(s string) string {
	return fieldEscaper.Replace(s)
}

// UnescapeField reverses EscapeField.
func UnescapeField(s string) string {
	return fieldUnescaper.Replace(s)
}
