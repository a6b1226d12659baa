// Package annotation encodes color-tagged free text for member annotations
// and the unit's war note.
//
// The stored form is "[token] text" where token is a palette name or a
// #rrggbb hex color. A string without a recognized leading token is plain
// text with no color. Uncolored text that happens to start with something
// token-shaped is written behind an empty "[]" token so it decodes unchanged.
package annotation

import (
	"regexp"
	"strings"
)

// Token is a normalized color token. The zero value means no color.
type Token string

// Palette lists the named tokens accepted besides hex colors
var Palette = []Token{"red", "orange", "yellow", "green", "teal", "blue", "purple", "pink", "gray"}

var hexToken = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// ParseToken normalizes s into a token. The empty string parses as no color.
func ParseToken(s string) (Token, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", true
	}
	if hexToken.MatchString(s) {
		return Token(s), true
	}
	for _, p := range Palette {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Value is decoded annotation text
type Value struct {
	Color Token  `json:"color,omitempty"`
	Text  string `json:"text"`
}

// Encode renders color and text into the stored form.
// Empty text always encodes to "" regardless of color.
func Encode(color Token, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if color == "" {
		if _, _, ok := splitToken(text); ok {
			return "[] " + text
		}
		return text
	}
	return "[" + string(color) + "] " + text
}

// Decode splits a stored string into color and text
func Decode(s string) Value {
	color, rest, ok := splitToken(s)
	if !ok {
		return Value{Text: s}
	}
	return Value{Color: color, Text: strings.TrimSpace(rest)}
}

func splitToken(s string) (Token, string, bool) {
	if !strings.HasPrefix(s, "[") {
		return "", "", false
	}
	end := strings.IndexByte(s, ']')
	if end < 0 {
		return "", "", false
	}
	tok, ok := ParseToken(s[1:end])
	if !ok {
		return "", "", false
	}
	if s[1:end] != string(tok) {
		// only the canonical spelling counts as a token
		return "", "", false
	}
	return tok, s[end+1:], true
}

// EncodeNote renders one line per value. Blank lines, trailing ones included,
// survive DecodeNote; a note of a single blank line encodes to "" and decodes
// to no lines.
func EncodeNote(lines []Value) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = Encode(l.Color, strings.ReplaceAll(l.Text, "\n", " "))
	}
	return strings.Join(out, "\n")
}

// DecodeNote splits a stored note into lines, each with its own color
func DecodeNote(s string) []Value {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "\n")
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = Decode(p)
	}
	return out
}
