package doctpl

import (
	"encoding/json"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Alice", "Alice"},
		{"control character", "A\u0002B\u0002", "AB"},
		{"unix newline", "a\nb", "a \nb"},
		{"windows newline", "a\r\nb", "a \nb"},
		{"already normalized", "a \nb", "a \nb"},
		{"latin-1 kept", "Café Müller ñ", "Café Müller ñ"},
		{"decomposed accent composes", "Cafe\u0301", "Caf\u00e9"},
		{"ligature decomposes", "ﬁle", "file"},
		{"fullwidth digits", "１２", "12"},
		{"dropped", "snow ☃ man", "snow  man"},
		{"cjk dropped", "名前: Bob", ": Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"", "\n", "\r\n\r\n", " \n \n", "  \n", "a\rb", "\u0002\n\u0002",
		"Ünïcödé ☃ and ﬃ\r\nnext", "x́̂", "\xff\xfe broken utf-8",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
		for _, r := range once {
			if r > 0xFF {
				t.Errorf("Sanitize(%q) left %U", in, r)
			}
		}
	}
}

func TestSanitizeValue(t *testing.T) {
	if got := SanitizeValue("a\nb"); got != "a \nb" {
		t.Errorf("string: got %q", got)
	}
	n := json.Number("42")
	if got := SanitizeValue(n); got != n {
		t.Errorf("number: got %v", got)
	}
	if got := SanitizeValue(nil); got != nil {
		t.Errorf("nil: got %v", got)
	}
}
