package reader

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// lexer reads PDF objects from a byte slice. It is used both for file
// structure and for content streams, where bare words come back as keywords.
type lexer struct {
	src []byte
	pos int
}

func newLexer(src []byte) *lexer { return &lexer{src: src} }

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isSpace(c) && !isDelim(c) }

func (l *lexer) at(i int) byte {
	if l.pos+i < len(l.src) {
		return l.src[l.pos+i]
	}
	return 0
}

// skipSpace skips white space and comments.
func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '%' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		l.pos++
	}
}

// word reads a run of regular characters.
func (l *lexer) word() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.src) && isRegular(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *lexer) hasPrefix(s string) bool {
	return bytes.HasPrefix(l.src[l.pos:], []byte(s))
}

// value reads the next object, combining "N G R" into a Reference.
func (l *lexer) value() (Object, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return nil, io.ErrUnexpectedEOF
	}
	c := l.src[l.pos]
	switch {
	case c == '/':
		return l.name(), nil
	case c == '(':
		return l.literal()
	case c == '<' && l.at(1) == '<':
		return l.dict()
	case c == '<':
		return l.hex()
	case c == '[':
		return l.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.number()
	case isDelim(c):
		return nil, fmt.Errorf("reader: unexpected %q at offset %d", c, l.pos)
	}
	switch w := l.word(); w {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	default:
		return keyword(w), nil
	}
}

func (l *lexer) name() Name {
	l.pos++ // '/'
	var b []byte
	for l.pos < len(l.src) && isRegular(l.src[l.pos]) {
		c := l.src[l.pos]
		if c == '#' && l.pos+2 < len(l.src) {
			if v, err := strconv.ParseUint(string(l.src[l.pos+1:l.pos+3]), 16, 8); err == nil {
				b = append(b, byte(v))
				l.pos += 3
				continue
			}
		}
		b = append(b, c)
		l.pos++
	}
	return Name(b)
}

func (l *lexer) number() (Object, error) {
	start := l.pos
	w := l.word()
	if strings.ContainsAny(w, ".eE") {
		f, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, fmt.Errorf("reader: bad number %q at offset %d", w, start)
		}
		return Real(f), nil
	}
	n, err := strconv.ParseInt(w, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(w, 64)
		if ferr != nil {
			return nil, fmt.Errorf("reader: bad number %q at offset %d", w, start)
		}
		return Real(f), nil
	}
	if ref, ok := l.reference(n); ok {
		return ref, nil
	}
	return Integer(n), nil
}

// reference looks ahead for "G R" after an integer and consumes it on match.
func (l *lexer) reference(num int64) (Reference, bool) {
	save := l.pos
	l.skipSpace()
	if c := l.at(0); c < '0' || c > '9' {
		l.pos = save
		return Reference{}, false
	}
	gen, err := strconv.Atoi(l.word())
	if err != nil {
		l.pos = save
		return Reference{}, false
	}
	l.skipSpace()
	if l.at(0) == 'R' && !isRegular(l.at(1)) {
		l.pos++
		return Reference{Number: int(num), Generation: gen}, true
	}
	l.pos = save
	return Reference{}, false
}

func (l *lexer) literal() (String, error) {
	l.pos++ // '('
	var out []byte
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return String(out), nil
			}
		case '\\':
			if l.pos >= len(l.src) {
				return nil, fmt.Errorf("reader: unterminated string escape")
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r':
				if l.at(0) == '\n' {
					l.pos++
				}
				continue
			case '\n':
				continue
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.at(0) >= '0' && l.at(0) <= '7'; i++ {
						v = v*8 + int(l.at(0)-'0')
						l.pos++
					}
					c = byte(v)
				} else {
					c = e
				}
			}
		}
		out = append(out, c)
	}
	return nil, fmt.Errorf("reader: unterminated literal string")
}

func (l *lexer) hex() (String, error) {
	l.pos++ // '<'
	var out []byte
	hi := -1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c == '>' {
			if hi >= 0 {
				out = append(out, byte(hi<<4))
			}
			return String(out), nil
		}
		if isSpace(c) {
			continue
		}
		v := unhex(c)
		if v < 0 {
			return nil, fmt.Errorf("reader: bad hex digit %q", c)
		}
		if hi < 0 {
			hi = v
		} else {
			out = append(out, byte(hi<<4|v))
			hi = -1
		}
	}
	return nil, fmt.Errorf("reader: unterminated hex string")
}

func unhex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

func (l *lexer) array() (Array, error) {
	l.pos++ // '['
	arr := Array{}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, fmt.Errorf("reader: unterminated array")
		}
		if l.src[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		v, err := l.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

func (l *lexer) dict() (Dict, error) {
	l.pos += 2 // '<<'
	d := Dict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return nil, fmt.Errorf("reader: unterminated dictionary")
		}
		if l.src[l.pos] == '>' && l.at(1) == '>' {
			l.pos += 2
			return d, nil
		}
		if l.src[l.pos] != '/' {
			return nil, fmt.Errorf("reader: dictionary key at offset %d is not a name", l.pos)
		}
		key := l.name()
		v, err := l.value()
		if err != nil {
			return nil, fmt.Errorf("reader: value of /%s: %w", key, err)
		}
		d[key] = v
	}
}

// indirect reads "N G obj <value> [stream ... endstream] endobj". length
// resolves an indirect /Length; when it cannot, the stream runs to the
// next endstream keyword.
func (l *lexer) indirect(length func(Object) (int64, bool)) (Reference, Object, error) {
	num, err := strconv.Atoi(l.word())
	if err != nil {
		return Reference{}, nil, fmt.Errorf("reader: expected object number at offset %d", l.pos)
	}
	gen, err := strconv.Atoi(l.word())
	if err != nil {
		return Reference{}, nil, fmt.Errorf("reader: expected generation at offset %d", l.pos)
	}
	if w := l.word(); w != "obj" {
		return Reference{}, nil, fmt.Errorf("reader: expected obj, got %q", w)
	}
	ref := Reference{Number: num, Generation: gen}
	v, err := l.value()
	if err != nil {
		return ref, nil, fmt.Errorf("reader: object %d: %w", num, err)
	}
	l.skipSpace()
	if !l.hasPrefix("stream") {
		return ref, v, nil
	}
	dict, ok := v.(Dict)
	if !ok {
		return ref, nil, fmt.Errorf("reader: object %d: stream without dictionary", num)
	}
	l.pos += len("stream")
	if l.at(0) == '\r' {
		l.pos++
	}
	if l.at(0) == '\n' {
		l.pos++
	}
	start := l.pos
	end := -1
	if n, ok := length(dict["Length"]); ok && n >= 0 && start+int(n) <= len(l.src) {
		probe := &lexer{src: l.src, pos: start + int(n)}
		probe.skipSpace()
		if probe.hasPrefix("endstream") {
			end = start + int(n)
		}
	}
	if end < 0 {
		i := bytes.Index(l.src[start:], []byte("endstream"))
		if i < 0 {
			return ref, nil, fmt.Errorf("reader: object %d: missing endstream", num)
		}
		end = start + i
		for end > start && (l.src[end-1] == '\n' || l.src[end-1] == '\r') {
			end--
		}
	}
	l.pos = end
	l.skipSpace()
	l.pos += len("endstream")
	return ref, Stream{Dict: dict, Raw: l.src[start:end]}, nil
}
