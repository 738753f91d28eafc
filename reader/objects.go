// Package reader parses existing PDF files far enough to reuse them as
// templates: cross-reference tables and streams, compressed object streams,
// the page tree with inherited boxes, interactive form fields with their
// widgets and default appearances, and page text.
package reader

import (
	"fmt"
	"strconv"
	"unicode/utf16"
)

// Object is implemented by every PDF object type.
type Object interface {
	isObject()
}

// Null is the PDF null object.
type Null struct{}

// Boolean is a PDF boolean.
type Boolean bool

// Integer is a PDF integer.
type Integer int64

// Real is a PDF real number.
type Real float64

// Name is a PDF name without its leading slash.
type Name string

// String is the raw byte content of a literal or hexadecimal string.
type String []byte

// Array is a PDF array.
type Array []Object

// Dict is a PDF dictionary.
type Dict map[Name]Object

// Stream is a stream dictionary with its still-encoded data.
type Stream struct {
	Dict Dict
	Raw  []byte
}

// Reference is an indirect reference such as "12 0 R".
type Reference struct {
	Number     int
	Generation int
}

// keyword is a bare token: an operator in a content stream or a structural
// word such as obj, stream or R.
type keyword string

func (Null) isObject()      {}
func (Boolean) isObject()   {}
func (Integer) isObject()   {}
func (Real) isObject()      {}
func (Name) isObject()      {}
func (String) isObject()    {}
func (Array) isObject()     {}
func (Dict) isObject()      {}
func (Stream) isObject()    {}
func (Reference) isObject() {}
func (keyword) isObject()   {}

func (r Reference) String() string {
	return strconv.Itoa(r.Number) + " " + strconv.Itoa(r.Generation) + " R"
}

// Text decodes s as a PDF text string: UTF-16BE when it starts with a byte
// order mark, otherwise PDFDocEncoding read as Latin-1.
func (s String) Text() string {
	if len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF {
		body := s[2:]
		units := make([]uint16, 0, len(body)/2)
		for i := 0; i+1 < len(body); i += 2 {
			units = append(units, uint16(body[i])<<8|uint16(body[i+1]))
		}
		return string(utf16.Decode(units))
	}
	runes := make([]rune, len(s))
	for i, b := range s {
		runes[i] = rune(b)
	}
	return string(runes)
}

// Name returns the name stored under key, or "".
func (d Dict) Name(key Name) Name {
	n, _ := d[key].(Name)
	return n
}

// Int returns the integer stored under key. Reals are truncated.
func (d Dict) Int(key Name) (int64, bool) {
	return intOf(d[key])
}

// Text returns the decoded text string stored under key, or "".
func (d Dict) Text(key Name) string {
	s, _ := d[key].(String)
	return s.Text()
}

func intOf(o Object) (int64, bool) {
	switch v := o.(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

func numberOf(o Object) (float64, bool) {
	switch v := o.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// valueString renders scalar field values the way viewers show them.
func valueString(o Object) string {
	switch v := o.(type) {
	case String:
		return v.Text()
	case Name:
		return string(v)
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case Real:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case Boolean:
		return strconv.FormatBool(bool(v))
	}
	return ""
}

// Rectangle is a normalized PDF rectangle in user space units.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the horizontal extent of r.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height returns the vertical extent of r.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// IsZero reports whether r has no area.
func (r Rectangle) IsZero() bool { return r.Width() == 0 || r.Height() == 0 }

func rectangleOf(o Object) (Rectangle, error) {
	arr, ok := o.(Array)
	if !ok || len(arr) != 4 {
		return Rectangle{}, fmt.Errorf("reader: rectangle must be a 4-element array")
	}
	var v [4]float64
	for i, item := range arr {
		n, ok := numberOf(item)
		if !ok {
			return Rectangle{}, fmt.Errorf("reader: rectangle element %d is not a number", i)
		}
		v[i] = n
	}
	r := Rectangle{LLX: min(v[0], v[2]), LLY: min(v[1], v[3]), URX: max(v[0], v[2]), URY: max(v[1], v[3])}
	return r, nil
}
