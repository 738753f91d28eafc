package form

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/lvillar/pdfstamp/reader"
)

var (
	acroFormRef = regexp.MustCompile(`/AcroForm\s*\d+\s+\d+\s+R`)
	// Markers that make a field dictionary interactive.
	fieldMarkers = []*regexp.Regexp{
		regexp.MustCompile(`/FT\s*/[A-Za-z]+`),
		regexp.MustCompile(`/Subtype\s*/Widget`),
		regexp.MustCompile(`/DA\s*\((?:[^()\\]|\\.)*\)`),
		regexp.MustCompile(`/NeedAppearances\s+(?:true|false)`),
	}
)

// Flatten removes the interactive form from a PDF. The catalog's /AcroForm
// entry and the interactive markers of every field and widget dictionary are
// overwritten with spaces, so byte offsets and the xref table stay valid.
// Objects inside object streams are left alone. A document without fields is
// returned unchanged.
func Flatten(data []byte) ([]byte, error) {
	doc, err := reader.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("form: parsing PDF: %w", err)
	}
	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("form: reading form fields: %w", err)
	}
	if len(fields) == 0 {
		return data, nil
	}

	out := bytes.Clone(data)
	if root, ok := doc.Trailer()["Root"].(reader.Reference); ok {
		if start, end, ok := doc.ObjectSpan(root.Number); ok {
			blankAcroForm(out[start:end])
		}
	}
	seen := map[int]bool{}
	blank := func(ref reader.Reference) {
		if ref.Number == 0 || seen[ref.Number] {
			return
		}
		seen[ref.Number] = true
		if start, end, ok := doc.ObjectSpan(ref.Number); ok {
			for _, re := range fieldMarkers {
				blankPattern(out[start:end], re)
			}
		}
	}
	var visit func([]*reader.FormField)
	visit = func(fields []*reader.FormField) {
		for _, f := range fields {
			blank(f.Ref)
			for _, w := range f.Widgets {
				blank(w.Ref)
			}
			visit(f.Kids)
		}
	}
	visit(fields)
	return out, nil
}

// blankAcroForm blanks the /AcroForm entry of a catalog object, either a
// reference or an inline dictionary.
func blankAcroForm(obj []byte) {
	if loc := acroFormRef.FindIndex(obj); loc != nil {
		spaces(obj[loc[0]:loc[1]])
		return
	}
	start := bytes.Index(obj, []byte("/AcroForm"))
	if start < 0 {
		return
	}
	pos := start + len("/AcroForm")
	for pos < len(obj) && (obj[pos] == ' ' || obj[pos] == '\n' || obj[pos] == '\r') {
		pos++
	}
	if !bytes.HasPrefix(obj[pos:], []byte("<<")) {
		return
	}
	depth := 0
	for i := pos; i < len(obj)-1; i++ {
		switch {
		case obj[i] == '<' && obj[i+1] == '<':
			depth++
			i++
		case obj[i] == '>' && obj[i+1] == '>':
			depth--
			i++
			if depth == 0 {
				spaces(obj[start : i+1])
				return
			}
		}
	}
}

func blankPattern(obj []byte, re *regexp.Regexp) {
	for _, loc := range re.FindAllIndex(obj, -1) {
		spaces(obj[loc[0]:loc[1]])
	}
}

func spaces(b []byte) {
	for i := range b {
		b[i] = ' '
	}
}
