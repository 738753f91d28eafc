package reader

import (
	"strings"
)

// ExtractText returns the text shown by the page's content stream and the
// form XObjects it paints, one line per text object or line move. Glyphs are
// decoded as single bytes, which is exact for the standard 14 fonts in
// WinAnsi encoding.
func (p *Page) ExtractText() (string, error) {
	data, err := p.Contents()
	if err != nil {
		return "", err
	}
	var out strings.Builder
	p.doc.contentText(&out, data, p.resources, 0)
	return strings.TrimSpace(out.String()), nil
}

const maxFormDepth = 8

func (d *Document) contentText(out *strings.Builder, data []byte, resources Dict, depth int) {
	var (
		operands []Object
		inText   bool
	)
	newline := func() {
		s := out.String()
		if len(s) > 0 && s[len(s)-1] != '\n' {
			out.WriteByte('\n')
		}
	}
	l := newLexer(data)
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			break
		}
		v, err := l.value()
		if err != nil {
			// Skip the offending byte and keep scanning.
			l.pos++
			operands = operands[:0]
			continue
		}
		op, isOp := v.(keyword)
		if !isOp {
			operands = append(operands, v)
			continue
		}
		switch op {
		case "BT":
			inText = true
		case "ET":
			inText = false
			newline()
		case "Td", "TD", "T*", "Tm":
			if inText {
				newline()
			}
		case "Tj", "'", "\"":
			if inText && len(operands) > 0 {
				if op != "Tj" {
					newline()
				}
				if s, ok := operands[len(operands)-1].(String); ok {
					out.WriteString(s.Text())
				}
			}
		case "TJ":
			if arr, ok := lastArray(operands); ok && inText {
				for _, item := range arr {
					switch x := item.(type) {
					case String:
						out.WriteString(x.Text())
					case Integer, Real:
						if n, _ := numberOf(x); n < -200 {
							out.WriteByte(' ')
						}
					}
				}
			}
		case "ID":
			skipInlineImage(l)
		case "Do":
			if len(operands) > 0 && depth < maxFormDepth {
				if name, ok := operands[len(operands)-1].(Name); ok {
					d.formText(out, resources, name, depth)
				}
			}
		}
		operands = operands[:0]
	}
}

func (d *Document) formText(out *strings.Builder, resources Dict, name Name, depth int) {
	xobjects := d.resolveDict(resources["XObject"])
	v, err := d.Resolve(xobjects[name])
	if err != nil {
		return
	}
	form, ok := v.(Stream)
	if !ok || form.Dict.Name("Subtype") != "Form" {
		return
	}
	data, err := form.Decode()
	if err != nil {
		return
	}
	res := d.resolveDict(form.Dict["Resources"])
	if res == nil {
		res = resources
	}
	d.contentText(out, data, res, depth+1)
	if s := out.String(); len(s) > 0 && s[len(s)-1] != '\n' {
		out.WriteByte('\n')
	}
}

func lastArray(operands []Object) (Array, bool) {
	if len(operands) == 0 {
		return nil, false
	}
	arr, ok := operands[len(operands)-1].(Array)
	return arr, ok
}

// skipInlineImage moves past binary inline image data up to EI.
func skipInlineImage(l *lexer) {
	for i := l.pos + 1; i+2 <= len(l.src); i++ {
		if l.src[i] == 'E' && l.src[i+1] == 'I' && isSpace(l.src[i-1]) && (i+2 == len(l.src) || !isRegular(l.src[i+2])) {
			l.pos = i + 2
			return
		}
	}
	l.pos = len(l.src)
}
