// Package pdftest builds small PDF and image fixtures for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

// Size is a page size in points.
type Size struct {
	W, H float64
}

var (
	A4     = Size{595.28, 841.89}
	Letter = Size{612, 792}
)

// Pages returns a PDF with one page of the given size per label, each page
// showing its label near the top-left corner.
func Pages(tb testing.TB, size Size, labels ...string) []byte {
	tb.Helper()
	pdf := gofpdf.New("P", "pt", "", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)
	for _, label := range labels {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: size.W, Ht: size.H})
		pdf.Text(36, 48, label)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		tb.Fatalf("generating test PDF: %v", err)
	}
	return buf.Bytes()
}

// Numbered returns an n page PDF labelled "Page 1" through "Page n".
func Numbered(tb testing.TB, size Size, n int) []byte {
	tb.Helper()
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("Page %d", i+1)
	}
	return Pages(tb, size, labels...)
}

// PNG returns a w×h PNG filled with c.
func PNG(tb testing.TB, w, h int, c color.Color) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, filled(w, h, c)); err != nil {
		tb.Fatalf("encoding PNG: %v", err)
	}
	return buf.Bytes()
}

// JPEG returns a w×h JPEG filled with c.
func JPEG(tb testing.TB, w, h int, c color.Color) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, filled(w, h, c), nil); err != nil {
		tb.Fatalf("encoding JPEG: %v", err)
	}
	return buf.Bytes()
}

func filled(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// Field is a text field with a single widget.
type Field struct {
	Name  string
	Page  int // 0-based
	X, Y  float64
	W, H  float64
	DA    string // defaults to "/Helv 0 Tf 0 g"
	Value string
}

// Form describes an AcroForm document.
type Form struct {
	Size   Size
	Pages  int
	Fields []Field
}

// Bytes assembles the form as an uncompressed PDF with a classic xref table.
// Pages show "Form page N". Each field dictionary doubles as its widget.
func (f Form) Bytes() []byte {
	if f.Pages < 1 {
		f.Pages = 1
	}
	if f.Size == (Size{}) {
		f.Size = Letter
	}
	w := &objWriter{}
	w.buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	// Object numbers: 1 catalog, 2 page tree, 3 AcroForm, 4 font, then a
	// page and content stream pair per page, then the fields.
	pageObj := func(i int) int { return 5 + 2*i }
	fieldObj := func(i int) int { return 5 + 2*f.Pages + i }

	w.object(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm 3 0 R >>")

	kids := make([]string, f.Pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", pageObj(i))
	}
	w.object(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 %s %s] >>",
		strings.Join(kids, " "), f.Pages, num(f.Size.W), num(f.Size.H)))

	fields := make([]string, len(f.Fields))
	for i := range fields {
		fields[i] = fmt.Sprintf("%d 0 R", fieldObj(i))
	}
	w.object(3, fmt.Sprintf("<< /Fields [%s] /DA (/Helv 0 Tf 0 g) /DR << /Font << /Helv 4 0 R >> >> >>",
		strings.Join(fields, " ")))
	w.object(4, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i := 0; i < f.Pages; i++ {
		var annots []string
		for j, fd := range f.Fields {
			if fd.Page == i {
				annots = append(annots, fmt.Sprintf("%d 0 R", fieldObj(j)))
			}
		}
		w.object(pageObj(i), fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /Helv 4 0 R >> >> /Contents %d 0 R /Annots [%s] >>",
			num(f.Size.W), num(f.Size.H), pageObj(i)+1, strings.Join(annots, " ")))
		content := fmt.Sprintf("BT /Helv 12 Tf 36 %s Td (Form page %d) Tj ET", num(f.Size.H-48), i+1)
		w.object(pageObj(i)+1, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	for i, fd := range f.Fields {
		da := fd.DA
		if da == "" {
			da = "/Helv 0 Tf 0 g"
		}
		value := ""
		if fd.Value != "" {
			value = fmt.Sprintf(" /V (%s)", escape(fd.Value))
		}
		w.object(fieldObj(i), fmt.Sprintf("<< /Type /Annot /Subtype /Widget /FT /Tx /T (%s) /Rect [%s %s %s %s] /DA (%s) /F 4 /P %d 0 R%s >>",
			escape(fd.Name), num(fd.X), num(fd.Y), num(fd.X+fd.W), num(fd.Y+fd.H), escape(da), pageObj(fd.Page), value))
	}
	return w.finish(fieldObj(len(f.Fields)))
}

// Encrypted returns a one page document whose trailer names a security
// handler.
func Encrypted() []byte {
	w := &objWriter{}
	w.buf.WriteString("%PDF-1.4\n")
	w.object(1, "<< /Type /Catalog /Pages 2 0 R >>")
	w.object(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	w.object(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	w.object(4, "<< /Filter /Standard /V 1 /R 2 /O (x) /U (y) /P -4 >>")
	return w.finishWith(5, " /Encrypt 4 0 R /ID [<00> <00>]")
}

type objWriter struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func (w *objWriter) object(n int, body string) {
	if w.offsets == nil {
		w.offsets = map[int]int{}
	}
	w.offsets[n] = w.buf.Len()
	fmt.Fprintf(&w.buf, "%d 0 obj\n%s\nendobj\n", n, body)
}

func (w *objWriter) finish(size int) []byte { return w.finishWith(size, "") }

func (w *objWriter) finishWith(size int, extra string) []byte {
	start := w.buf.Len()
	fmt.Fprintf(&w.buf, "xref\n0 %d\n0000000000 65535 f\r\n", size)
	for n := 1; n < size; n++ {
		if off, ok := w.offsets[n]; ok {
			fmt.Fprintf(&w.buf, "%010d 00000 n\r\n", off)
		} else {
			w.buf.WriteString("0000000000 65535 f\r\n")
		}
	}
	fmt.Fprintf(&w.buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", size, extra, start)
	return w.buf.Bytes()
}

func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
