package pageops_test

import (
	"bytes"
	"errors"
	"image/color"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lvillar/pdfstamp/internal/pdftest"
	"github.com/lvillar/pdfstamp/pageops"
	"github.com/lvillar/pdfstamp/reader"
)

func parse(t *testing.T, data []byte) *pageops.Source {
	t.Helper()
	src, err := pageops.ParseSource("test.pdf", data)
	if err != nil {
		t.Fatalf("parsing source: %v", err)
	}
	return src
}

func save(t *testing.T, doc *pageops.Document) *reader.Document {
	t.Helper()
	data, err := doc.Save()
	if err != nil {
		t.Fatalf("saving: %v", err)
	}
	out, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("reading saved PDF: %v", err)
	}
	return out
}

func pageText(t *testing.T, doc *reader.Document, n int) string {
	t.Helper()
	p, err := doc.Page(n)
	if err != nil {
		t.Fatalf("page %d: %v", n, err)
	}
	text, err := p.ExtractText()
	if err != nil {
		t.Fatalf("page %d text: %v", n, err)
	}
	return text
}

func TestParseSource(t *testing.T) {
	src := parse(t, pdftest.Numbered(t, pdftest.Letter, 3))
	if src.NumPages() != 3 {
		t.Fatalf("NumPages = %d, want 3", src.NumPages())
	}
	size, err := src.PageSize(2)
	if err != nil {
		t.Fatalf("PageSize: %v", err)
	}
	if diff := cmp.Diff(pageops.Size{W: 612, H: 792}, size); diff != "" {
		t.Errorf("PageSize mismatch (-want +got):\n%s", diff)
	}
	if _, err := src.PageSize(3); !errors.Is(err, pageops.ErrPageRange) {
		t.Errorf("PageSize(3) error = %v, want ErrPageRange", err)
	}
}

func TestParseSourceErrors(t *testing.T) {
	if _, err := pageops.ParseSource("enc.pdf", pdftest.Encrypted()); !errors.Is(err, pageops.ErrEncrypted) {
		t.Errorf("encrypted: error = %v, want ErrEncrypted", err)
	}
	if _, err := pageops.ParseSource("junk", []byte("not a pdf")); err == nil {
		t.Error("expected error for non-PDF data")
	}
}

func TestDocumentPageEditing(t *testing.T) {
	src := parse(t, pdftest.Numbered(t, pdftest.A4, 2))
	doc := pageops.NewDocument(src)

	first, err := doc.Page(0)
	if err != nil {
		t.Fatal(err)
	}
	first.DrawText("stamped", pageops.TextOptions{X: 50, Y: 700, Size: 10})

	clone, err := doc.CopyPage(0)
	if err != nil {
		t.Fatal(err)
	}
	clone.DrawText("only on the clone", pageops.TextOptions{X: 50, Y: 600, Size: 10})
	if err := doc.InsertPage(1, clone); err != nil {
		t.Fatal(err)
	}
	if err := doc.InsertPage(5, clone); !errors.Is(err, pageops.ErrPageRange) {
		t.Errorf("InsertPage(5) error = %v, want ErrPageRange", err)
	}

	if got := len(first.Ops()); got != 1 {
		t.Errorf("original page has %d ops after drawing on the clone, want 1", got)
	}

	out := save(t, doc)
	if out.NumPages() != 3 {
		t.Fatalf("saved %d pages, want 3", out.NumPages())
	}
	wants := [][]string{
		{"Page 1", "stamped"},
		{"Page 1", "stamped", "only on the clone"},
		{"Page 2"},
	}
	for i, want := range wants {
		text := pageText(t, out, i+1)
		for _, w := range want {
			if !strings.Contains(text, w) {
				t.Errorf("page %d text %q does not contain %q", i+1, text, w)
			}
		}
	}
	if strings.Contains(pageText(t, out, 1), "only on the clone") {
		t.Error("clone ops leaked onto the original page")
	}
}

func TestCopyPageFrom(t *testing.T) {
	base := parse(t, pdftest.Numbered(t, pdftest.A4, 1))
	extra := parse(t, pdftest.Pages(t, pdftest.Letter, "Appendix", "Unused"))

	doc := pageops.NewDocument(base)
	p, err := doc.CopyPageFrom(extra, 0)
	if err != nil {
		t.Fatal(err)
	}
	doc.AddPage(p)

	out := save(t, doc)
	if out.NumPages() != 2 {
		t.Fatalf("saved %d pages, want 2", out.NumPages())
	}
	last, _ := out.Page(2)
	if w, h := last.Size(); w != 612 || h != 792 {
		t.Errorf("appended page size = %vx%v, want 612x792", w, h)
	}
	if text := pageText(t, out, 2); !strings.Contains(text, "Appendix") {
		t.Errorf("appended page text = %q", text)
	}
}

func TestDrawTextLines(t *testing.T) {
	doc := pageops.NewDocument(parse(t, pdftest.Numbered(t, pdftest.A4, 1)))
	p, _ := doc.Page(0)
	p.DrawText("first \nsecond", pageops.TextOptions{
		X: 40, Y: 500, Size: 12, LineHeight: 14,
		Font:  pageops.Font{Family: "Courier"},
		Color: &pageops.RGBColor{R: 255},
	})
	p.DrawText("a fairly long sentence that has to wrap", pageops.TextOptions{X: 40, Y: 300, Size: 10, MaxWidth: 60})

	text := pageText(t, save(t, doc), 1)
	for _, want := range []string{"first", "second", "a fairly", "wrap"} {
		if !strings.Contains(text, want) {
			t.Errorf("text %q does not contain %q", text, want)
		}
	}
	if strings.Contains(text, "a fairly long sentence that has to wrap") {
		t.Errorf("text was not wrapped: %q", text)
	}
}

func TestDrawImage(t *testing.T) {
	for name, data := range map[string][]byte{
		"png":  pdftest.PNG(t, 4, 2, color.NRGBA{R: 200, A: 255}),
		"jpeg": pdftest.JPEG(t, 4, 2, color.Gray{Y: 128}),
	} {
		t.Run(name, func(t *testing.T) {
			img, err := pageops.DecodeImage(data)
			if err != nil {
				t.Fatalf("DecodeImage: %v", err)
			}
			doc := pageops.NewDocument(parse(t, pdftest.Numbered(t, pdftest.A4, 1)))
			p, _ := doc.Page(0)
			p.DrawImage(img, pageops.ImageOptions{X: 10, Y: 10, W: 40})

			ops := p.Ops()
			op, ok := ops[0].(pageops.ImageOp)
			if !ok {
				t.Fatalf("op is %T, want ImageOp", ops[0])
			}
			if op.W != 40 || op.H != 20 {
				t.Errorf("image size = %vx%v, want 40x20", op.W, op.H)
			}
			if _, err := doc.Save(); err != nil {
				t.Fatalf("Save: %v", err)
			}
		})
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := pageops.DecodeImage(pdftest.JPEG(t, 3, 5, color.White))
	if err != nil {
		t.Fatal(err)
	}
	if img.Type != "JPG" || img.Width != 3 || img.Height != 5 {
		t.Errorf("jpeg decoded as %s %dx%d", img.Type, img.Width, img.Height)
	}
	img, err = pageops.DecodeImage(pdftest.PNG(t, 2, 2, color.Black))
	if err != nil {
		t.Fatal(err)
	}
	if img.Type != "PNG" {
		t.Errorf("png decoded as %s", img.Type)
	}
	if _, err := pageops.DecodeImage([]byte("GIF89a?")); !errors.Is(err, pageops.ErrImageFormat) {
		t.Errorf("garbage: error = %v, want ErrImageFormat", err)
	}
}

func TestDrawBarcode(t *testing.T) {
	tests := []struct {
		sym     pageops.Symbology
		content string
		wantErr bool
	}{
		{pageops.Code128, "ABC-12345", false},
		{pageops.Code39, "HELLO", false},
		{pageops.EAN, "5901234123457", false},
		{pageops.EAN, "12", true},
		{pageops.QR, "https://example.com", false},
		{pageops.DataMatrix, "dm", false},
		{pageops.PDF417, "pdf417 content", false},
		{pageops.PDF417, "", true},
		{pageops.PDF417, strings.Repeat("x", 6000), true},
		{pageops.Code128, "", true},
	}
	for _, tt := range tests {
		name := tt.content
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(string(tt.sym)+"/"+name, func(t *testing.T) {
			doc := pageops.NewDocument(parse(t, pdftest.Numbered(t, pdftest.A4, 1)))
			p, _ := doc.Page(0)
			err := p.DrawBarcode(pageops.Barcode{Symbology: tt.sym, Content: tt.content}, pageops.ImageOptions{X: 20, Y: 20, W: 120, H: 40})
			if tt.wantErr {
				if !errors.Is(err, pageops.ErrBarcode) {
					t.Errorf("error = %v, want ErrBarcode", err)
				}
				if len(p.Ops()) != 0 {
					t.Error("invalid barcode was recorded")
				}
				return
			}
			if err != nil {
				t.Fatalf("DrawBarcode: %v", err)
			}
			if _, err := doc.Save(); err != nil {
				t.Fatalf("Save: %v", err)
			}
		})
	}
}

func TestParseSymbology(t *testing.T) {
	for in, want := range map[string]pageops.Symbology{"": pageops.Code128, "QR": pageops.QR, " ean ": pageops.EAN} {
		got, err := pageops.ParseSymbology(in)
		if err != nil || got != want {
			t.Errorf("ParseSymbology(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := pageops.ParseSymbology("aztec"); err == nil {
		t.Error("expected error for unsupported symbology")
	}
}

func TestFontRegistry(t *testing.T) {
	r := pageops.NewFontRegistry(pageops.Courier)
	if f, ok := r.Lookup("TimesRomanBold"); !ok || f != (pageops.Font{Family: "Times", Style: "B"}) {
		t.Errorf("Lookup(TimesRomanBold) = %v, %v", f, ok)
	}
	if f, ok := r.Lookup("comic sans"); ok || f.Family != "Courier" {
		t.Errorf("unknown key = %v, %v; want courier fallback", f, ok)
	}
	if r.SetDefault("nope") {
		t.Error("SetDefault accepted an unknown key")
	}
	if len(r.Keys()) != 12 {
		t.Errorf("got %d standard keys, want 12", len(r.Keys()))
	}
}

func TestSourceRewrite(t *testing.T) {
	data := pdftest.Numbered(t, pdftest.A4, 2)
	src := parse(t, data)
	doc := pageops.NewDocument(src)

	marker := []byte("Page 2")
	err := src.Rewrite(func(b []byte) ([]byte, error) {
		out := bytes.Clone(b)
		i := bytes.Index(out, marker)
		copy(out[i:], "Seite2")
		return out, nil
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if text := pageText(t, save(t, doc), 2); !strings.Contains(text, "Seite2") {
		t.Errorf("rewritten page text = %q", text)
	}

	if err := src.Rewrite(func([]byte) ([]byte, error) { return pdftest.Numbered(t, pdftest.A4, 1), nil }); err == nil {
		t.Error("expected error when the page count changes")
	}
}

func TestSaveEmpty(t *testing.T) {
	if _, err := pageops.NewDocument(nil).Save(); !errors.Is(err, pageops.ErrNoPages) {
		t.Errorf("error = %v, want ErrNoPages", err)
	}
}
