package pageops

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	bcpdf "github.com/jung-kurt/gofpdf/contrib/barcode"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Op is an operation recorded on a page: a TextOp, ImageOp or BarcodeOp.
type Op interface {
	emit(w *writer, pageH float64)
}

// TextOptions positions and styles text.
type TextOptions struct {
	X, Y       float64
	Size       float64
	LineHeight float64
	// MaxWidth wraps each line at word boundaries when positive.
	MaxWidth float64
	// A zero Font uses the document's default font.
	Font  Font
	Color *RGBColor
}

// TextOp draws one or more lines of text. Lines are separated by "\n"; each
// line is drawn LineHeight below the previous one.
type TextOp struct {
	Text string
	TextOptions
}

// ImageOptions places an image or barcode.
type ImageOptions struct {
	X, Y, W, H float64
}

// ImageOp draws an image.
type ImageOp struct {
	Image *Image
	ImageOptions
}

// BarcodeOp draws a barcode.
type BarcodeOp struct {
	Barcode Barcode
	ImageOptions
}

// writer renders pages into a single gofpdf document.
type writer struct {
	pdf     *gofpdf.Fpdf
	def     Font
	enc     *encoding.Encoder
	images  map[*Image]string
	sources map[*Source]*io.ReadSeeker
	tpls    map[sourcePage]int
	imp     *gofpdi.Importer
}

type sourcePage struct {
	src   *Source
	index int
}

func (d *Document) write(out io.Writer) (err error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCellMargin(0)
	pdf.SetCompression(d.opts.compression)
	if d.opts.producer != "" {
		pdf.SetProducer(d.opts.producer, true)
		pdf.SetCreator(d.opts.producer, true)
	}
	if d.opts.title != "" {
		pdf.SetTitle(d.opts.title, true)
	}

	// The importer panics on page streams it cannot parse.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pageops: importing pages: %v", r)
		}
	}()

	w := &writer{
		pdf:     pdf,
		def:     d.fonts.Default(),
		enc:     encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()),
		images:  map[*Image]string{},
		sources: map[*Source]*io.ReadSeeker{},
		tpls:    map[sourcePage]int{},
		imp:     gofpdi.NewImporter(),
	}
	for i, p := range d.pages {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: p.size.W, Ht: p.size.H})
		w.importPage(p)
		for _, op := range p.ops {
			op.emit(w, p.size.H)
		}
		if pdf.Err() {
			return fmt.Errorf("pageops: drawing page %d: %w", i+1, pdf.Error())
		}
	}
	if err := pdf.Output(out); err != nil {
		return fmt.Errorf("pageops: writing document: %w", err)
	}
	return nil
}

func (w *writer) importPage(p *Page) {
	key := sourcePage{p.src, p.index}
	tpl, ok := w.tpls[key]
	if !ok {
		rs, ok := w.sources[p.src]
		if !ok {
			r := io.ReadSeeker(bytes.NewReader(p.src.data))
			rs = &r
			w.sources[p.src] = rs
		}
		tpl = w.imp.ImportPageFromStream(w.pdf, rs, p.index+1, "/MediaBox")
		w.tpls[key] = tpl
	}
	w.imp.UseImportedTemplate(w.pdf, tpl, 0, 0, p.size.W, p.size.H)
}

// winAnsi encodes s for the core fonts. The result is returned with one rune
// per byte so gofpdf's width tables, indexed by byte, apply to it.
func (w *writer) winAnsi(s string) string {
	b, err := w.enc.String(s)
	if err != nil {
		b = s
	}
	runes := make([]rune, len(b))
	for i := 0; i < len(b); i++ {
		runes[i] = rune(b[i])
	}
	return string(runes)
}

func narrow(s string) string {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return string(b)
}

func (t TextOp) emit(w *writer, pageH float64) {
	font := t.Font
	if font.Family == "" {
		font = w.def
	}
	w.pdf.SetFont(font.Family, font.Style, t.Size)
	if c := t.Color; c != nil {
		w.pdf.SetTextColor(c.R, c.G, c.B)
	} else {
		w.pdf.SetTextColor(0, 0, 0)
	}
	y := t.Y
	for _, line := range strings.Split(t.Text, "\n") {
		parts := []string{w.winAnsi(line)}
		if t.MaxWidth > 0 && parts[0] != "" {
			parts = w.pdf.SplitText(parts[0], t.MaxWidth)
		}
		for _, part := range parts {
			if part != "" {
				w.pdf.Text(t.X, pageH-y, narrow(part))
			}
			y -= t.LineHeight
		}
	}
}

func (o ImageOp) emit(w *writer, pageH float64) {
	opts := gofpdf.ImageOptions{ImageType: o.Image.Type}
	name, ok := w.images[o.Image]
	if !ok {
		name = fmt.Sprintf("image%d", len(w.images)+1)
		w.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(o.Image.Data))
		w.images[o.Image] = name
	}
	w.pdf.ImageOptions(name, o.X, pageH-o.Y-o.H, o.W, o.H, false, opts, 0, "")
}

func (o BarcodeOp) emit(w *writer, pageH float64) {
	key := o.Barcode.register(w.pdf)
	bcpdf.Barcode(w.pdf, key, o.X, pageH-o.Y-o.H, o.W, o.H, false)
}
