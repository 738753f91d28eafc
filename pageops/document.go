package pageops

import (
	"bytes"
	"fmt"
	"io"
)

// Page is a source page plus the operations drawn on it. Coordinates are
// in PDF user space: points with the origin at the bottom-left corner.
type Page struct {
	src   *Source
	index int
	size  Size
	ops   []Op
}

// Size returns the page width and height in points.
func (p *Page) Size() (w, h float64) { return p.size.W, p.size.H }

// Source returns the source the page was imported from and its 0-based page
// index there.
func (p *Page) Source() (*Source, int) { return p.src, p.index }

// Ops returns a copy of the operations drawn so far.
func (p *Page) Ops() []Op { return append([]Op(nil), p.ops...) }

// DrawText records text at o.X, o.Y, the baseline of the first line.
func (p *Page) DrawText(text string, o TextOptions) {
	if o.Size <= 0 {
		o.Size = 12
	}
	if o.LineHeight <= 0 {
		o.LineHeight = o.Size
	}
	p.ops = append(p.ops, TextOp{Text: text, TextOptions: o})
}

// DrawImage records img with its bottom-left corner at o.X, o.Y. A zero
// width or height is derived from the image's aspect ratio.
func (p *Page) DrawImage(img *Image, o ImageOptions) {
	o.W, o.H = img.fit(o.W, o.H)
	p.ops = append(p.ops, ImageOp{Image: img, ImageOptions: o})
}

// DrawBarcode records a barcode with its bottom-left corner at o.X, o.Y.
// The barcode is validated first so a bad code never reaches the writer.
func (p *Page) DrawBarcode(b Barcode, o ImageOptions) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if o.W <= 0 || o.H <= 0 {
		return fmt.Errorf("%w: %s needs a positive width and height", ErrBarcode, b.Symbology)
	}
	p.ops = append(p.ops, BarcodeOp{Barcode: b, ImageOptions: o})
	return nil
}

func (p *Page) clone() *Page {
	c := *p
	c.ops = append([]Op(nil), p.ops...)
	return &c
}

// Document is an ordered list of pages. It is not safe for concurrent use.
type Document struct {
	pages []*Page
	fonts *FontRegistry
	opts  options
}

// NewDocument returns a document holding every page of src, or an empty
// document when src is nil.
func NewDocument(src *Source, opts ...Option) *Document {
	d := &Document{opts: defaultOptions()}
	for _, o := range opts {
		o(&d.opts)
	}
	d.fonts = d.opts.fonts
	if d.fonts == nil {
		d.fonts = NewFontRegistry(Helvetica)
	}
	if src != nil {
		for i, size := range src.sizes {
			d.pages = append(d.pages, &Page{src: src, index: i, size: size})
		}
	}
	return d
}

// Fonts returns the registry used to resolve font keys.
func (d *Document) Fonts() *FontRegistry { return d.fonts }

// NumPages returns the current number of pages.
func (d *Document) NumPages() int { return len(d.pages) }

// Page returns the 0-based page i.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, i, len(d.pages))
	}
	return d.pages[i], nil
}

// Pages returns the pages in order. The slice is a copy; the pages are not.
func (d *Document) Pages() []*Page { return append([]*Page(nil), d.pages...) }

// CopyPage returns an independent copy of page i, including everything drawn
// on it so far. The copy is not part of the document until inserted.
func (d *Document) CopyPage(i int) (*Page, error) {
	p, err := d.Page(i)
	if err != nil {
		return nil, err
	}
	return p.clone(), nil
}

// CopyPageFrom returns a blank copy of the 0-based page i of src.
func (d *Document) CopyPageFrom(src *Source, i int) (*Page, error) {
	size, err := src.PageSize(i)
	if err != nil {
		return nil, err
	}
	return &Page{src: src, index: i, size: size}, nil
}

// InsertPage places p at index i, shifting later pages. i may equal
// NumPages.
func (d *Document) InsertPage(i int, p *Page) error {
	if i < 0 || i > len(d.pages) {
		return fmt.Errorf("%w: insert at %d of %d", ErrPageRange, i, len(d.pages))
	}
	d.pages = append(d.pages, nil)
	copy(d.pages[i+1:], d.pages[i:])
	d.pages[i] = p
	return nil
}

// AddPage appends p.
func (d *Document) AddPage(p *Page) { d.pages = append(d.pages, p) }

// Save serializes the document.
func (d *Document) Save() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo serializes the document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	if len(d.pages) == 0 {
		return 0, ErrNoPages
	}
	cw := &countingWriter{w: w}
	err := d.write(cw)
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
