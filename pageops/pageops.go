// Package pageops keeps an editable list of pages imported from existing
// PDF files and draws text, images and barcodes on them.
//
// gofpdf only writes documents, so a Document records what is drawn on each
// page and replays it when saved: every page is re-created with the gofpdi
// importer from its source page and the recorded operations are drawn on top.
// Pages can be copied, inserted and appended freely before saving.
package pageops

import (
	"errors"
	"fmt"

	"github.com/lvillar/pdfstamp/reader"
)

var (
	ErrNoPages     = errors.New("pageops: document has no pages")
	ErrPageRange   = errors.New("pageops: page index out of range")
	ErrEncrypted   = errors.New("pageops: encrypted documents are not supported")
	ErrImageFormat = errors.New("pageops: unsupported image format")
	ErrBarcode     = errors.New("pageops: cannot encode barcode")
)

// Size is a page size in points.
type Size struct {
	W, H float64
}

// RGBColor is a color with 0..255 components.
type RGBColor struct {
	R, G, B int
}

// Source is a parsed PDF whose pages can be placed into a Document.
type Source struct {
	name  string
	data  []byte
	doc   *reader.Document
	sizes []Size
}

// ParseSource parses data and records its page sizes. name is only used in
// errors and logs.
func ParseSource(name string, data []byte) (*Source, error) {
	s := &Source{name: name}
	if err := s.load(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) load(data []byte) error {
	doc, err := reader.Parse(data)
	if errors.Is(err, reader.ErrEncrypted) {
		return fmt.Errorf("pageops: %s: %w", s.name, ErrEncrypted)
	}
	if err != nil {
		return fmt.Errorf("pageops: parsing %s: %w", s.name, err)
	}
	if doc.NumPages() == 0 {
		return fmt.Errorf("pageops: %s: %w", s.name, ErrNoPages)
	}
	sizes := make([]Size, 0, doc.NumPages())
	for _, p := range doc.Pages() {
		w, h := p.Size()
		sizes = append(sizes, Size{W: w, H: h})
	}
	s.data, s.doc, s.sizes = data, doc, sizes
	return nil
}

// Name returns the name given to ParseSource.
func (s *Source) Name() string { return s.name }

// Bytes returns the current source bytes.
func (s *Source) Bytes() []byte { return s.data }

// Reader returns the parsed form of the current source bytes.
func (s *Source) Reader() *reader.Document { return s.doc }

// NumPages returns the number of pages in the source.
func (s *Source) NumPages() int { return len(s.sizes) }

// PageSize returns the MediaBox size of the 0-based page i.
func (s *Source) PageSize(i int) (Size, error) {
	if i < 0 || i >= len(s.sizes) {
		return Size{}, fmt.Errorf("%w: %d of %d in %s", ErrPageRange, i, len(s.sizes), s.name)
	}
	return s.sizes[i], nil
}

// Rewrite replaces the source bytes with fn's result. Pages already placed
// in documents pick up the new bytes when saved. The page count must not
// change; on error the source is left as it was.
func (s *Source) Rewrite(fn func([]byte) ([]byte, error)) error {
	data, err := fn(s.data)
	if err != nil {
		return fmt.Errorf("pageops: rewriting %s: %w", s.name, err)
	}
	next := &Source{name: s.name}
	if err := next.load(data); err != nil {
		return err
	}
	if next.NumPages() != s.NumPages() {
		return fmt.Errorf("pageops: rewriting %s changed the page count from %d to %d", s.name, s.NumPages(), next.NumPages())
	}
	s.data, s.doc, s.sizes = next.data, next.doc, next.sizes
	return nil
}
