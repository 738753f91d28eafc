package doctpl

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp/pageops"
)

const (
	defaultFontSize   = 10
	defaultLineHeight = 10
)

// ImageLoader returns the decoded image behind url. Errors should wrap
// ErrImageFetch or ErrImageFormat.
type ImageLoader func(url string) (*pageops.Image, error)

func noImages(url string) (*pageops.Image, error) {
	return nil, fmt.Errorf("%w: %s: no image loader", ErrImageFetch, url)
}

// Renderer draws template nodes onto one document. It is created per render
// and must not be shared.
type Renderer struct {
	doc    *pageops.Document
	fonts  *pageops.FontRegistry
	height float64
	images ImageLoader
	log    *zap.Logger
	skips  []Skip
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger skips and font fallbacks are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithImages sets the loader used for image nodes.
func WithImages(load ImageLoader) Option {
	return func(r *Renderer) { r.images = load }
}

// NewRenderer returns a renderer for doc. The height of the first page is
// used for every page.
func NewRenderer(doc *pageops.Document, opts ...Option) (*Renderer, error) {
	first, err := doc.Page(0)
	if err != nil {
		return nil, fmt.Errorf("doctpl: %w", err)
	}
	_, h := first.Size()
	r := &Renderer{
		doc:    doc,
		fonts:  doc.Fonts(),
		height: h,
		images: noImages,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Skipped returns the nodes that could not be drawn so far.
func (r *Renderer) Skipped() []Skip { return append([]Skip(nil), r.skips...) }

// walk is the state of one pass over a node list.
type walk struct {
	pageNo   int
	pad      Padding
	override *Color
	paginate bool
}

func (r *Renderer) skip(n Node, pageNo int, err error) {
	kind := "copy"
	key := ""
	if n != nil {
		kind, key = n.Kind(), n.style().Key
	}
	r.skips = append(r.skips, Skip{Node: kind, Key: key, Page: pageNo, Err: err})
	r.log.Warn("skipping node",
		zap.String("node", kind),
		zap.String("key", key),
		zap.Int("page", pageNo+1),
		zap.Error(err))
}

func (r *Renderer) page(pageNo int) (*pageops.Page, error) {
	p, err := r.doc.Page(pageNo)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageRange, pageNo+1, r.doc.NumPages())
	}
	return p, nil
}

// walkNodes draws nodes for rec in declaration order.
func (r *Renderer) walkNodes(nodes []Node, rec Record, w walk) {
	for _, n := range nodes {
		if err := r.renderNode(n, rec, w); err != nil {
			r.skip(n, w.pageNo, err)
		}
	}
}

func (r *Renderer) renderNode(n Node, rec Record, w walk) error {
	s := n.style()
	v, ok := rec[s.Key]
	if s.Key == "" || !ok {
		if s.Literal == "" {
			return ErrMissingValue
		}
		return r.drawText(s, s.Literal, s.Position, w, r.color(s, w.override))
	}

	switch n := n.(type) {
	case *TextNode:
		text, err := textValue(v)
		if err != nil {
			return err
		}
		return r.drawText(s, text, s.Position, w, r.color(s, w.override))
	case *BarcodeNode:
		return r.barcode(n, v, w)
	case *DateNode:
		t, err := dateValue(v)
		if err != nil {
			return err
		}
		layout := n.Layout
		if layout == "" {
			layout = DefaultDateLayout
		}
		return r.drawText(s, t.Format(layout), s.Position, w, nil)
	case *ImageNode:
		return r.image(n, v, w)
	case *MultipleNode:
		if !truthy(v) {
			return nil
		}
		text, err := textValue(v)
		if err != nil {
			return err
		}
		color := r.color(s, w.override)
		for _, pos := range n.Positions {
			if err := r.drawText(s, text, pos, w, color); err != nil {
				return err
			}
		}
		return nil
	case *MultiTextNode:
		return r.multiText(n, v, w)
	case *SubNode:
		return r.sub(n, v, w)
	}
	return fmt.Errorf("doctpl: unhandled node kind %s", n.Kind())
}

// color resolves the text color: the pass override, then the node's
// override color, then its color. Nil means black.
func (r *Renderer) color(s *Style, override *Color) *pageops.RGBColor {
	for _, c := range []*Color{override, s.OverrideColor, s.Color} {
		if c != nil {
			rgb := c.RGB()
			return &rgb
		}
	}
	return nil
}

func (r *Renderer) font(s *Style) pageops.Font {
	f, ok := r.fonts.Lookup(s.FontFamily)
	if !ok && s.FontFamily != "" {
		r.log.Debug("unknown font family, using default", zap.String("font", s.FontFamily), zap.String("key", s.Key))
	}
	return f
}

func (r *Renderer) textOptions(s *Style, x, y float64, color *pageops.RGBColor) pageops.TextOptions {
	o := pageops.TextOptions{
		X:          x,
		Y:          y,
		Size:       s.FontSize,
		LineHeight: s.LineHeight,
		MaxWidth:   s.Width,
		Font:       r.font(s),
		Color:      color,
	}
	if o.Size <= 0 {
		o.Size = defaultFontSize
	}
	if o.LineHeight <= 0 {
		o.LineHeight = defaultLineHeight
	}
	return o
}

// drawText draws sanitized text at pos, shifted by the pass padding.
func (r *Renderer) drawText(s *Style, text string, pos Point, w walk, color *pageops.RGBColor) error {
	p, err := r.page(w.pageNo)
	if err != nil {
		return err
	}
	x := pos.X + w.pad.X
	y := r.height - pos.Y - w.pad.Y
	p.DrawText(Sanitize(text), r.textOptions(s, x, y, color))
	return nil
}

func (r *Renderer) barcode(n *BarcodeNode, v any, w walk) error {
	text, err := textValue(v)
	if err != nil {
		return err
	}
	if n.Symbology == "" {
		return r.drawText(&n.Style, text, n.Position, w, nil)
	}
	p, err := r.page(w.pageNo)
	if err != nil {
		return err
	}
	b := pageops.Barcode{Symbology: n.Symbology, Content: strings.TrimSpace(text)}
	err = p.DrawBarcode(b, pageops.ImageOptions{
		X: n.Position.X + w.pad.X,
		Y: r.height - n.Position.Y - w.pad.Y,
		W: n.Width,
		H: n.Height,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBarcode, err)
	}
	return nil
}

func (r *Renderer) image(n *ImageNode, v any, w walk) error {
	url, ok := v.(string)
	if !ok || strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: image value must be a URL", ErrBadValue)
	}
	p, err := r.page(w.pageNo)
	if err != nil {
		return err
	}
	img, err := r.images(url)
	if err != nil {
		return err
	}
	p.DrawImage(img, pageops.ImageOptions{
		X: n.Position.X + w.pad.X,
		Y: r.height - n.Position.Y - w.pad.Y,
		W: n.Width,
		H: n.Height,
	})
	return nil
}

// multiText spreads the value's lines MaxLines at a time over the current
// page and the pages after it, cloning the first page when paginating.
func (r *Renderer) multiText(n *MultiTextNode, v any, w walk) error {
	text, err := textValue(v)
	if err != nil {
		return err
	}
	lines := splitLines(text)
	if w.paginate {
		if err := InsertClones(r.doc, w.pageNo, PageCount(len(lines), n.MaxLines)); err != nil {
			return err
		}
	}
	at := walk{pageNo: w.pageNo}
	for k, window := range Windows(lines, n.MaxLines) {
		at.pageNo = w.pageNo + k
		if err := r.drawText(&n.Style, strings.Join(window, "\n"), n.Position, at, nil); err != nil {
			return err
		}
	}
	return nil
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// sub renders each nested record against the nested nodes, MaxPerPage
// records to a page, offset by the slot padding.
func (r *Renderer) sub(n *SubNode, v any, w walk) error {
	recs, err := records(v)
	if err != nil {
		return err
	}
	if w.paginate {
		if err := InsertClones(r.doc, w.pageNo, PageCount(len(recs), n.MaxPerPage)); err != nil {
			return err
		}
	}
	for j, rec := range recs {
		slot := SlotOf(j, n.MaxPerPage)
		nested := walk{
			pageNo:   w.pageNo + slot.Page,
			pad:      slot.Offset(n.Pad),
			override: w.override,
			paginate: w.paginate,
		}
		if nested.pageNo >= r.doc.NumPages() {
			r.skip(n, nested.pageNo, fmt.Errorf("%w: record %d", ErrPageRange, j))
			continue
		}
		r.walkNodes(n.Nodes, rec, nested)
	}
	return nil
}
