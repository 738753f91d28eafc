package form

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp/doctpl"
	"github.com/lvillar/pdfstamp/pageops"
	"github.com/lvillar/pdfstamp/reader"
)

// Reasons a field value is skipped.
var (
	ErrNoField  = errors.New("form: no such text field")
	ErrNoWidget = errors.New("form: field has no widget")
)

// DefaultFont is the registry key values are drawn with when the field's
// appearance names no known font.
const DefaultFont = pageops.Courier

// Filler draws form values onto a document whose first page comes from an
// AcroForm PDF. It is created per fill and must not be shared.
type Filler struct {
	doc    *pageops.Document
	src    *pageops.Source
	fields map[string]*reader.FormField
	font   string
	log    *zap.Logger
	skips  []doctpl.Skip
}

// Option configures a Filler.
type Option func(*Filler)

// WithLogger sets the logger skipped fields are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(f *Filler) { f.log = l }
}

// WithFont sets the fallback font key.
func WithFont(key string) Option {
	return func(f *Filler) { f.font = key }
}

// NewFiller reads the form fields of the source behind doc's first page.
func NewFiller(doc *pageops.Document, opts ...Option) (*Filler, error) {
	first, err := doc.Page(0)
	if err != nil {
		return nil, fmt.Errorf("form: %w", err)
	}
	src, _ := first.Source()
	if src == nil {
		return nil, fmt.Errorf("form: first page has no source document")
	}
	fields, err := src.Reader().FormFields()
	if err != nil {
		return nil, fmt.Errorf("form: reading form fields: %w", err)
	}
	f := &Filler{
		doc:    doc,
		src:    src,
		fields: map[string]*reader.FormField{},
		font:   DefaultFont,
		log:    zap.NewNop(),
	}
	for _, field := range reader.Terminal(fields) {
		if _, dup := f.fields[field.FullName]; !dup {
			f.fields[field.FullName] = field
		}
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Skipped returns the values that could not be drawn so far.
func (f *Filler) Skipped() []doctpl.Skip { return append([]doctpl.Skip(nil), f.skips...) }

// Fields returns the names of the fillable fields.
func (f *Filler) Fields() []string {
	names := make([]string, 0, len(f.fields))
	for name := range f.fields {
		names = append(names, name)
	}
	return names
}

// placement is where a field's value goes.
type placement struct {
	page int
	rect reader.Rectangle
	look Appearance
}

// Fill draws every value, flattens the form, spreads the overflowing value
// over copies of the first page and appends the first page of appendix when
// cfg enables it. Only one value can overflow: when several do, the last
// one wins and the others are not drawn.
func (f *Filler) Fill(cfg *Config, appendix *pageops.Source) error {
	var (
		deferred *Value
		at       placement
	)
	for i := range cfg.Fields {
		v := &cfg.Fields[i]
		p, err := f.place(v.Field)
		if err != nil {
			f.skip(v.Field, p.page, err)
			continue
		}
		text := f.clean(v.Text, cfg.Display)
		if v.Object && v.MaxLines > 0 && len(splitLines(text)) > v.MaxLines {
			if deferred != nil {
				f.log.Warn("overflowing field replaced", zap.String("field", deferred.Field), zap.String("by", v.Field))
			}
			deferred, at = v, p
			continue
		}
		if err := f.draw(p, doctpl.Sanitize(text), p.rect.Height()-10, p.rect.Width()+10); err != nil {
			f.skip(v.Field, p.page, err)
		}
	}

	if err := f.src.Rewrite(Flatten); err != nil {
		return fmt.Errorf("form: flattening %s: %w", f.src.Name(), err)
	}

	if deferred != nil {
		if err := f.overflow(deferred, at, cfg.Display); err != nil {
			return err
		}
	}

	if cfg.Display.EnablePageAppend {
		if appendix == nil {
			return fmt.Errorf("form: page append enabled without a document")
		}
		p, err := f.doc.CopyPageFrom(appendix, 0)
		if err != nil {
			return fmt.Errorf("form: appending %s: %w", appendix.Name(), err)
		}
		f.doc.AddPage(p)
	}
	return nil
}

// overflow inserts copies of the first page and draws the value's lines
// MaxLines at a time, one window per page from the first.
func (f *Filler) overflow(v *Value, at placement, d doctpl.DisplayConfig) error {
	lines := splitLines(f.clean(v.Text, d))
	if err := doctpl.InsertClones(f.doc, 0, doctpl.PageCount(len(lines), v.MaxLines)); err != nil {
		return err
	}
	for k, window := range doctpl.Windows(lines, v.MaxLines) {
		p := at
		p.page = k
		if err := f.draw(p, doctpl.Sanitize(strings.Join(window, "\n")), at.rect.Height()-5, at.rect.Width()); err != nil {
			f.skip(v.Field, k, err)
		}
	}
	return nil
}

func (f *Filler) place(name string) (placement, error) {
	field, ok := f.fields[name]
	if !ok || field.Type != "Tx" {
		return placement{}, fmt.Errorf("%w: %q", ErrNoField, name)
	}
	for _, w := range field.Widgets {
		if w.Rect.IsZero() {
			continue
		}
		p := placement{rect: w.Rect, look: ParseAppearance(w.DA)}
		// Widgets not listed on any page land on the first one.
		if w.Page >= 1 && w.Page <= f.doc.NumPages() {
			p.page = w.Page - 1
		}
		return p, nil
	}
	return placement{}, fmt.Errorf("%w: %q", ErrNoWidget, name)
}

// draw writes text into the rectangle, top above its bottom edge.
func (f *Filler) draw(p placement, text string, top, maxWidth float64) error {
	page, err := f.doc.Page(p.page)
	if err != nil {
		return fmt.Errorf("%w: page %d", doctpl.ErrPageRange, p.page+1)
	}
	key := p.look.Font
	if key == "" {
		key = f.font
	}
	font, ok := f.doc.Fonts().Lookup(key)
	if !ok {
		f.log.Debug("unknown font, using default", zap.String("font", key))
	}
	page.DrawText(text, pageops.TextOptions{
		X:          p.rect.LLX + 1,
		Y:          p.rect.LLY + top,
		Size:       p.look.Size,
		LineHeight: p.look.Size + 1,
		MaxWidth:   maxWidth,
		Font:       font,
	})
	return nil
}

func (f *Filler) clean(text string, d doctpl.DisplayConfig) string {
	if d.TextUpperCase {
		text = strings.ToUpper(text)
	}
	return text
}

func (f *Filler) skip(field string, page int, err error) {
	f.skips = append(f.skips, doctpl.Skip{Node: "field", Key: field, Page: page, Err: err})
	f.log.Warn("skipping field",
		zap.String("field", field),
		zap.Int("page", page+1),
		zap.Error(err))
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
