package reader

import (
	"fmt"
)

// Page is one leaf of the page tree with its inherited attributes applied.
type Page struct {
	Number   int
	Ref      Reference
	MediaBox Rectangle
	CropBox  Rectangle
	Rotate   int

	dict      Dict
	resources Dict
	doc       *Document
}

// Size returns the MediaBox dimensions, defaulting to US Letter.
func (p *Page) Size() (w, h float64) {
	if p.MediaBox.IsZero() {
		return 612, 792
	}
	return p.MediaBox.Width(), p.MediaBox.Height()
}

// Annotations returns the references listed in the page's /Annots array.
func (p *Page) Annotations() []Reference {
	var refs []Reference
	for _, a := range p.doc.resolveArray(p.dict["Annots"]) {
		if ref, ok := a.(Reference); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Contents returns the decoded content streams joined by newlines.
func (p *Page) Contents() ([]byte, error) {
	v, err := p.doc.Resolve(p.dict["Contents"])
	if err != nil {
		return nil, fmt.Errorf("reader: page %d contents: %w", p.Number, err)
	}
	var streams []Stream
	switch c := v.(type) {
	case Stream:
		streams = append(streams, c)
	case Array:
		for _, item := range c {
			if rv, err := p.doc.Resolve(item); err == nil {
				if s, ok := rv.(Stream); ok {
					streams = append(streams, s)
				}
			}
		}
	}
	var out []byte
	for _, s := range streams {
		data, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("reader: page %d contents: %w", p.Number, err)
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out, nil
}

var inheritable = []Name{"MediaBox", "CropBox", "Rotate", "Resources"}

func (d *Document) loadPages() error {
	catalog, err := d.Catalog()
	if err != nil {
		return err
	}
	root := catalog["Pages"]
	if d.resolveDict(root) == nil {
		return fmt.Errorf("reader: missing page tree")
	}
	d.pages = nil
	return d.walkPages(root, Dict{}, map[int]bool{})
}

func (d *Document) walkPages(node Object, inherited Dict, seen map[int]bool) error {
	var ref Reference
	if r, ok := node.(Reference); ok {
		if seen[r.Number] {
			return fmt.Errorf("reader: page tree cycle at object %d", r.Number)
		}
		seen[r.Number] = true
		ref = r
	}
	dict := d.resolveDict(node)
	if dict == nil {
		return nil
	}
	attrs := Dict{}
	for k, v := range inherited {
		attrs[k] = v
	}
	for _, k := range inheritable {
		if v, ok := dict[k]; ok {
			attrs[k] = v
		}
	}

	kids := d.resolveArray(dict["Kids"])
	if dict.Name("Type") == "Pages" || (dict.Name("Type") == "" && kids != nil) {
		for _, kid := range kids {
			if err := d.walkPages(kid, attrs, seen); err != nil {
				return err
			}
		}
		return nil
	}

	p := &Page{Number: len(d.pages) + 1, Ref: ref, dict: dict, doc: d}
	if v, err := d.Resolve(attrs["MediaBox"]); err == nil {
		p.MediaBox, _ = rectangleOf(v)
	}
	if v, err := d.Resolve(attrs["CropBox"]); err == nil {
		p.CropBox, _ = rectangleOf(v)
	}
	p.resources = d.resolveDict(attrs["Resources"])
	if v, err := d.Resolve(attrs["Rotate"]); err == nil {
		if n, ok := intOf(v); ok {
			p.Rotate = int(n)
		}
	}
	d.pages = append(d.pages, p)
	return nil
}
