package reader

import (
	"fmt"
)

// FormField is a terminal or intermediate field of the interactive form.
type FormField struct {
	Name     string // partial name (/T)
	FullName string // dotted fully qualified name
	Type     string // Tx, Btn, Ch or Sig, inherited from ancestors
	Value    string
	Flags    int
	DA       string // default appearance, inherited from ancestors and /AcroForm
	Ref      Reference
	Widgets  []Widget
	Kids     []*FormField
}

// Widget is one visual instance of a field.
type Widget struct {
	Ref  Reference
	Rect Rectangle
	Page int    // 1-based, 0 when the widget is not listed in any page's /Annots
	DA   string // the widget's own /DA or the field's inherited one
}

// IsReadOnly reports the ReadOnly field flag.
func (f *FormField) IsReadOnly() bool { return f.Flags&1 != 0 }

// IsRequired reports the Required field flag.
func (f *FormField) IsRequired() bool { return f.Flags&2 != 0 }

// FormFields returns the top-level fields of the AcroForm. A document
// without a form yields an empty slice.
func (d *Document) FormFields() ([]*FormField, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	acro := d.resolveDict(catalog["AcroForm"])
	if acro == nil {
		return []*FormField{}, nil
	}
	pageOf := d.annotationPages()
	inherited := fieldAttrs{da: acro.Text("DA")}
	fields := []*FormField{}
	for _, item := range d.resolveArray(acro["Fields"]) {
		f, err := d.formField(item, "", inherited, pageOf, map[int]bool{})
		if err != nil {
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FormField returns the field with the given fully qualified name, or nil.
func (d *Document) FormField(name string) (*FormField, error) {
	fields, err := d.FormFields()
	if err != nil {
		return nil, err
	}
	for _, f := range Terminal(fields) {
		if f.FullName == name {
			return f, nil
		}
	}
	return nil, nil
}

// Terminal flattens a field tree into the fields that carry values.
func Terminal(fields []*FormField) []*FormField {
	var out []*FormField
	for _, f := range fields {
		if len(f.Kids) == 0 {
			out = append(out, f)
			continue
		}
		out = append(out, Terminal(f.Kids)...)
	}
	return out
}

type fieldAttrs struct {
	ft    string
	da    string
	flags int
	value string
}

func (d *Document) annotationPages() map[int]int {
	pageOf := map[int]int{}
	for _, p := range d.pages {
		for _, ref := range p.Annotations() {
			pageOf[ref.Number] = p.Number
		}
	}
	return pageOf
}

func (d *Document) pageByRef(o Object) int {
	ref, ok := o.(Reference)
	if !ok {
		return 0
	}
	for _, p := range d.pages {
		if p.Ref.Number == ref.Number {
			return p.Number
		}
	}
	return 0
}

func (d *Document) formField(o Object, parent string, in fieldAttrs, pageOf map[int]int, seen map[int]bool) (*FormField, error) {
	ref, _ := o.(Reference)
	if ref.Number != 0 {
		if seen[ref.Number] {
			return nil, fmt.Errorf("reader: field cycle at object %d", ref.Number)
		}
		seen[ref.Number] = true
	}
	dict := d.resolveDict(o)
	if dict == nil {
		return nil, fmt.Errorf("reader: field is not a dictionary")
	}

	attrs := in
	if ft := dict.Name("FT"); ft != "" {
		attrs.ft = string(ft)
	}
	if da := dict.Text("DA"); da != "" {
		attrs.da = da
	}
	if ff, ok := dict.Int("Ff"); ok {
		attrs.flags = int(ff)
	}
	if v, ok := dict["V"]; ok {
		if rv, err := d.Resolve(v); err == nil {
			attrs.value = valueString(rv)
		}
	}

	f := &FormField{
		Name:  dict.Text("T"),
		Type:  attrs.ft,
		Value: attrs.value,
		Flags: attrs.flags,
		DA:    attrs.da,
		Ref:   ref,
	}
	switch {
	case parent != "" && f.Name != "":
		f.FullName = parent + "." + f.Name
	case f.Name != "":
		f.FullName = f.Name
	default:
		f.FullName = parent
	}

	if dict.Name("Subtype") == "Widget" || dict["Rect"] != nil && dict["Kids"] == nil {
		f.Widgets = append(f.Widgets, d.widget(ref, dict, attrs.da, pageOf))
	}
	for _, kid := range d.resolveArray(dict["Kids"]) {
		kd := d.resolveDict(kid)
		if kd == nil {
			continue
		}
		if _, named := kd["T"]; !named {
			kref, _ := kid.(Reference)
			da := attrs.da
			if own := kd.Text("DA"); own != "" {
				da = own
			}
			f.Widgets = append(f.Widgets, d.widget(kref, kd, da, pageOf))
			continue
		}
		child, err := d.formField(kid, f.FullName, attrs, pageOf, seen)
		if err != nil {
			continue
		}
		f.Kids = append(f.Kids, child)
	}
	return f, nil
}

func (d *Document) widget(ref Reference, dict Dict, da string, pageOf map[int]int) Widget {
	w := Widget{Ref: ref, DA: da}
	if v, err := d.Resolve(dict["Rect"]); err == nil {
		w.Rect, _ = rectangleOf(v)
	}
	if ref.Number != 0 {
		w.Page = pageOf[ref.Number]
	}
	if w.Page == 0 {
		w.Page = d.pageByRef(dict["P"])
	}
	return w
}
