package reader

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lvillar/pdfstamp/internal/pdftest"
)

func TestFormFieldsFlat(t *testing.T) {
	data := pdftest.Form{Pages: 2, Fields: []pdftest.Field{
		{Name: "name", X: 40, Y: 700, W: 200, H: 18, DA: "/Helv 12 Tf 0 g", Value: "Ann"},
		{Name: "notes", Page: 1, X: 40, Y: 300, W: 300, H: 100},
	}}.Bytes()
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}
	fields, err := doc.FormFields()
	if err != nil {
		t.Fatalf("FormFields: %v", err)
	}

	type summary struct {
		FullName, Type, Value, DA string
		Widgets                   []Widget
	}
	var got []summary
	for _, f := range fields {
		ws := make([]Widget, len(f.Widgets))
		for i, w := range f.Widgets {
			ws[i] = Widget{Rect: w.Rect, Page: w.Page, DA: w.DA}
		}
		got = append(got, summary{f.FullName, f.Type, f.Value, f.DA, ws})
	}
	want := []summary{
		{"name", "Tx", "Ann", "/Helv 12 Tf 0 g", []Widget{{Rect: Rectangle{40, 700, 240, 718}, Page: 1, DA: "/Helv 12 Tf 0 g"}}},
		{"notes", "Tx", "", "/Helv 0 Tf 0 g", []Widget{{Rect: Rectangle{40, 300, 340, 400}, Page: 2, DA: "/Helv 0 Tf 0 g"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	f, err := doc.FormField("notes")
	if err != nil || f == nil || f.Widgets[0].Page != 2 {
		t.Errorf("FormField(notes) = %+v, %v", f, err)
	}
	if f, _ := doc.FormField("missing"); f != nil {
		t.Errorf("FormField(missing) = %+v", f)
	}
}

func TestFormFieldTree(t *testing.T) {
	fx := newFixture()
	fx.obj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [5 0 R 8 0 R] /DA (/Helv 0 Tf 0 g) >> >>")
	fx.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>")
	fx.obj(3, "<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Annots [6 0 R 7 0 R] >>")
	fx.stream(4, "", "BT (Tree) Tj ET")
	fx.obj(5, "<< /T (addr) /FT /Tx /Ff 1 /Kids [6 0 R 7 0 R] >>")
	fx.obj(6, "<< /T (street) /Parent 5 0 R /Subtype /Widget /Rect [110 30 10 10] /V (Main St) /DA (/Cour 9 Tf 0 g) >>")
	fx.obj(7, "<< /T (city) /Parent 5 0 R /Subtype /Widget /Rect [10 40 110 60] /V 42 >>")
	fx.obj(8, "<< /T (ok) /FT /Btn /V /Yes /Kids [9 0 R] >>")
	fx.obj(9, "<< /Subtype /Widget /Parent 8 0 R /Rect [0 0 10 10] /P 3 0 R >>")
	doc, err := Parse(fx.classic(10, ""))
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}

	fields, err := doc.FormFields()
	if err != nil {
		t.Fatalf("FormFields: %v", err)
	}
	if len(fields) != 2 || len(fields[0].Kids) != 2 {
		t.Fatalf("top-level fields = %+v", fields)
	}

	terminal := Terminal(fields)
	type summary struct {
		FullName, Type, Value, DA string
		ReadOnly                  bool
		Pages                     []int
		Rects                     []Rectangle
	}
	var got []summary
	for _, f := range terminal {
		s := summary{FullName: f.FullName, Type: f.Type, Value: f.Value, DA: f.DA, ReadOnly: f.IsReadOnly()}
		for _, w := range f.Widgets {
			s.Pages = append(s.Pages, w.Page)
			s.Rects = append(s.Rects, w.Rect)
		}
		got = append(got, s)
	}
	want := []summary{
		{"addr.street", "Tx", "Main St", "/Cour 9 Tf 0 g", true, []int{1}, []Rectangle{{10, 10, 110, 30}}},
		{"addr.city", "Tx", "42", "/Helv 0 Tf 0 g", true, []int{1}, []Rectangle{{10, 40, 110, 60}}},
		{"ok", "Btn", "Yes", "/Helv 0 Tf 0 g", false, []int{1}, []Rectangle{{0, 0, 10, 10}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("terminal fields mismatch (-want +got):\n%s", diff)
	}
	if terminal[0].Ref != (Reference{Number: 6}) || terminal[2].Widgets[0].Ref != (Reference{Number: 9}) {
		t.Errorf("refs = %v, %v", terminal[0].Ref, terminal[2].Widgets[0].Ref)
	}
}

func TestFormFieldsWithoutForm(t *testing.T) {
	fx := newFixture()
	fx.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	fx.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	fx.obj(3, "<< /Type /Page /Parent 2 0 R >>")
	doc, err := Parse(fx.classic(4, ""))
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}
	fields, err := doc.FormFields()
	if err != nil || fields == nil || len(fields) != 0 {
		t.Errorf("FormFields = %v, %v; want an empty slice", fields, err)
	}
	// No MediaBox anywhere: US Letter.
	p, _ := doc.Page(1)
	if w, h := p.Size(); w != 612 || h != 792 {
		t.Errorf("size = %v x %v", w, h)
	}
}

func TestFieldCycle(t *testing.T) {
	fx := newFixture()
	fx.obj(1, "<< /Type /Catalog /Pages 2 0 R /AcroForm << /Fields [4 0 R] >> >>")
	fx.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	fx.obj(3, "<< /Type /Page /Parent 2 0 R >>")
	fx.obj(4, "<< /T (a) /FT /Tx /Kids [5 0 R] >>")
	fx.obj(5, "<< /T (b) /Kids [4 0 R] >>")
	doc, err := Parse(fx.classic(6, ""))
	if err != nil {
		t.Fatalf("reading PDF: %v", err)
	}
	fields, err := doc.FormFields()
	if err != nil {
		t.Fatalf("FormFields: %v", err)
	}
	if got := Terminal(fields); len(got) != 1 || got[0].FullName != "a.b" {
		t.Errorf("terminal = %+v", got)
	}
}
