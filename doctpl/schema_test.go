package doctpl

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lvillar/pdfstamp/pageops"
)

const invoiceTemplate = `{
	"sourcePDFUrl": "https://example.com/invoice.pdf",
	"fileName": "invoice.pdf",
	"nodes": [
		{"type": "text", "key": "name", "position": {"x": 40, "y": 60}, "fontSize": 12, "fontFamily": "timesRoman", "color": {"r": 0, "g": 0, "b": 1}},
		{"type": "bar_code", "key": "code", "position": {"x": 40, "y": 90}, "width": 120, "symbology": "code128"},
		{"type": "date", "key": "issued", "position": {"x": 400, "y": 60}},
		{"type": "image", "key": "logo", "position": {"x": 20, "y": 120}, "width": 80, "height": 40},
		{"type": "multiple", "key": "ref", "positions": [{"x": 10, "y": 10}, {"x": 10, "y": 780}]},
		{"type": "multi_text", "key": "notes", "position": {"x": 40, "y": 500}, "maxLines": 3},
		{"type": "sub", "key": "items", "maxPerPage": 2, "position": {"pad_x": 0, "pad_y": 18},
		 "nodes": [{"type": "text", "key": "sku", "position": {"x": 40, "y": 200}}]},
		{"value": "Thank you", "position": {"x": 40, "y": 760}}
	],
	"data": {"name": "Alice", "id": 12345678901234567890},
	"otherConfigs": {
		"enableDuplicate": true,
		"copies": [
			{"copyName": "original", "nodes": [{"value": "ORIGINAL", "position": {"x": 500, "y": 20}}]},
			{"copyName": "duplicate", "nodes": [{"value": "DUPLICATE", "position": {"x": 500, "y": 20}}]}
		],
		"enableContentDuplicationInPages": true,
		"pages": [{"pageNo": 2, "textColor": {"r": 255, "g": 0, "b": 0}}]
	}
}`

func TestParseTemplate(t *testing.T) {
	tpl, err := Parse([]byte(invoiceTemplate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tpl.SourcePDFURL != "https://example.com/invoice.pdf" || tpl.FileName != "invoice.pdf" {
		t.Errorf("urls: %q %q", tpl.SourcePDFURL, tpl.FileName)
	}
	if tpl.DisplayCopy != DisplayAll {
		t.Errorf("DisplayCopy = %q, want default %q", tpl.DisplayCopy, DisplayAll)
	}
	if got := tpl.Data["id"]; got != json.Number("12345678901234567890") {
		t.Errorf("numbers must stay exact, got %#v", got)
	}

	var kinds []string
	for _, n := range tpl.Nodes {
		kinds = append(kinds, n.Kind())
	}
	want := []string{"text", "bar_code", "date", "image", "multiple", "multi_text", "sub", "text"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("node kinds (-want +got):\n%s", diff)
	}

	bc := tpl.Nodes[1].(*BarcodeNode)
	if bc.Symbology != pageops.Code128 || bc.Height != 40 {
		t.Errorf("barcode = %+v", bc)
	}
	sub := tpl.Nodes[6].(*SubNode)
	if sub.MaxPerPage != 2 || sub.Pad != (Padding{Y: 18}) || len(sub.Nodes) != 1 {
		t.Errorf("sub = %+v", sub)
	}
	if lit := tpl.Nodes[7].style().Literal; lit != "Thank you" {
		t.Errorf("literal = %q", lit)
	}

	d := tpl.Display
	if !d.EnableDuplicate || len(d.Copies) != 2 || d.Copies[1].Name != "duplicate" {
		t.Errorf("copies = %+v", d.Copies)
	}
	if diff := cmp.Diff([]PageColor{{PageNo: 2, TextColor: &Color{R: 255}}}, d.Pages); diff != "" {
		t.Errorf("pages (-want +got):\n%s", diff)
	}
}

func TestParseTemplateErrors(t *testing.T) {
	tests := map[string]string{
		"not json":        `{`,
		"no source":       `{"nodes": []}`,
		"unknown type":    `{"sourcePDFUrl": "u", "nodes": [{"type": "table", "key": "k"}]}`,
		"no key":          `{"sourcePDFUrl": "u", "nodes": [{"type": "text"}]}`,
		"no positions":    `{"sourcePDFUrl": "u", "nodes": [{"type": "multiple", "key": "k"}]}`,
		"sub no nodes":    `{"sourcePDFUrl": "u", "nodes": [{"type": "sub", "key": "k"}]}`,
		"nested invalid":  `{"sourcePDFUrl": "u", "nodes": [{"type": "sub", "key": "k", "nodes": [{"type": "x", "key": "y"}]}]}`,
		"bad symbology":   `{"sourcePDFUrl": "u", "nodes": [{"type": "bar_code", "key": "k", "width": 10, "symbology": "aztec"}]}`,
		"barcode width":   `{"sourcePDFUrl": "u", "nodes": [{"type": "bar_code", "key": "k", "symbology": "qr"}]}`,
		"append no url":   `{"sourcePDFUrl": "u", "otherConfigs": {"enablePageAppend": true}}`,
		"empty copy node": `{"sourcePDFUrl": "u", "otherConfigs": {"copies": [{"nodes": [{"position": {"x": 1}}]}]}}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(in)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLiteralValue(t *testing.T) {
	tests := map[string]string{
		`"hi"`: "hi", `42`: "42", `true`: "true", `""`: "", `0`: "", `false`: "", `null`: "",
	}
	for in, want := range tests {
		got, err := literalValue(json.RawMessage(in))
		if err != nil || got != want {
			t.Errorf("literalValue(%s) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := literalValue(json.RawMessage(`{"a": 1}`)); err == nil {
		t.Error("expected error for object literal")
	}
}

func TestColorRGB(t *testing.T) {
	tests := []struct {
		in   Color
		want pageops.RGBColor
	}{
		{Color{}, pageops.RGBColor{}},
		{Color{R: 1, G: 0.5, B: 0}, pageops.RGBColor{R: 255, G: 128, B: 0}},
		{Color{R: 255, G: 1, B: 0}, pageops.RGBColor{R: 255, G: 1, B: 0}},
		{Color{R: 300, G: -4, B: 0}, pageops.RGBColor{R: 255, G: 0, B: 0}},
	}
	for _, tt := range tests {
		if got := tt.in.RGB(); got != tt.want {
			t.Errorf("%+v.RGB() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestDecodeDisplay(t *testing.T) {
	d, err := DecodeDisplay(json.RawMessage(`{"textUpperCase": true, "enablePageAppend": true, "appendPageURL": "https://x/a.pdf"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !d.TextUpperCase || !d.EnablePageAppend || d.AppendPageURL != "https://x/a.pdf" {
		t.Errorf("display = %+v", d)
	}
	if d, err := DecodeDisplay(nil); err != nil || d.EnablePageAppend {
		t.Errorf("empty display = %+v, %v", d, err)
	}
}
