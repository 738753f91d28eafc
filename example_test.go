package pdfstamp_test

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/doctpl"
	"github.com/lvillar/pdfstamp/fetch"
)

// blankTemplate returns a one page Letter PDF to stamp onto.
func blankTemplate() []byte {
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Text(40, 40, "INVOICE")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

func ExampleEngine_RenderTemplate() {
	tpl := blankTemplate()
	engine := pdfstamp.New(pdfstamp.WithFetcher(fetch.FetcherFunc(func(context.Context, string) ([]byte, error) {
		return tpl, nil
	})))

	t, err := doctpl.Parse([]byte(`{
		"sourcePDFUrl": "https://example.com/invoice.pdf",
		"fileName": "invoice-1234.pdf",
		"nodes": [
			{"type": "text", "key": "customer", "position": {"x": 40, "y": 110}, "fontSize": 14},
			{"type": "date", "key": "issued", "position": {"x": 400, "y": 110}},
			{"type": "multi_text", "key": "lines", "position": {"x": 40, "y": 180}, "maxLines": 20}
		],
		"data": {
			"customer": "Acme Corp",
			"issued": {"$date": 1705276800000},
			"lines": "10 x Premium Widget\n5 x Deluxe Widget\n1 x Installation"
		}
	}`))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	res, err := engine.RenderTemplate(context.Background(), t)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("%s: %d pages, %d skipped\n", res.FileName, res.Pages, len(res.Skipped))
	// Output pattern: invoice-1234.pdf: 1 pages, 0 skipped
}
