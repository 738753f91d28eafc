package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/lvillar/pdfstamp/reader"
)

// RegisterResources adds the PDF inspection resources. Resources take the
// file as a query parameter, as in pdf://pages?path=/tmp/form.pdf.
func RegisterResources(s *Server) {
	s.AddResource(Resource{
		URI:         "pdf://text",
		Name:        "PDF Text Content",
		Description: "Text of every page of a local PDF: pdf://text?path=/path/to/file.pdf",
		MIMEType:    "text/plain",
		Handler:     handleTextResource,
	})
	s.AddResource(Resource{
		URI:         "pdf://pages",
		Name:        "PDF Page Info",
		Description: "Page count, sizes and metadata of a local PDF: pdf://pages?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler:     handlePagesResource,
	})
	s.AddResource(Resource{
		URI:         "pdf://form-fields",
		Name:        "PDF Form Fields",
		Description: "Form fields of a local PDF with their widgets: pdf://form-fields?path=/path/to/file.pdf",
		MIMEType:    "application/json",
		Handler:     handleFormFieldsResource,
	})
}

// resourceBase strips the query from a resource URI.
func resourceBase(uri string) string {
	base, _, _ := strings.Cut(uri, "?")
	return base
}

func openResource(uri string) (*reader.Document, error) {
	_, query, _ := strings.Cut(uri, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("parsing URI %q: %w", uri, err)
	}
	path := values.Get("path")
	if path == "" {
		return nil, fmt.Errorf("missing 'path' parameter in URI")
	}
	doc, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	return doc, nil
}

func handleTextResource(_ context.Context, uri string) ([]ResourceContent, error) {
	doc, err := openResource(uri)
	if err != nil {
		return nil, err
	}
	var result strings.Builder
	for n, page := range doc.Pages() {
		text, err := page.ExtractText()
		if err != nil {
			fmt.Fprintf(&result, "--- Page %d (error: %v) ---\n", n, err)
			continue
		}
		fmt.Fprintf(&result, "--- Page %d ---\n%s\n\n", n, text)
	}
	return []ResourceContent{{URI: uri, MIMEType: "text/plain", Text: result.String()}}, nil
}

func handlePagesResource(_ context.Context, uri string) ([]ResourceContent, error) {
	doc, err := openResource(uri)
	if err != nil {
		return nil, err
	}
	return jsonContent(uri, pdfInfo(doc))
}

func handleFormFieldsResource(_ context.Context, uri string) ([]ResourceContent, error) {
	doc, err := openResource(uri)
	if err != nil {
		return nil, err
	}
	fields, err := formFields(doc)
	if err != nil {
		return nil, err
	}
	return jsonContent(uri, fields)
}

func jsonContent(uri string, v any) ([]ResourceContent, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []ResourceContent{{URI: uri, MIMEType: "application/json", Text: string(data)}}, nil
}
