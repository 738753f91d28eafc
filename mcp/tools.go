package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/doctpl"
	"github.com/lvillar/pdfstamp/fetch"
	"github.com/lvillar/pdfstamp/form"
	"github.com/lvillar/pdfstamp/reader"
)

// RegisterTools adds the pdfstamp tools to the server. Renders go through
// engine; the inspection tools read local paths directly and URLs through f.
func RegisterTools(s *Server, engine *pdfstamp.Engine, f fetch.Fetcher) {
	s.AddTool(renderTemplateTool(engine))
	s.AddTool(fillFormTool(engine))
	s.AddTool(listFormFieldsTool(f))
	s.AddTool(pdfInfoTool(f))
}

var (
	configSchema = map[string]any{
		"type":        "object",
		"description": "The configuration object, as sent to the HTTP service under \"config\"",
	}
	outputSchema = map[string]any{
		"type":        "string",
		"description": "Optional file path to save the PDF. If omitted, the PDF is returned as base64.",
	}
	locationSchema = map[string]any{
		"path": map[string]any{"type": "string", "description": "Path to a local PDF file"},
		"url":  map[string]any{"type": "string", "description": "URL of a PDF, used when path is empty"},
	}
)

func renderTemplateTool(engine *pdfstamp.Engine) Tool {
	return Tool{
		Name: "render_template",
		Description: "Render a JSON page template onto its source PDF (sourcePDFUrl). Nodes place record values " +
			"(text, bar_code, date, image, multiple, multi_text, sub) at fixed positions; overflowing content is " +
			"continued on copies of the first page.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"config":     configSchema,
				"outputPath": outputSchema,
			},
			"required": []string{"config"},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			data, err := configArg(args)
			if err != nil {
				return ToolResult{}, err
			}
			tpl, err := doctpl.Parse(data)
			if err != nil {
				return ToolResult{}, err
			}
			res, err := engine.RenderTemplate(ctx, tpl)
			if err != nil {
				return ToolResult{}, err
			}
			return pdfResult(res, args)
		},
	}
}

func fillFormTool(engine *pdfstamp.Engine) Tool {
	return Tool{
		Name: "fill_form",
		Description: "Fill the text fields of an AcroForm PDF (sourcePDFUrl) and flatten it. Field values are strings " +
			"or {\"value\": ..., \"max_lines\": N} objects whose extra lines continue on copies of the first page.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"config":     configSchema,
				"outputPath": outputSchema,
			},
			"required": []string{"config"},
		},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			data, err := configArg(args)
			if err != nil {
				return ToolResult{}, err
			}
			cfg, err := form.Parse(data)
			if err != nil {
				return ToolResult{}, err
			}
			res, err := engine.FillForm(ctx, cfg)
			if err != nil {
				return ToolResult{}, err
			}
			return pdfResult(res, args)
		},
	}
}

func listFormFieldsTool(f fetch.Fetcher) Tool {
	return Tool{
		Name:        "list_form_fields",
		Description: "List the form fields of a PDF with their type, page, rectangle and default appearance.",
		InputSchema: map[string]any{"type": "object", "properties": locationSchema},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			doc, err := openPDF(ctx, f, args)
			if err != nil {
				return ToolResult{}, err
			}
			fields, err := formFields(doc)
			if err != nil {
				return ToolResult{}, err
			}
			out, err := json.MarshalIndent(fields, "", "  ")
			if err != nil {
				return ToolResult{}, err
			}
			return textResult("%s", out), nil
		},
	}
}

func pdfInfoTool(f fetch.Fetcher) Tool {
	return Tool{
		Name:        "pdf_info",
		Description: "Get the page count, page sizes, metadata and form field count of a PDF.",
		InputSchema: map[string]any{"type": "object", "properties": locationSchema},
		Handler: func(ctx context.Context, args map[string]any) (ToolResult, error) {
			doc, err := openPDF(ctx, f, args)
			if err != nil {
				return ToolResult{}, err
			}
			out, err := json.MarshalIndent(pdfInfo(doc), "", "  ")
			if err != nil {
				return ToolResult{}, err
			}
			return textResult("%s", out), nil
		},
	}
}

func configArg(args map[string]any) ([]byte, error) {
	cfg, ok := args["config"]
	if !ok {
		return nil, fmt.Errorf("missing 'config' argument")
	}
	if s, ok := cfg.(string); ok {
		return []byte(s), nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

func pdfResult(res *pdfstamp.Result, args map[string]any) (ToolResult, error) {
	var summary strings.Builder
	fmt.Fprintf(&summary, "%s: %d pages, %d bytes", res.FileName, res.Pages, len(res.PDF))
	if len(res.Skipped) > 0 {
		fmt.Fprintf(&summary, "\nSkipped %d elements:", len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(&summary, "\n  - %s", s)
		}
	}

	if outputPath, ok := args["outputPath"].(string); ok && outputPath != "" {
		if err := os.WriteFile(outputPath, res.PDF, 0o644); err != nil {
			return ToolResult{}, fmt.Errorf("writing file: %w", err)
		}
		return textResult("PDF written to %s\n%s", outputPath, summary.String()), nil
	}
	return ToolResult{Content: []ContentBlock{
		{Type: "text", Text: summary.String()},
		{Type: "resource", MIMEType: "application/pdf", Data: base64.StdEncoding.EncodeToString(res.PDF)},
	}}, nil
}

func openPDF(ctx context.Context, f fetch.Fetcher, args map[string]any) (*reader.Document, error) {
	if path, _ := args["path"].(string); path != "" {
		doc, err := reader.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening PDF: %w", err)
		}
		return doc, nil
	}
	url, _ := args["url"].(string)
	if url == "" {
		return nil, errors.New("missing 'path' or 'url' argument")
	}
	data, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := reader.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing PDF: %w", err)
	}
	return doc, nil
}

type fieldInfo struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Value    string     `json:"value,omitempty"`
	ReadOnly bool       `json:"readOnly,omitempty"`
	Widgets  []widgetIn `json:"widgets"`
}

type widgetIn struct {
	Page     int        `json:"page"`
	Rect     [4]float64 `json:"rect"`
	DA       string     `json:"da,omitempty"`
	Font     string     `json:"font,omitempty"`
	FontSize float64    `json:"fontSize"`
}

func formFields(doc *reader.Document) ([]fieldInfo, error) {
	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("reading form fields: %w", err)
	}
	out := []fieldInfo{}
	for _, f := range reader.Terminal(fields) {
		info := fieldInfo{Name: f.FullName, Type: f.Type, Value: f.Value, ReadOnly: f.IsReadOnly(), Widgets: []widgetIn{}}
		for _, w := range f.Widgets {
			look := form.ParseAppearance(w.DA)
			info.Widgets = append(info.Widgets, widgetIn{
				Page:     w.Page,
				Rect:     [4]float64{w.Rect.LLX, w.Rect.LLY, w.Rect.URX, w.Rect.URY},
				DA:       w.DA,
				Font:     look.Font,
				FontSize: look.Size,
			})
		}
		out = append(out, info)
	}
	return out, nil
}

type pageInfo struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rotate int     `json:"rotate,omitempty"`
}

type docInfo struct {
	Pages      int               `json:"pages"`
	PageSizes  []pageInfo        `json:"pageSizes"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	FormFields int               `json:"formFields"`
}

func pdfInfo(doc *reader.Document) docInfo {
	info := docInfo{Pages: doc.NumPages(), Metadata: doc.Metadata()}
	for n, p := range doc.Pages() {
		w, h := p.Size()
		info.PageSizes = append(info.PageSizes, pageInfo{Number: n, Width: w, Height: h, Rotate: p.Rotate})
	}
	if fields, err := doc.FormFields(); err == nil {
		info.FormFields = len(reader.Terminal(fields))
	}
	return info
}
