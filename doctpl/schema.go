// Package doctpl renders JSON page templates onto existing PDF pages.
//
// A template names a source PDF, a list of nodes and a data record. Each node
// binds a record key to a position on the page; container nodes repeat their
// content across cloned pages when it does not fit:
//
//	{
//	  "sourcePDFUrl": "https://example.com/invoice.pdf",
//	  "fileName": "invoice.pdf",
//	  "nodes": [
//	    {"type": "text", "key": "name", "position": {"x": 40, "y": 60}, "fontSize": 12},
//	    {"type": "multi_text", "key": "notes", "position": {"x": 40, "y": 400}, "maxLines": 20},
//	    {"type": "sub", "key": "items", "maxPerPage": 10,
//	     "position": {"pad_x": 0, "pad_y": 18},
//	     "nodes": [{"type": "text", "key": "sku", "position": {"x": 40, "y": 120}}]}
//	  ],
//	  "data": {"name": "Alice", "notes": "...", "items": [{"sku": "A-1"}]},
//	  "otherConfigs": {"enableDuplicate": true, "copies": [...]},
//	  "displayCopy": "all"
//	}
//
// Node y coordinates are measured from the top of the page.
package doctpl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lvillar/pdfstamp/pageops"
)

// ErrInvalidConfig reports a template that cannot be rendered.
var ErrInvalidConfig = errors.New("doctpl: invalid template")

// DisplayAll duplicates every page once per copy.
const DisplayAll = "all"

// Template is a parsed template configuration.
type Template struct {
	SourcePDFURL string
	FileName     string
	Nodes        []Node
	Data         Record
	Display      DisplayConfig
	DisplayCopy  string // DisplayAll or a copy name
}

// Record maps data keys to decoded JSON values. Numbers are json.Number.
type Record map[string]any

// DisplayConfig holds the optional post-processing switches.
type DisplayConfig struct {
	EnablePageAppend bool
	AppendPageURL    string

	EnableDuplicate bool
	Copies          []Copy

	EnableContentDuplication bool
	Pages                    []PageColor

	// TextUpperCase upper-cases form field values.
	TextUpperCase bool
}

// Copy is a named overlay of literal nodes drawn on duplicated pages.
type Copy struct {
	Name  string
	Nodes []Node
}

// PageColor re-draws the template on the 1-based page PageNo, colored with
// TextColor.
type PageColor struct {
	PageNo    int
	TextColor *Color
}

// Color is an RGB color. Components are 0..1 unless one of them is greater
// than 1, in which case all three are read as 0..255.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// RGB converts c to 0..255 components.
func (c Color) RGB() pageops.RGBColor {
	scale := 255.0
	if c.R > 1 || c.G > 1 || c.B > 1 {
		scale = 1
	}
	conv := func(v float64) int {
		n := int(v*scale + 0.5)
		return max(0, min(255, n))
	}
	return pageops.RGBColor{R: conv(c.R), G: conv(c.G), B: conv(c.B)}
}

// Point is a position measured from the top-left corner of the page.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Padding is the per-slot offset of repeated sub records.
type Padding struct {
	X float64 `json:"pad_x"`
	Y float64 `json:"pad_y"`
}

// Style is the geometry and styling shared by every node kind.
type Style struct {
	Key           string
	Literal       string // drawn as text when Key is absent from the record
	Position      Point
	Width         float64 // wrap width for text, image width
	FontSize      float64
	LineHeight    float64
	FontFamily    string
	Color         *Color
	OverrideColor *Color
}

// Node is one of TextNode, BarcodeNode, DateNode, ImageNode, MultipleNode,
// MultiTextNode or SubNode.
type Node interface {
	Kind() string
	style() *Style
}

type (
	TextNode struct{ Style }

	// BarcodeNode draws its value as text unless a symbology is given, in
	// which case a barcode Width×Height points is drawn with its lower-left
	// corner at the node position.
	BarcodeNode struct {
		Style
		Symbology pageops.Symbology
		Height    float64
	}

	DateNode struct {
		Style
		Layout string // time layout, "2 Jan, 2006" when empty
	}

	ImageNode struct {
		Style
		Height float64
	}

	MultipleNode struct {
		Style
		Positions []Point
	}

	MultiTextNode struct {
		Style
		MaxLines int
	}

	SubNode struct {
		Style
		MaxPerPage int
		Pad        Padding
		Nodes      []Node
	}
)

func (n *TextNode) Kind() string      { return "text" }
func (n *BarcodeNode) Kind() string   { return "bar_code" }
func (n *DateNode) Kind() string      { return "date" }
func (n *ImageNode) Kind() string     { return "image" }
func (n *MultipleNode) Kind() string  { return "multiple" }
func (n *MultiTextNode) Kind() string { return "multi_text" }
func (n *SubNode) Kind() string       { return "sub" }

func (s *Style) style() *Style { return s }

// Parse decodes a template configuration.
func Parse(data []byte) (*Template, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one template configuration from r.
func Decode(r io.Reader) (*Template, error) {
	var raw rawTemplate
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return raw.template()
}

type rawTemplate struct {
	SourcePDFURL string          `json:"sourcePDFUrl"`
	FileName     string          `json:"fileName"`
	Nodes        []rawNode       `json:"nodes"`
	Data         Record          `json:"data"`
	OtherConfigs rawOtherConfigs `json:"otherConfigs"`
	DisplayCopy  string          `json:"displayCopy"`
}

type rawOtherConfigs struct {
	EnablePageAppend                bool           `json:"enablePageAppend"`
	AppendPageURL                   string         `json:"appendPageURL"`
	EnableDuplicate                 bool           `json:"enableDuplicate"`
	Copies                          []rawCopy      `json:"copies"`
	EnableContentDuplicationInPages bool           `json:"enableContentDuplicationInPages"`
	Pages                           []rawPageColor `json:"pages"`
	TextUpperCase                   bool           `json:"textUpperCase"`
}

type rawCopy struct {
	CopyName string    `json:"copyName"`
	Nodes    []rawNode `json:"nodes"`
}

type rawPageColor struct {
	PageNo    int    `json:"pageNo"`
	TextColor *Color `json:"textColor"`
}

type rawPosition struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	PadX float64 `json:"pad_x"`
	PadY float64 `json:"pad_y"`
}

type rawNode struct {
	Type          string          `json:"type"`
	Key           string          `json:"key"`
	Value         json.RawMessage `json:"value"`
	Position      rawPosition     `json:"position"`
	Positions     []Point         `json:"positions"`
	Width         float64         `json:"width"`
	Height        float64         `json:"height"`
	FontSize      float64         `json:"fontSize"`
	LineHeight    float64         `json:"lineHeight"`
	FontFamily    string          `json:"fontFamily"`
	Color         *Color          `json:"color"`
	OverrideColor *Color          `json:"overrideColor"`
	MaxLines      int             `json:"maxLines"`
	MaxPerPage    int             `json:"maxPerPage"`
	Nodes         []rawNode       `json:"nodes"`
	Symbology     string          `json:"symbology"`
	Layout        string          `json:"layout"`
}

func (raw *rawTemplate) template() (*Template, error) {
	if strings.TrimSpace(raw.SourcePDFURL) == "" {
		return nil, fmt.Errorf("%w: sourcePDFUrl is required", ErrInvalidConfig)
	}
	nodes, err := decodeNodes(raw.Nodes, "nodes", false)
	if err != nil {
		return nil, err
	}
	display, err := raw.OtherConfigs.display()
	if err != nil {
		return nil, err
	}
	t := &Template{
		SourcePDFURL: raw.SourcePDFURL,
		FileName:     raw.FileName,
		Nodes:        nodes,
		Data:         raw.Data,
		Display:      display,
		DisplayCopy:  raw.DisplayCopy,
	}
	if t.Data == nil {
		t.Data = Record{}
	}
	if t.DisplayCopy == "" {
		t.DisplayCopy = DisplayAll
	}
	return t, nil
}

// DecodeDisplay decodes an otherConfigs object. Form configurations share the
// same switches.
func DecodeDisplay(data json.RawMessage) (DisplayConfig, error) {
	if len(data) == 0 || string(data) == "null" {
		return DisplayConfig{}, nil
	}
	var raw rawOtherConfigs
	if err := json.Unmarshal(data, &raw); err != nil {
		return DisplayConfig{}, fmt.Errorf("%w: otherConfigs: %v", ErrInvalidConfig, err)
	}
	return raw.display()
}

func (raw rawOtherConfigs) display() (DisplayConfig, error) {
	d := DisplayConfig{
		EnablePageAppend:         raw.EnablePageAppend,
		AppendPageURL:            raw.AppendPageURL,
		EnableDuplicate:          raw.EnableDuplicate,
		EnableContentDuplication: raw.EnableContentDuplicationInPages,
		TextUpperCase:            raw.TextUpperCase,
	}
	if d.EnablePageAppend && strings.TrimSpace(d.AppendPageURL) == "" {
		return d, fmt.Errorf("%w: enablePageAppend needs appendPageURL", ErrInvalidConfig)
	}
	for i, c := range raw.Copies {
		nodes, err := decodeNodes(c.Nodes, fmt.Sprintf("otherConfigs.copies[%d].nodes", i), true)
		if err != nil {
			return d, err
		}
		d.Copies = append(d.Copies, Copy{Name: c.CopyName, Nodes: nodes})
	}
	for _, p := range raw.Pages {
		d.Pages = append(d.Pages, PageColor(p))
	}
	return d, nil
}

func decodeNodes(raws []rawNode, path string, literalOnly bool) ([]Node, error) {
	nodes := make([]Node, 0, len(raws))
	for i := range raws {
		n, err := decodeNode(&raws[i], fmt.Sprintf("%s[%d]", path, i), literalOnly)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(raw *rawNode, path string, literalOnly bool) (Node, error) {
	literal, err := literalValue(raw.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.value: %v", ErrInvalidConfig, path, err)
	}
	s := Style{
		Key:           raw.Key,
		Literal:       literal,
		Position:      Point{X: raw.Position.X, Y: raw.Position.Y},
		Width:         raw.Width,
		FontSize:      raw.FontSize,
		LineHeight:    raw.LineHeight,
		FontFamily:    raw.FontFamily,
		Color:         raw.Color,
		OverrideColor: raw.OverrideColor,
	}
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, path, fmt.Sprintf(format, args...))
	}

	if literalOnly || raw.Type == "" {
		if literal == "" && raw.Key == "" {
			return nil, invalid("node needs a type and key, or a literal value")
		}
		if raw.Type == "" {
			return &TextNode{Style: s}, nil
		}
	}
	if s.Key == "" && s.Literal == "" {
		return nil, invalid("%s node needs a key or a literal value", raw.Type)
	}

	switch raw.Type {
	case "text":
		return &TextNode{Style: s}, nil
	case "bar_code":
		n := &BarcodeNode{Style: s, Height: raw.Height}
		if raw.Symbology != "" {
			sym, err := pageops.ParseSymbology(raw.Symbology)
			if err != nil {
				return nil, invalid("%v", err)
			}
			if raw.Width <= 0 {
				return nil, invalid("bar_code with symbology %s needs a width", sym)
			}
			n.Symbology = sym
			if n.Height <= 0 {
				n.Height = defaultBarcodeHeight(sym, raw.Width)
			}
		}
		return n, nil
	case "date":
		return &DateNode{Style: s, Layout: raw.Layout}, nil
	case "image":
		if raw.Width < 0 || raw.Height < 0 {
			return nil, invalid("image size cannot be negative")
		}
		return &ImageNode{Style: s, Height: raw.Height}, nil
	case "multiple":
		if len(raw.Positions) == 0 {
			return nil, invalid("multiple node needs positions")
		}
		return &MultipleNode{Style: s, Positions: raw.Positions}, nil
	case "multi_text":
		return &MultiTextNode{Style: s, MaxLines: raw.MaxLines}, nil
	case "sub":
		if raw.Nodes == nil {
			return nil, invalid("sub node needs nodes")
		}
		nested, err := decodeNodes(raw.Nodes, path+".nodes", false)
		if err != nil {
			return nil, err
		}
		return &SubNode{
			Style:      s,
			MaxPerPage: raw.MaxPerPage,
			Pad:        Padding{X: raw.Position.PadX, Y: raw.Position.PadY},
			Nodes:      nested,
		}, nil
	}
	return nil, invalid("unknown node type %q", raw.Type)
}

func defaultBarcodeHeight(sym pageops.Symbology, width float64) float64 {
	switch sym {
	case pageops.QR, pageops.DataMatrix:
		return width
	}
	return width / 3
}

// literalValue flattens a literal JSON scalar to text. Falsy values (empty
// string, false, 0, null) mean no literal.
func literalValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	if !truthy(v) {
		return "", nil
	}
	s, err := textValue(v)
	if err != nil {
		return "", err
	}
	return s, nil
}
