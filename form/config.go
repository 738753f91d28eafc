// Package form fills AcroForm PDFs by drawing values over the widgets of
// their text fields and flattening the form.
//
// A form configuration binds field names to values. A value is either a
// string or an object whose lines may spill onto copies of the first page:
//
//	{
//	  "sourcePDFUrl": "https://example.com/waybill.pdf",
//	  "fileName": "waybill.pdf",
//	  "fields": {
//	    "shipper": "ACME Corp",
//	    "items": {"value": "1x crate\n2x barrel\n...", "max_lines": 12}
//	  },
//	  "otherConfigs": {"textUpperCase": true}
//	}
//
// Fields are visited in the order they appear in the configuration.
package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lvillar/pdfstamp/doctpl"
)

// Config is a parsed form configuration.
type Config struct {
	SourcePDFURL string
	FileName     string
	Fields       []Value
	Display      doctpl.DisplayConfig
}

// Value is the value bound to one field.
type Value struct {
	Field string
	Text  string
	// MaxLines is set for object values. Zero means the value never
	// overflows.
	MaxLines int
	Object   bool
}

type rawConfig struct {
	SourcePDFURL string          `json:"sourcePDFUrl"`
	FileName     string          `json:"fileName"`
	Fields       json.RawMessage `json:"fields"`
	OtherConfigs json.RawMessage `json:"otherConfigs"`
}

type rawValue struct {
	Value    json.RawMessage `json:"value"`
	MaxLines json.Number     `json:"max_lines"`
}

// Parse decodes a form configuration.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a form configuration from r.
func Decode(r io.Reader) (*Config, error) {
	var raw rawConfig
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", doctpl.ErrInvalidConfig, err)
	}
	if raw.SourcePDFURL == "" {
		return nil, fmt.Errorf("%w: sourcePDFUrl is required", doctpl.ErrInvalidConfig)
	}
	fields, err := decodeFields(raw.Fields)
	if err != nil {
		return nil, err
	}
	display, err := doctpl.DecodeDisplay(raw.OtherConfigs)
	if err != nil {
		return nil, err
	}
	return &Config{
		SourcePDFURL: raw.SourcePDFURL,
		FileName:     raw.FileName,
		Fields:       fields,
		Display:      display,
	}, nil
}

// decodeFields reads the fields object keeping its key order.
func decodeFields(data json.RawMessage) ([]Value, error) {
	if len(bytes.TrimSpace(data)) == 0 || string(bytes.TrimSpace(data)) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: fields must be an object", doctpl.ErrInvalidConfig)
	}
	var out []Value
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: fields: %v", doctpl.ErrInvalidConfig, err)
		}
		name := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: fields.%s: %v", doctpl.ErrInvalidConfig, name, err)
		}
		v, ok, err := decodeValue(name, raw)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// decodeValue reports false for null values, which bind nothing.
func decodeValue(name string, raw json.RawMessage) (Value, bool, error) {
	raw = bytes.TrimSpace(raw)
	invalid := func(format string, args ...any) (Value, bool, error) {
		return Value{}, false, fmt.Errorf("%w: fields.%s: %s", doctpl.ErrInvalidConfig, name, fmt.Sprintf(format, args...))
	}
	switch {
	case len(raw) == 0 || string(raw) == "null":
		return Value{}, false, nil
	case raw[0] == '{':
		var obj rawValue
		if err := json.Unmarshal(raw, &obj); err != nil {
			return invalid("%v", err)
		}
		text, ok, err := scalar(obj.Value)
		if err != nil || !ok {
			return invalid("object values need a scalar value")
		}
		v := Value{Field: name, Text: text, Object: true}
		if obj.MaxLines != "" {
			n, err := obj.MaxLines.Int64()
			if err != nil || n < 0 {
				return invalid("max_lines must be a non-negative integer")
			}
			v.MaxLines = int(n)
		}
		return v, true, nil
	case raw[0] == '[':
		return invalid("arrays cannot be drawn")
	}
	text, ok, err := scalar(raw)
	if err != nil {
		return invalid("%v", err)
	}
	return Value{Field: name, Text: text}, ok, nil
}

func scalar(raw json.RawMessage) (string, bool, error) {
	if len(raw) == 0 {
		return "", false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false, err
	}
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case json.Number:
		return x.String(), true, nil
	case bool:
		return fmt.Sprint(x), true, nil
	}
	return "", false, fmt.Errorf("%T is not a scalar", v)
}
