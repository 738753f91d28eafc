package pdfstamp

import (
	"errors"
	"fmt"
)

// Sentinel errors for failures that abort a whole render.
var (
	ErrNoSource      = errors.New("pdfstamp: no source PDF")
	ErrSourceFetch   = errors.New("pdfstamp: source PDF could not be fetched")
	ErrSourceParse   = errors.New("pdfstamp: source PDF could not be parsed")
	ErrAppendFetch   = errors.New("pdfstamp: append PDF could not be fetched")
	ErrAppendParse   = errors.New("pdfstamp: append PDF could not be parsed")
	ErrInvalidConfig = errors.New("pdfstamp: invalid configuration")
	ErrEncrypted     = errors.New("pdfstamp: document is encrypted")
)

// RenderError is a document-level failure of one operation. It wraps one
// of the sentinel errors above.
type RenderError struct {
	Op  string // "RenderTemplate" or "FillForm"
	Err error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pdfstamp.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pdfstamp.%s: unknown error", e.Op)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func newRenderError(op string, err error) *RenderError {
	return &RenderError{Op: op, Err: err}
}
