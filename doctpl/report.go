package doctpl

import (
	"errors"
	"fmt"
)

// Reasons a node is skipped. Skips never stop a render.
var (
	ErrMissingValue = errors.New("doctpl: no value for node")
	ErrBadValue     = errors.New("doctpl: value has the wrong shape")
	ErrImageFetch   = errors.New("doctpl: image could not be fetched")
	ErrImageFormat  = errors.New("doctpl: image format not supported")
	ErrBarcode      = errors.New("doctpl: value cannot be encoded as a barcode")
	ErrPageRange    = errors.New("doctpl: target page does not exist")
)

// Skip records a node that was not drawn.
type Skip struct {
	Node string // node kind, or "copy" for overlay nodes
	Key  string
	Page int // 0-based page index the node targeted
	Err  error
}

func (s Skip) String() string {
	return fmt.Sprintf("%s %q on page %d: %v", s.Node, s.Key, s.Page+1, s.Err)
}
