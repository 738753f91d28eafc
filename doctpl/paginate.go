package doctpl

import (
	"fmt"

	"github.com/lvillar/pdfstamp/pageops"
)

// capacity floors a per-page limit at 1.
func capacity(max int) int {
	if max < 1 {
		return 1
	}
	return max
}

// PageCount returns how many pages total items need at max per page:
// ceil(total / max), with max floored at 1.
func PageCount(total, max int) int {
	if total <= 0 {
		return 0
	}
	max = capacity(max)
	return (total + max - 1) / max
}

// Windows splits lines into consecutive groups of at most max lines.
// Joining the windows in order gives back lines.
func Windows(lines []string, max int) [][]string {
	max = capacity(max)
	out := make([][]string, 0, PageCount(len(lines), max))
	for len(lines) > 0 {
		n := min(max, len(lines))
		out = append(out, lines[:n])
		lines = lines[n:]
	}
	return out
}

// Slot locates the j-th repeated record: Page pages after the record's base
// page, Index slots down that page.
type Slot struct {
	Page  int
	Index int
}

// SlotOf returns the slot of record j at max records per page.
func SlotOf(j, max int) Slot {
	max = capacity(max)
	return Slot{Page: j / max, Index: j % max}
}

// Offset scales the base padding by the slot index.
func (s Slot) Offset(base Padding) Padding {
	return Padding{X: base.X * float64(s.Index), Y: base.Y * float64(s.Index)}
}

// InsertClones makes room for pages-1 more pages after pageNo by inserting
// copies of the document's first page, in order, directly after it.
func InsertClones(doc *pageops.Document, pageNo, pages int) error {
	for i := 1; i < pages; i++ {
		clone, err := doc.CopyPage(0)
		if err != nil {
			return err
		}
		if err := doc.InsertPage(pageNo+i, clone); err != nil {
			return fmt.Errorf("doctpl: inserting overflow page %d: %w", pageNo+i+1, err)
		}
	}
	return nil
}
