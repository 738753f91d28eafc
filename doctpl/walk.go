package doctpl

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp/pageops"
)

// Walk draws nodes for rec starting on the first page, inserting overflow
// pages as multi_text and sub nodes need them.
func (r *Renderer) Walk(nodes []Node, rec Record) {
	r.walkNodes(nodes, rec, walk{paginate: true})
}

// Render walks the template and runs the post-processing steps it enables.
// appendix is the parsed appendPageURL document and may be nil when page
// appending is off.
func (r *Renderer) Render(t *Template, appendix *pageops.Source) error {
	r.Walk(t.Nodes, t.Data)
	if t.Display.EnablePageAppend {
		if err := r.Append(appendix); err != nil {
			return err
		}
	}
	if t.Display.EnableDuplicate {
		r.Duplicate(t.Display.Copies, t.DisplayCopy)
	}
	if t.Display.EnableContentDuplication {
		r.DuplicateContent(t.Nodes, t.Data, t.Display.Pages)
	}
	return nil
}

// Append adds the first page of src after the last page.
func (r *Renderer) Append(src *pageops.Source) error {
	if src == nil {
		return fmt.Errorf("doctpl: page append enabled without a document")
	}
	p, err := r.doc.CopyPageFrom(src, 0)
	if err != nil {
		return fmt.Errorf("doctpl: appending %s: %w", src.Name(), err)
	}
	r.doc.AddPage(p)
	return nil
}

// Duplicate draws copy overlays. In DisplayAll mode every current page is
// cloned once per copy after the first, the clones get that copy's overlay
// and are appended, and the first copy is drawn on the original pages. For
// a copy name, the last copy after the first with that name (or the first
// copy when none matches) is drawn on every page without cloning.
func (r *Renderer) Duplicate(copies []Copy, displayCopy string) {
	if len(copies) == 0 {
		return
	}
	originals := r.doc.NumPages()
	chosen := 0
	if displayCopy == DisplayAll || displayCopy == "" {
		for i := 1; i < len(copies); i++ {
			for j := 0; j < originals; j++ {
				clone, err := r.doc.CopyPage(j)
				if err != nil {
					r.skip(nil, j, err)
					continue
				}
				r.doc.AddPage(clone)
				r.overlay(copies[i], r.doc.NumPages()-1)
			}
		}
	} else {
		for i := 1; i < len(copies); i++ {
			if copies[i].Name == displayCopy {
				chosen = i
			}
		}
	}
	for j := 0; j < originals; j++ {
		r.overlay(copies[chosen], j)
	}
}

func (r *Renderer) overlay(c Copy, pageNo int) {
	for _, n := range c.Nodes {
		s := n.style()
		if s.Literal == "" {
			r.skip(n, pageNo, ErrMissingValue)
			continue
		}
		if err := r.drawText(s, s.Literal, s.Position, walk{pageNo: pageNo}, r.color(s, nil)); err != nil {
			r.skip(n, pageNo, err)
		}
	}
}

// DuplicateContent draws nodes for rec again on each listed page, colored
// with that entry's text color. Overflow pages are not created: multi_text
// windows and sub records that fall past the last page are skipped.
func (r *Renderer) DuplicateContent(nodes []Node, rec Record, pages []PageColor) {
	for _, pc := range pages {
		pageNo := pc.PageNo - 1
		if pageNo < 0 || pageNo >= r.doc.NumPages() {
			err := fmt.Errorf("%w: pageNo %d of %d", ErrPageRange, pc.PageNo, r.doc.NumPages())
			r.skips = append(r.skips, Skip{Node: "page", Page: pageNo, Err: err})
			r.log.Warn("skipping content duplication", zap.Int("page", pc.PageNo), zap.Error(err))
			continue
		}
		r.walkNodes(nodes, rec, walk{pageNo: pageNo, override: pc.TextColor})
	}
}

// ImageURLs lists the distinct image URLs nodes reference in rec and its
// nested sub records, in first-use order.
func ImageURLs(nodes []Node, rec Record) []string {
	seen := map[string]bool{}
	var urls []string
	var visit func([]Node, Record)
	visit = func(nodes []Node, rec Record) {
		for _, n := range nodes {
			v, ok := rec[n.style().Key]
			if !ok {
				continue
			}
			switch n := n.(type) {
			case *ImageNode:
				if url, ok := v.(string); ok && url != "" && !seen[url] {
					seen[url] = true
					urls = append(urls, url)
				}
			case *SubNode:
				recs, err := records(v)
				if err != nil {
					continue
				}
				for _, sub := range recs {
					visit(n.Nodes, sub)
				}
			}
		}
	}
	visit(nodes, rec)
	return urls
}
