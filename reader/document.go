package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
)

// ErrEncrypted is returned for documents protected by a security handler.
var ErrEncrypted = errors.New("reader: document is encrypted")

// Document is a parsed PDF file. It is not safe for concurrent use.
type Document struct {
	Version string

	src     []byte
	xref    xrefTable
	trailer Dict
	cache   map[int]Object
	objStms map[int]*objectStream
	pages   []*Page
}

type objectStream struct {
	data    []byte
	offsets []int
	first   int
}

// Open reads and parses the named file.
func Open(name string) (*Document, error) {
	src, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reader: opening %s: %w", name, err)
	}
	return Parse(src)
}

// ReadFrom reads r to the end and parses it.
func ReadFrom(r io.Reader) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reader: reading input: %w", err)
	}
	return Parse(src)
}

// Parse parses a complete PDF file held in memory. src is retained.
func Parse(src []byte) (*Document, error) {
	if !bytes.Contains(src[:min(1024, len(src))], []byte("%PDF-")) {
		return nil, fmt.Errorf("reader: missing %%PDF header")
	}
	d := &Document{
		src:     src,
		cache:   map[int]Object{},
		objStms: map[int]*objectStream{},
	}
	d.Version = headerVersion(src)

	off, err := findStartXRef(src)
	if err == nil {
		err = d.loadXRef(off)
	}
	if err != nil || d.trailer["Root"] == nil {
		if rerr := d.rebuildXRef(); rerr != nil {
			if err == nil {
				err = rerr
			}
			return nil, err
		}
	}
	if d.trailer["Encrypt"] != nil {
		return nil, ErrEncrypted
	}
	if err := d.loadPages(); err != nil {
		return nil, err
	}
	return d, nil
}

func headerVersion(src []byte) string {
	head := string(src[:min(1024, len(src))])
	i := strings.Index(head, "%PDF-")
	if i < 0 {
		return ""
	}
	v := head[i+5:]
	if j := strings.IndexAny(v, "\r\n \t%"); j >= 0 {
		v = v[:j]
	}
	return v
}

// Bytes returns the source the document was parsed from.
func (d *Document) Bytes() []byte { return d.src }

// Trailer returns the newest trailer dictionary.
func (d *Document) Trailer() Dict { return d.trailer }

// NumPages returns the number of pages.
func (d *Document) NumPages() int { return len(d.pages) }

// Page returns the page with the given 1-based number.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("reader: page %d out of range [1, %d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// Pages iterates over the pages with their 1-based numbers.
func (d *Document) Pages() iter.Seq2[int, *Page] {
	return func(yield func(int, *Page) bool) {
		for i, p := range d.pages {
			if !yield(i+1, p) {
				return
			}
		}
	}
}

// Resolve follows indirect references until it reaches a direct object.
// Dangling references resolve to Null.
func (d *Document) Resolve(o Object) (Object, error) {
	for range 32 {
		ref, ok := o.(Reference)
		if !ok {
			return o, nil
		}
		v, err := d.object(ref.Number)
		if err != nil {
			return nil, err
		}
		o = v
	}
	return nil, fmt.Errorf("reader: reference chain too deep")
}

func (d *Document) resolveDict(o Object) Dict {
	v, err := d.Resolve(o)
	if err != nil {
		return nil
	}
	dict, _ := v.(Dict)
	return dict
}

func (d *Document) resolveArray(o Object) Array {
	v, err := d.Resolve(o)
	if err != nil {
		return nil
	}
	arr, _ := v.(Array)
	return arr
}

// directLength resolves a stream /Length without recursing into streams.
func (d *Document) directLength(o Object) (int64, bool) {
	if ref, ok := o.(Reference); ok {
		if e, ok := d.xref[ref.Number]; ok && e.kind == 'n' {
			l := &lexer{src: d.src, pos: int(e.offset)}
			l.word()
			l.word()
			if l.word() == "obj" {
				if v, err := l.value(); err == nil {
					return intOf(v)
				}
			}
		}
		return 0, false
	}
	return intOf(o)
}

func (d *Document) object(num int) (Object, error) {
	if v, ok := d.cache[num]; ok {
		return v, nil
	}
	e, ok := d.xref[num]
	if !ok || e.kind == 'f' {
		return Null{}, nil
	}
	var (
		v   Object
		err error
	)
	switch e.kind {
	case 'n':
		if e.offset < 0 || e.offset >= int64(len(d.src)) {
			return nil, fmt.Errorf("reader: object %d offset %d out of range", num, e.offset)
		}
		l := &lexer{src: d.src, pos: int(e.offset)}
		_, v, err = l.indirect(d.directLength)
	case 'c':
		v, err = d.compressedObject(int(e.offset), e.index)
	}
	if err != nil {
		return nil, fmt.Errorf("reader: object %d: %w", num, err)
	}
	d.cache[num] = v
	return v, nil
}

func (d *Document) compressedObject(stmNum, index int) (Object, error) {
	stm, ok := d.objStms[stmNum]
	if !ok {
		v, err := d.object(stmNum)
		if err != nil {
			return nil, err
		}
		s, ok := v.(Stream)
		if !ok {
			return nil, fmt.Errorf("object stream %d is not a stream", stmNum)
		}
		data, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", stmNum, err)
		}
		n, _ := s.Dict.Int("N")
		first, _ := s.Dict.Int("First")
		stm = &objectStream{data: data, first: int(first)}
		l := newLexer(data)
		for i := int64(0); i < n; i++ {
			l.word()
			off, err := strconv.Atoi(l.word())
			if err != nil {
				return nil, fmt.Errorf("object stream %d: bad header", stmNum)
			}
			stm.offsets = append(stm.offsets, off)
		}
		d.objStms[stmNum] = stm
	}
	if index < 0 || index >= len(stm.offsets) {
		return nil, fmt.Errorf("index %d outside object stream %d", index, stmNum)
	}
	pos := stm.first + stm.offsets[index]
	if pos >= len(stm.data) {
		return nil, fmt.Errorf("index %d outside object stream %d", index, stmNum)
	}
	l := &lexer{src: stm.data, pos: pos}
	return l.value()
}

// ObjectSpan returns the byte range of an uncompressed indirect object,
// from its "N G obj" header through "endobj".
func (d *Document) ObjectSpan(num int) (start, end int, ok bool) {
	e, found := d.xref[num]
	if !found || e.kind != 'n' || e.offset < 0 || e.offset >= int64(len(d.src)) {
		return 0, 0, false
	}
	start = int(e.offset)
	i := bytes.Index(d.src[start:], []byte("endobj"))
	if i < 0 {
		return 0, 0, false
	}
	return start, start + i + len("endobj"), true
}

// Catalog returns the document catalog.
func (d *Document) Catalog() (Dict, error) {
	c := d.resolveDict(d.trailer["Root"])
	if c == nil {
		return nil, fmt.Errorf("reader: missing document catalog")
	}
	return c, nil
}

// Metadata returns the text entries of the document information dictionary.
func (d *Document) Metadata() map[string]string {
	meta := map[string]string{}
	info := d.resolveDict(d.trailer["Info"])
	for _, k := range []Name{"Title", "Author", "Subject", "Keywords", "Creator", "Producer"} {
		if s := info.Text(k); s != "" {
			meta[string(k)] = s
		}
	}
	return meta
}
