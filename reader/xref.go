package reader

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// xrefEntry locates one object. For kind 'n' offset is a byte offset; for
// kind 'c' it is the number of the object stream and index the position
// inside it.
type xrefEntry struct {
	kind   byte
	offset int64
	gen    int
	index  int
}

type xrefTable map[int]xrefEntry

// mergeOlder adds entries from an older section without overriding newer ones.
func (t xrefTable) mergeOlder(older xrefTable) {
	for n, e := range older {
		if _, ok := t[n]; !ok {
			t[n] = e
		}
	}
}

func findStartXRef(src []byte) (int64, error) {
	tail := src[max(0, len(src)-2048):]
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("reader: startxref not found")
	}
	l := newLexer(tail[i+len("startxref"):])
	off, err := strconv.ParseInt(l.word(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reader: bad startxref offset: %w", err)
	}
	return off, nil
}

// loadXRef reads the newest section at offset and every older section
// reachable through /Prev and /XRefStm. The newest trailer is kept.
func (d *Document) loadXRef(offset int64) error {
	d.xref = xrefTable{}
	seen := map[int64]bool{}
	queue := []int64{offset}
	for len(queue) > 0 {
		off := queue[0]
		queue = queue[1:]
		if seen[off] {
			continue
		}
		seen[off] = true
		if off < 0 || off >= int64(len(d.src)) {
			return fmt.Errorf("reader: xref offset %d out of range", off)
		}
		table, trailer, err := d.readXRefSection(off)
		if err != nil {
			return err
		}
		d.xref.mergeOlder(table)
		if d.trailer == nil {
			d.trailer = trailer
		}
		if stm, ok := trailer.Int("XRefStm"); ok {
			queue = append([]int64{stm}, queue...)
		}
		if prev, ok := trailer.Int("Prev"); ok {
			queue = append(queue, prev)
		}
	}
	return nil
}

func (d *Document) readXRefSection(off int64) (xrefTable, Dict, error) {
	l := &lexer{src: d.src, pos: int(off)}
	l.skipSpace()
	if l.hasPrefix("xref") {
		l.pos += len("xref")
		return readXRefTable(l)
	}
	return d.readXRefStream(l)
}

func readXRefTable(l *lexer) (xrefTable, Dict, error) {
	table := xrefTable{}
	for {
		l.skipSpace()
		if l.hasPrefix("trailer") {
			l.pos += len("trailer")
			break
		}
		first, err := strconv.Atoi(l.word())
		if err != nil {
			return nil, nil, fmt.Errorf("reader: bad xref subsection start")
		}
		count, err := strconv.Atoi(l.word())
		if err != nil {
			return nil, nil, fmt.Errorf("reader: bad xref subsection count")
		}
		for i := 0; i < count; i++ {
			off, err1 := strconv.ParseInt(l.word(), 10, 64)
			gen, err2 := strconv.Atoi(l.word())
			kind := l.word()
			if err1 != nil || err2 != nil || (kind != "n" && kind != "f") {
				return nil, nil, fmt.Errorf("reader: bad xref entry for object %d", first+i)
			}
			if _, ok := table[first+i]; !ok {
				table[first+i] = xrefEntry{kind: kind[0], offset: off, gen: gen}
			}
		}
	}
	v, err := l.value()
	if err != nil {
		return nil, nil, fmt.Errorf("reader: trailer: %w", err)
	}
	trailer, ok := v.(Dict)
	if !ok {
		return nil, nil, fmt.Errorf("reader: trailer is not a dictionary")
	}
	return table, trailer, nil
}

func (d *Document) readXRefStream(l *lexer) (xrefTable, Dict, error) {
	_, v, err := l.indirect(d.directLength)
	if err != nil {
		return nil, nil, fmt.Errorf("reader: xref stream: %w", err)
	}
	s, ok := v.(Stream)
	if !ok || s.Dict.Name("Type") != "XRef" {
		return nil, nil, fmt.Errorf("reader: object at xref offset is not an xref stream")
	}
	data, err := s.Decode()
	if err != nil {
		return nil, nil, fmt.Errorf("reader: xref stream: %w", err)
	}
	var w [3]int
	warr, _ := s.Dict["W"].(Array)
	if len(warr) != 3 {
		return nil, nil, fmt.Errorf("reader: xref stream /W must have 3 entries")
	}
	for i := range w {
		n, _ := intOf(warr[i])
		w[i] = int(n)
	}
	size, _ := s.Dict.Int("Size")
	index := []int{0, int(size)}
	if idx, ok := s.Dict["Index"].(Array); ok {
		index = index[:0]
		for _, item := range idx {
			n, _ := intOf(item)
			index = append(index, int(n))
		}
	}

	field := func(row []byte, start, width int, def int64) int64 {
		if width == 0 {
			return def
		}
		var v int64
		for _, b := range row[start : start+width] {
			v = v<<8 | int64(b)
		}
		return v
	}

	table := xrefTable{}
	rowLen := w[0] + w[1] + w[2]
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		for n := index[i]; n < index[i]+index[i+1]; n++ {
			if pos+rowLen > len(data) {
				break
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			kind := field(row, 0, w[0], 1)
			a := field(row, w[0], w[1], 0)
			b := field(row, w[0]+w[1], w[2], 0)
			switch kind {
			case 0:
				table[n] = xrefEntry{kind: 'f'}
			case 1:
				table[n] = xrefEntry{kind: 'n', offset: a, gen: int(b)}
			case 2:
				table[n] = xrefEntry{kind: 'c', offset: a, index: int(b)}
			}
		}
	}
	return table, s.Dict, nil
}

var objHeader = regexp.MustCompile(`(?m)(\d+)[ \t\r\n]+(\d+)[ \t\r\n]+obj\b`)

// rebuildXRef scans the file for object headers when the cross-reference
// data is missing or damaged. Later definitions win.
func (d *Document) rebuildXRef() error {
	d.xref = xrefTable{}
	for _, m := range objHeader.FindAllSubmatchIndex(d.src, -1) {
		num, _ := strconv.Atoi(string(d.src[m[2]:m[3]]))
		gen, _ := strconv.Atoi(string(d.src[m[4]:m[5]]))
		d.xref[num] = xrefEntry{kind: 'n', offset: int64(m[0]), gen: gen}
	}
	if len(d.xref) == 0 {
		return fmt.Errorf("reader: no objects found")
	}
	d.trailer = nil
	if i := bytes.LastIndex(d.src, []byte("trailer")); i >= 0 {
		l := &lexer{src: d.src, pos: i + len("trailer")}
		if v, err := l.value(); err == nil {
			d.trailer, _ = v.(Dict)
		}
	}
	if d.trailer == nil || d.trailer["Root"] == nil {
		d.trailer = Dict{}
		for num := range d.xref {
			obj, err := d.object(num)
			if err != nil {
				continue
			}
			if dict, ok := obj.(Dict); ok && dict.Name("Type") == "Catalog" {
				d.trailer["Root"] = Reference{Number: num}
				break
			}
		}
	}
	if d.trailer["Root"] == nil {
		return fmt.Errorf("reader: no document catalog found")
	}
	return nil
}
