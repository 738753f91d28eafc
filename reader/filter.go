package reader

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"
)

// Decode returns the stream data with its filter chain removed.
func (s Stream) Decode() ([]byte, error) {
	filters, params := filterChain(s.Dict)
	data := s.Raw
	for i, f := range filters {
		var err error
		switch f {
		case "FlateDecode", "Fl":
			data, err = inflate(data)
			if err == nil {
				data, err = unpredict(data, params[i])
			}
		case "ASCIIHexDecode", "AHx":
			data, err = unhexStream(data)
		case "ASCII85Decode", "A85":
			data, err = unascii85(data)
		default:
			err = fmt.Errorf("unsupported filter %s", f)
		}
		if err != nil {
			return nil, fmt.Errorf("reader: %s: %w", f, err)
		}
	}
	return data, nil
}

func filterChain(d Dict) ([]Name, []Dict) {
	var names []Name
	switch f := d["Filter"].(type) {
	case Name:
		names = []Name{f}
	case Array:
		for _, item := range f {
			if n, ok := item.(Name); ok {
				names = append(names, n)
			}
		}
	}
	params := make([]Dict, len(names))
	switch p := d["DecodeParms"].(type) {
	case Dict:
		if len(params) > 0 {
			params[0] = p
		}
	case Array:
		for i := 0; i < len(p) && i < len(params); i++ {
			params[i], _ = p[i].(Dict)
		}
	}
	return names, params
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	// Truncated streams are common in the wild; keep what inflated.
	return out, nil
}

// unpredict reverses PNG row predictors (Predictor >= 10). Cross-reference
// streams almost always use them.
func unpredict(data []byte, params Dict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor, _ := params.Int("Predictor")
	if predictor < 10 {
		if predictor == 2 {
			return nil, fmt.Errorf("TIFF predictor not supported")
		}
		return data, nil
	}
	colors, columns, bpc := int64(1), int64(1), int64(8)
	if v, ok := params.Int("Colors"); ok && v > 0 {
		colors = v
	}
	if v, ok := params.Int("Columns"); ok && v > 0 {
		columns = v
	}
	if v, ok := params.Int("BitsPerComponent"); ok && v > 0 {
		bpc = v
	}
	bpp := int((colors*bpc + 7) / 8)
	rowLen := int((colors*bpc*columns + 7) / 8)

	var out []byte
	prev := make([]byte, rowLen)
	for off := 0; off+1 <= len(data); off += rowLen + 1 {
		end := min(off+1+rowLen, len(data))
		kind := data[off]
		row := make([]byte, rowLen)
		copy(row, data[off+1:end])
		for i := range row {
			var left, up, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]
			switch kind {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("bad PNG predictor row type %d", kind)
			}
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func unhexStream(data []byte) ([]byte, error) {
	clean := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '>' {
			break
		}
		if !isSpace(c) {
			clean = append(clean, c)
		}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, '0')
	}
	out := make([]byte, hex.DecodedLen(len(clean)))
	if _, err := hex.Decode(out, clean); err != nil {
		return nil, err
	}
	return out, nil
}

func unascii85(data []byte) ([]byte, error) {
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	return io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))
}
