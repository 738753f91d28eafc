package form

import (
	"strconv"
	"strings"

	"github.com/lvillar/pdfstamp/pageops"
)

// DefaultFontSize is used when a field's appearance sets no usable size,
// including the auto size 0.
const DefaultFontSize = 10

// resourceFonts maps the font resource names AcroForm authoring tools put in
// /DR to registry keys.
var resourceFonts = map[string]string{
	"Helv": pageops.Helvetica,
	"HeBo": pageops.HelveticaBold,
	"HeOb": pageops.HelveticaOblique,
	"Cour": pageops.Courier,
	"CoBo": pageops.CourierBold,
	"CoOb": pageops.CourierOblique,
	"TiRo": pageops.TimesRoman,
	"TiBo": pageops.TimesRomanBold,
	"TiIt": pageops.TimesRomanItalic,
}

// Appearance is the part of a default appearance string (/DA) used to draw
// a value.
type Appearance struct {
	Font string // registry key, empty when the resource is unknown
	Size float64
}

// ParseAppearance reads the operands of the Tf operator in da, as in
// "/Helv 12 Tf 0 g".
func ParseAppearance(da string) Appearance {
	a := Appearance{Size: DefaultFontSize}
	fields := strings.Fields(da)
	for i, tok := range fields {
		if tok != "Tf" {
			continue
		}
		if i >= 1 {
			if size, err := strconv.ParseFloat(fields[i-1], 64); err == nil && size > 0 {
				a.Size = size
			}
		}
		if i >= 2 {
			a.Font = resourceFonts[strings.TrimPrefix(fields[i-2], "/")]
		}
		break
	}
	return a
}
