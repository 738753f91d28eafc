package pageops

import (
	"slices"
	"strings"
	"sync"
)

// Font names one of gofpdf's core fonts by family and style ("", "B", "I"
// or "BI").
type Font struct {
	Family string
	Style  string
}

// Standard font keys, the names templates use.
const (
	Helvetica            = "helvetica"
	HelveticaBold        = "helveticaBold"
	HelveticaOblique     = "helveticaOblique"
	HelveticaBoldOblique = "helveticaBoldOblique"
	Courier              = "courier"
	CourierBold          = "courierBold"
	CourierOblique       = "courierOblique"
	CourierBoldOblique   = "courierBoldOblique"
	TimesRoman           = "timesRoman"
	TimesRomanBold       = "timesRomanBold"
	TimesRomanItalic     = "timesRomanItalic"
	TimesRomanBoldItalic = "timesRomanBoldItalic"
)

var standardFonts = map[string]Font{
	Helvetica:            {"Helvetica", ""},
	HelveticaBold:        {"Helvetica", "B"},
	HelveticaOblique:     {"Helvetica", "I"},
	HelveticaBoldOblique: {"Helvetica", "BI"},
	Courier:              {"Courier", ""},
	CourierBold:          {"Courier", "B"},
	CourierOblique:       {"Courier", "I"},
	CourierBoldOblique:   {"Courier", "BI"},
	TimesRoman:           {"Times", ""},
	TimesRomanBold:       {"Times", "B"},
	TimesRomanItalic:     {"Times", "I"},
	TimesRomanBoldItalic: {"Times", "BI"},
}

// FontRegistry maps font keys to fonts. Keys are matched case-insensitively.
// It is safe for concurrent use.
type FontRegistry struct {
	mu    sync.RWMutex
	fonts map[string]Font
	def   string
}

// NewFontRegistry returns a registry holding the twelve standard fonts with
// def as the fallback. An unknown def falls back to helvetica.
func NewFontRegistry(def string) *FontRegistry {
	r := &FontRegistry{fonts: make(map[string]Font, len(standardFonts))}
	for k, f := range standardFonts {
		r.fonts[strings.ToLower(k)] = f
	}
	r.def = Helvetica
	r.SetDefault(def)
	return r
}

// Register adds or replaces a font key.
func (r *FontRegistry) Register(key string, f Font) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fonts[strings.ToLower(key)] = f
}

// SetDefault changes the fallback font. It reports false, leaving the
// fallback unchanged, when key is not registered.
func (r *FontRegistry) SetDefault(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fonts[strings.ToLower(key)]; !ok {
		return false
	}
	r.def = strings.ToLower(key)
	return true
}

// Default returns the fallback font.
func (r *FontRegistry) Default() Font {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fonts[r.def]
}

// Lookup returns the font for key. Unknown or empty keys return the fallback
// font and false.
func (r *FontRegistry) Lookup(key string) (Font, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.fonts[strings.ToLower(key)]; ok {
		return f, true
	}
	return r.fonts[r.def], false
}

// Keys returns the registered keys in sorted order, lower-cased.
func (r *FontRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.fonts))
	for k := range r.fonts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
