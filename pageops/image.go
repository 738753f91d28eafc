package pageops

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Image is an image ready to be embedded, either PNG or JPG data.
type Image struct {
	Type   string // "PNG" or "JPG"
	Data   []byte
	Width  int // pixels
	Height int
}

// DecodeImage recognizes PNG and JPEG data. Other formats the x/image
// decoders understand (BMP, TIFF, WebP) and GIF are converted to PNG.
// Anything else yields ErrImageFormat.
func DecodeImage(data []byte) (*Image, error) {
	if img, err := png.Decode(bytes.NewReader(data)); err == nil {
		// Normalised to 8-bit non-interlaced data, which gofpdf's PNG
		// parser always accepts.
		return encodePNG(img)
	}
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrImageFormat, err)
		}
		return &Image{Type: "JPG", Data: data, Width: cfg.Width, Height: cfg.Height}, nil
	}
	for _, decode := range []func([]byte) (image.Image, error){
		func(b []byte) (image.Image, error) { return gif.Decode(bytes.NewReader(b)) },
		func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) },
		func(b []byte) (image.Image, error) { return tiff.Decode(bytes.NewReader(b)) },
		func(b []byte) (image.Image, error) { return webp.Decode(bytes.NewReader(b)) },
	} {
		if img, err := decode(data); err == nil {
			return encodePNG(img)
		}
	}
	return nil, ErrImageFormat
}

func encodePNG(img image.Image) (*Image, error) {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageFormat, err)
	}
	return &Image{Type: "PNG", Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// fit fills in a missing width or height from the image's aspect ratio; with
// neither given the image is drawn at one point per pixel.
func (img *Image) fit(w, h float64) (float64, float64) {
	if img.Width == 0 || img.Height == 0 {
		return w, h
	}
	switch {
	case w <= 0 && h <= 0:
		return float64(img.Width), float64(img.Height)
	case w <= 0:
		return h * float64(img.Width) / float64(img.Height), h
	case h <= 0:
		return w, w * float64(img.Height) / float64(img.Width)
	}
	return w, h
}
