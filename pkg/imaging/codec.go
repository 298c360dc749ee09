package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png" // decode PNG uploads
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"  // decode BMP uploads
	_ "golang.org/x/image/tiff" // decode TIFF uploads
	_ "golang.org/x/image/webp" // decode WebP uploads
)

// Raster is a decoded page image together with its display scale factor.
type Raster struct {
	Image image.Image
	Scale float64
}

// Codec encodes rasters to compressed page bytes and back.
type Codec interface {
	Encode(img image.Image, quality float64) ([]byte, error)
	Decode(data []byte) (image.Image, error)
}

// JPEGCodec stores pages as baseline JPEG.
type JPEGCodec struct{}

// NewJPEGCodec returns the default page codec.
func NewJPEGCodec() *JPEGCodec {
	return &JPEGCodec{}
}

// Encode compresses img at quality in (0,1]. Transparent regions are flattened onto white.
func (JPEGCodec) Encode(img image.Image, quality float64) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("encode: empty image")
	}
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, Flatten(img), &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode accepts JPEG, PNG, WebP, TIFF and BMP bytes.
func (JPEGCodec) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Dimensions reads only the header of an encoded image.
func Dimensions(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, "", fmt.Errorf("image has no pixels")
	}
	return cfg.Width, cfg.Height, format, nil
}

// Flatten returns img composited over an opaque white background.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	xdraw.Draw(out, b, image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(out, b, img, b.Min, xdraw.Over)
	return out
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
