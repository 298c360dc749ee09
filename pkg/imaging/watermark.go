package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultText is used when no watermark text is supplied.
	DefaultText = "DocMatic"

	noLogoFontScale = 1.4
	minFontPx       = 10.0
)

// WatermarkOptions describes one compositing request.
type WatermarkOptions struct {
	Text string
	// Logo is drawn left of the text when set.
	Logo image.Image
	// Color overrides the luminance-based overlay choice.
	Color color.Color
}

// Compositor tiles a rotated text (and optional logo) watermark across page images.
type Compositor struct {
	font      *opentype.Font
	alpha     uint8
	fontScale float64
}

// NewCompositor parses the embedded Go Bold face. alpha is the overlay opacity in [0,1].
func NewCompositor(alpha, fontScale float64) (*Compositor, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse watermark font: %w", err)
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	if fontScale <= 0 {
		fontScale = 1
	}
	return &Compositor{font: f, alpha: uint8(math.Round(alpha * 255)), fontScale: fontScale}, nil
}

// Composite returns a copy of src with the watermark tiled diagonally over its full area.
// On any failure the original raster is returned unchanged.
func (c *Compositor) Composite(src Raster, opts WatermarkOptions) (out Raster) {
	if src.Image == nil || src.Image.Bounds().Empty() {
		return src
	}
	defer func() {
		if r := recover(); r != nil {
			out = src
		}
	}()

	img, err := c.composite(src.Image, opts)
	if err != nil {
		return src
	}
	return Raster{Image: img, Scale: src.Scale}
}

func (c *Compositor) composite(src image.Image, opts WatermarkOptions) (image.Image, error) {
	b := src.Bounds()
	overlay := c.overlay(src, opts.Color)

	text := opts.Text
	if text == "" {
		text = DefaultText
	}
	scale := c.fontScale
	if opts.Logo == nil {
		scale *= noLogoFontScale
	}

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    fontSize(b.Dx(), b.Dy(), scale),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("watermark face: %w", err)
	}
	defer face.Close()

	tile, err := c.renderUnit(face, text, opts.Logo, overlay)
	if err != nil {
		return nil, err
	}
	rotated, origin := rotate45(tile)

	dst := image.NewRGBA(b)
	xdraw.Draw(dst, b, src, b.Min, xdraw.Src)

	unitW, unitH := tile.Bounds().Dx(), tile.Bounds().Dy()
	strideX, strideY := 2*unitW, 2*unitH
	rw, rh := rotated.Bounds().Dx(), rotated.Bounds().Dy()

	for row, y := 0, b.Min.Y-rh; y < b.Max.Y+rh; row, y = row+1, y+strideY {
		x0 := b.Min.X - rw
		if row%2 == 1 {
			x0 += strideX / 2
		}
		for x := x0; x < b.Max.X+rw; x += strideX {
			at := image.Pt(x, y).Sub(origin)
			xdraw.Draw(dst, rotated.Bounds().Add(at), rotated, image.Point{}, xdraw.Over)
		}
	}
	return dst, nil
}

func (c *Compositor) overlay(src image.Image, override color.Color) color.Color {
	if override != nil {
		return override
	}
	return OverlayColor(src, c.alpha)
}

// renderUnit draws one unwrapped watermark unit: [logo][spacing][text].
func (c *Compositor) renderUnit(face font.Face, text string, logo image.Image, overlay color.Color) (*image.RGBA, error) {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	textH := ascent + metrics.Descent.Ceil()
	textW := font.MeasureString(face, text).Ceil()
	if textW <= 0 || textH <= 0 {
		return nil, fmt.Errorf("watermark text has no extent")
	}

	var logoW, logoH, spacing int
	if logo != nil && !logo.Bounds().Empty() {
		lb := logo.Bounds()
		logoH = textH
		logoW = max(int(math.Round(float64(lb.Dx())*float64(logoH)/float64(lb.Dy()))), 1)
		spacing = max(textH/2, 1)
	}

	unitW := logoW + spacing + textW
	unitH := max(logoH, textH)
	tile := image.NewRGBA(image.Rect(0, 0, unitW, unitH))

	if logoW > 0 {
		scaled := image.NewRGBA(image.Rect(0, 0, logoW, logoH))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), logo, logo.Bounds(), xdraw.Src, nil)
		_, _, _, a := overlay.RGBA()
		mask := image.NewUniform(color.Alpha16{A: uint16(a)})
		dr := image.Rect(0, (unitH-logoH)/2, logoW, (unitH-logoH)/2+logoH)
		xdraw.DrawMask(tile, dr, scaled, image.Point{}, mask, image.Point{}, xdraw.Over)
	}

	d := font.Drawer{
		Dst:  tile,
		Src:  image.NewUniform(overlay),
		Face: face,
		Dot:  fixed.P(logoW+spacing, (unitH-textH)/2+ascent),
	}
	d.DrawString(text)
	return tile, nil
}

// rotate45 rotates tile 45° counter-clockwise about its top-left corner. It returns the
// rotated image and where the tile origin lies inside it.
func rotate45(tile *image.RGBA) (*image.RGBA, image.Point) {
	w, h := float64(tile.Bounds().Dx()), float64(tile.Bounds().Dy())
	cos, sin := math.Sqrt2/2, math.Sqrt2/2

	// (x, y) -> (cos*x + sin*y, -sin*x + cos*y) in image space (y down).
	corners := [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range corners {
		x := cos*p[0] + sin*p[1]
		y := -sin*p[0] + cos*p[1]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	minX, minY = math.Floor(minX), math.Floor(minY)

	out := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(maxX-minX)), int(math.Ceil(maxY-minY))))
	s2d := f64.Aff3{
		cos, sin, -minX,
		-sin, cos, -minY,
	}
	xdraw.BiLinear.Transform(out, s2d, tile, tile.Bounds(), xdraw.Over, nil)
	return out, image.Pt(int(-minX), int(-minY))
}

// fontSize scales with page width. Very wide, short pages are clamped by height so a
// single unit never dominates the page.
func fontSize(width, height int, scale float64) float64 {
	size := float64(width) / 22 * scale
	if limit := float64(height) / 12 * scale; size > limit {
		size = limit
	}
	return math.Max(size, minFontPx)
}
