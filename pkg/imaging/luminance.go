package imaging

import (
	"image"
	"image/color"
)

// maxSamplesPerAxis bounds the work done when averaging large captures.
const maxSamplesPerAxis = 64

var (
	lightOverlay = color.NRGBA{R: 250, G: 250, B: 250}
	darkOverlay  = color.NRGBA{R: 15, G: 15, B: 15}
)

// CenterLuminance averages the central 50%×50% region and returns 0.299R+0.587G+0.114B in [0,1].
func CenterLuminance(img image.Image) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 1
	}
	region := image.Rect(b.Min.X+w/4, b.Min.Y+h/4, b.Min.X+w/4+max(w/2, 1), b.Min.Y+h/4+max(h/2, 1))

	stepX := max(region.Dx()/maxSamplesPerAxis, 1)
	stepY := max(region.Dy()/maxSamplesPerAxis, 1)

	var sumR, sumG, sumB float64
	var n int
	for y := region.Min.Y; y < region.Max.Y; y += stepY {
		for x := region.Min.X; x < region.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			sumR += float64(r)
			sumG += float64(g)
			sumB += float64(bl)
			n++
		}
	}
	if n == 0 {
		return 1
	}
	avgR := sumR / float64(n) / 0xffff
	avgG := sumG / float64(n) / 0xffff
	avgB := sumB / float64(n) / 0xffff
	return 0.299*avgR + 0.587*avgG + 0.114*avgB
}

// OverlayColor picks a near-white overlay for dark backgrounds and a near-black one otherwise.
func OverlayColor(img image.Image, alpha uint8) color.NRGBA {
	c := darkOverlay
	if CenterLuminance(img) < 0.5 {
		c = lightOverlay
	}
	c.A = alpha
	return c
}
