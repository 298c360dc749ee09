package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/imaging"
)

func pngBlob(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

type countingCompositor struct {
	calls int
}

func (c *countingCompositor) Composite(src imaging.Raster, opts imaging.WatermarkOptions) imaging.Raster {
	c.calls++
	return src
}

// flippingOracle turns premium on after a number of checks.
type flippingOracle struct {
	checks    int
	flipAfter int
}

func (o *flippingOracle) IsPremiumActive(context.Context) bool {
	o.checks++
	return o.checks > o.flipAfter
}

type failingSource struct {
	failAt int
	inner  PageSource
}

func (s failingSource) Len() int { return s.inner.Len() }

func (s failingSource) Page(ctx context.Context, i int) (imaging.Raster, error) {
	if i == s.failAt {
		return imaging.Raster{}, errors.New("camera buffer lost")
	}
	return s.inner.Page(ctx, i)
}

func TestPageAssemblerOrdersPagesAndEncodesJPEG(t *testing.T) {
	comp := &countingCompositor{}
	assembler := NewPageAssembler(nil, comp, NewStaticEntitlement(false), imaging.WatermarkOptions{}, nil, nil)
	src := NewScanSource([][]byte{
		pngBlob(t, 30, 40, color.White),
		pngBlob(t, 50, 20, color.Black),
		pngBlob(t, 10, 10, color.Gray{Y: 128}),
	}, nil)

	pages, err := assembler.Assemble(context.Background(), src, 0.65)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	seen := map[int]bool{}
	for i, p := range pages {
		assert.Equal(t, i, p.Position)
		assert.False(t, seen[p.Position])
		seen[p.Position] = true
		_, _, format, err := imaging.Dimensions(p.Image)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	}
	w, h, _, _ := imaging.Dimensions(pages[1].Image)
	assert.Equal(t, []int{50, 20}, []int{w, h})
	assert.Equal(t, 3, comp.calls)
}

func TestPageAssemblerSkipsWatermarkForPremium(t *testing.T) {
	comp := &countingCompositor{}
	assembler := NewPageAssembler(nil, comp, NewStaticEntitlement(true), imaging.WatermarkOptions{}, nil, nil)
	src := NewScanSource([][]byte{pngBlob(t, 8, 8, color.White)}, nil)

	_, err := assembler.Assemble(context.Background(), src, 0.65)
	require.NoError(t, err)
	assert.Equal(t, 0, comp.calls)
}

func TestPageAssemblerReadsEntitlementPerPage(t *testing.T) {
	comp := &countingCompositor{}
	assembler := NewPageAssembler(nil, comp, &flippingOracle{flipAfter: 1}, imaging.WatermarkOptions{}, nil, nil)
	src := NewScanSource([][]byte{pngBlob(t, 8, 8, color.White), pngBlob(t, 8, 8, color.White), pngBlob(t, 8, 8, color.White)}, nil)

	pages, err := assembler.Assemble(context.Background(), src, 0.65)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, 1, comp.calls)
}

func TestPageAssemblerAbortsBatchOnPageFailure(t *testing.T) {
	assembler := NewPageAssembler(nil, nil, nil, imaging.WatermarkOptions{}, nil, nil)
	src := failingSource{failAt: 1, inner: NewScanSource([][]byte{pngBlob(t, 8, 8, color.White), nil, pngBlob(t, 8, 8, color.White)}, nil)}

	pages, err := assembler.Assemble(context.Background(), src, 0.65)
	assert.Nil(t, pages)
	assert.True(t, appErrors.Is(err, appErrors.ErrEncodingFailure))
}

func TestPageAssemblerUndecodableUpload(t *testing.T) {
	assembler := NewPageAssembler(nil, nil, nil, imaging.WatermarkOptions{}, nil, nil)
	src := NewScanSource([][]byte{[]byte("garbage")}, nil)

	_, err := assembler.Assemble(context.Background(), src, 0.65)
	assert.True(t, appErrors.Is(err, appErrors.ErrEncodingFailure))
}

func TestPageAssemblerZeroPages(t *testing.T) {
	assembler := NewPageAssembler(nil, nil, nil, imaging.WatermarkOptions{}, nil, nil)
	_, err := assembler.Assemble(context.Background(), NewScanSource(nil, nil), 0.65)
	assert.True(t, appErrors.Is(err, appErrors.ErrCaptureFailure))
}

func TestPageAssemblerHonoursCancellation(t *testing.T) {
	assembler := NewPageAssembler(nil, nil, nil, imaging.WatermarkOptions{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := assembler.Assemble(ctx, NewScanSource([][]byte{pngBlob(t, 8, 8, color.White)}, nil), 0.65)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageAssemblerWithRealCompositorKeepsDimensions(t *testing.T) {
	comp, err := imaging.NewCompositor(0.3, 1)
	require.NoError(t, err)
	assembler := NewPageAssembler(nil, comp, nil, imaging.WatermarkOptions{Text: "DocMatic"}, nil, nil)
	src := NewScanSource([][]byte{pngBlob(t, 120, 200, color.White)}, nil)

	pages, err := assembler.Assemble(context.Background(), src, 0.65)
	require.NoError(t, err)
	w, h, _, err := imaging.Dimensions(pages[0].Image)
	require.NoError(t, err)
	assert.Equal(t, []int{120, 200}, []int{w, h})
}
