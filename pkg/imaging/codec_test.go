package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJPEGCodecRoundTrip(t *testing.T) {
	codec := NewJPEGCodec()
	src := solid(64, 48, color.RGBA{R: 120, G: 130, B: 140, A: 255})

	data, err := codec.Encode(src, 0.65)
	require.NoError(t, err)

	w, h, format, err := Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
	assert.Equal(t, "jpeg", format)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), decoded.Bounds())
}

func TestJPEGCodecLowerQualityIsSmaller(t *testing.T) {
	codec := NewJPEGCodec()
	src := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 2), B: uint8(x ^ y), A: 255})
		}
	}
	low, err := codec.Encode(src, 0.3)
	require.NoError(t, err)
	high, err := codec.Encode(src, 0.95)
	require.NoError(t, err)
	assert.Less(t, len(low), len(high))
}

func TestJPEGCodecDecodesPNG(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, solid(10, 20, color.White)))

	img, err := NewJPEGCodec().Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 20), img.Bounds())
}

func TestJPEGCodecRejectsGarbage(t *testing.T) {
	_, err := NewJPEGCodec().Decode([]byte("not an image"))
	require.Error(t, err)
	_, _, _, err = Dimensions([]byte("nope"))
	require.Error(t, err)
}

func TestFlattenTransparentOntoWhite(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	out := Flatten(img)
	r, g, b, a := out.At(1, 1).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, b, a})
}
