package pdfimport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const instanceTimeout = 30 * time.Second

// Rasterizer owns a pool of PDFium WebAssembly instances used to draw imported pages.
type Rasterizer struct {
	pool pdfium.Pool
}

// NewRasterizer starts a pool with up to workers concurrent instances.
func NewRasterizer(workers int) (*Rasterizer, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("start pdfium: %w", err)
	}
	return &Rasterizer{pool: pool}, nil
}

// Open validates data and reads every page's media box. dpi sets the raster resolution.
// Rendering starts on the first Page call; Close releases it.
func (r *Rasterizer) Open(data []byte, dpi float64) (*Source, error) {
	if dpi <= 0 {
		dpi = 144
	}
	dims, err := api.PageDims(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf pages: %w", err)
	}
	if len(dims) == 0 {
		return nil, ErrNoPages
	}
	boxes := make([]mediaBox, len(dims))
	for i, d := range dims {
		boxes[i] = mediaBox{width: d.Width, height: d.Height}
	}
	return &Source{data: data, dims: boxes, dpi: dpi, rasterizer: r}, nil
}

// Close shuts the instance pool down.
func (r *Rasterizer) Close() error {
	return r.pool.Close()
}
