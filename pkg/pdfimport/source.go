// Package pdfimport turns an imported PDF into raster pages for the page assembler.
package pdfimport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	xdraw "golang.org/x/image/draw"

	"github.com/RodenPaul86/docmatic/pkg/imaging"
)

// ErrNoPages is returned for PDFs without any page.
var ErrNoPages = errors.New("pdf has no pages")

// maxEdgePx caps the rendered long edge so one page stays within a bounded memory budget.
const maxEdgePx = 6000

func init() {
	api.DisableConfigDir()
}

// Source renders the pages of an in-memory PDF lazily, one page per call.
type Source struct {
	data       []byte
	dims       []mediaBox
	dpi        float64
	rasterizer *Rasterizer

	mu       sync.Mutex
	instance pdfium.Pdfium
	document references.FPDF_DOCUMENT
	closed   bool
}

type mediaBox struct {
	width  float64
	height float64
}

// Len reports the number of pages.
func (s *Source) Len() int {
	return len(s.dims)
}

// Page draws page index (0-based) at the media box size on an opaque white background.
func (s *Source) Page(ctx context.Context, index int) (imaging.Raster, error) {
	if err := ctx.Err(); err != nil {
		return imaging.Raster{}, err
	}
	if index < 0 || index >= len(s.dims) {
		return imaging.Raster{}, fmt.Errorf("page %d out of range", index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return imaging.Raster{}, err
	}

	dpi := renderDPI(s.dims[index], s.dpi)
	rendered, err := s.instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: dpi,
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{Document: s.document, Index: index},
		},
	})
	if err != nil {
		return imaging.Raster{}, fmt.Errorf("render page %d: %w", index+1, err)
	}
	defer rendered.Cleanup()

	src := rendered.Result.Image
	if src == nil {
		return imaging.Raster{}, fmt.Errorf("render page %d: empty bitmap", index+1)
	}
	canvas := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	xdraw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, xdraw.Src)
	return imaging.Raster{Image: canvas, Scale: float64(dpi) / 72}, nil
}

// Close releases the rendering instance. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.instance == nil {
		return nil
	}
	_, closeErr := s.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: s.document})
	err := errors.Join(closeErr, s.instance.Close())
	s.instance = nil
	return err
}

func (s *Source) openLocked() error {
	if s.closed {
		return errors.New("pdf source closed")
	}
	if s.instance != nil {
		return nil
	}
	instance, err := s.rasterizer.pool.GetInstance(instanceTimeout)
	if err != nil {
		return fmt.Errorf("acquire pdfium instance: %w", err)
	}
	doc, err := instance.OpenDocument(&requests.OpenDocument{File: &s.data})
	if err != nil {
		_ = instance.Close()
		return fmt.Errorf("open pdf: %w", err)
	}
	s.instance = instance
	s.document = doc.Document
	return nil
}

// renderDPI lowers dpi when the page's long edge would exceed maxEdgePx.
func renderDPI(box mediaBox, dpi float64) int {
	long := math.Max(box.width, box.height)
	if long > 0 && long*dpi/72 > maxEdgePx {
		dpi = maxEdgePx * 72 / long
	}
	return max(int(math.Floor(dpi)), 1)
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
