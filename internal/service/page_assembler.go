package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/imaging"
)

// PageSource yields raw page rasters in capture order.
type PageSource interface {
	Len() int
	Page(ctx context.Context, index int) (imaging.Raster, error)
}

// ScanSource wraps uploaded camera captures.
type ScanSource struct {
	blobs [][]byte
	codec imaging.Codec
}

// NewScanSource decodes blobs lazily with codec.
func NewScanSource(blobs [][]byte, codec imaging.Codec) *ScanSource {
	if codec == nil {
		codec = imaging.NewJPEGCodec()
	}
	return &ScanSource{blobs: blobs, codec: codec}
}

// Len implements PageSource.
func (s *ScanSource) Len() int { return len(s.blobs) }

// Page implements PageSource.
func (s *ScanSource) Page(ctx context.Context, index int) (imaging.Raster, error) {
	if err := ctx.Err(); err != nil {
		return imaging.Raster{}, err
	}
	if index < 0 || index >= len(s.blobs) {
		return imaging.Raster{}, fmt.Errorf("page %d out of range", index)
	}
	img, err := s.codec.Decode(s.blobs[index])
	if err != nil {
		return imaging.Raster{}, err
	}
	return imaging.Raster{Image: img, Scale: 1}, nil
}

type watermarker interface {
	Composite(src imaging.Raster, opts imaging.WatermarkOptions) imaging.Raster
}

// PageAssembler turns a page source into encoded Page records, one page at a time.
type PageAssembler struct {
	codec      imaging.Codec
	compositor watermarker
	oracle     EntitlementOracle
	watermark  imaging.WatermarkOptions
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewPageAssembler constructs the assembler. A nil compositor disables watermarking.
func NewPageAssembler(codec imaging.Codec, compositor watermarker, oracle EntitlementOracle, watermark imaging.WatermarkOptions, metrics *MetricsService, logger *zap.Logger) *PageAssembler {
	if codec == nil {
		codec = imaging.NewJPEGCodec()
	}
	if oracle == nil {
		oracle = NewStaticEntitlement(false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageAssembler{
		codec:      codec,
		compositor: compositor,
		oracle:     oracle,
		watermark:  watermark,
		metrics:    metrics,
		logger:     logger,
	}
}

// Assemble processes every page of src in order. Any page that fails to load or encode
// aborts the batch; no partial page set is ever returned.
func (a *PageAssembler) Assemble(ctx context.Context, src PageSource, quality float64) ([]models.Page, error) {
	if src == nil || src.Len() == 0 {
		return nil, appErrors.ErrCaptureFailure
	}

	pages := make([]models.Page, 0, src.Len())
	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raster, err := src.Page(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, a.encodingFailure(i, err)
		}

		// The entitlement may flip mid-batch; each page uses the value at its own encode time.
		watermarked := false
		if a.compositor != nil && !a.oracle.IsPremiumActive(ctx) {
			raster = a.compositor.Composite(raster, a.watermark)
			watermarked = true
		}

		data, err := a.codec.Encode(raster.Image, quality)
		if err != nil {
			return nil, a.encodingFailure(i, err)
		}
		a.metrics.PageProcessed(watermarked)
		pages = append(pages, models.Page{Position: i, Image: data})
	}
	return pages, nil
}

func (a *PageAssembler) encodingFailure(index int, err error) error {
	a.logger.Warn("page assembly failed", zap.Int("position", index), zap.Error(err))
	return appErrors.Wrap(fmt.Errorf("page %d: %w", index, err), appErrors.ErrEncodingFailure.Code, appErrors.ErrEncodingFailure.Status, appErrors.ErrEncodingFailure.Message)
}
