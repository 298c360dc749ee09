package export

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/RodenPaul86/docmatic/pkg/imaging"
)

// ErrNoRenderablePages is returned when none of the supplied pages could be decoded.
var ErrNoRenderablePages = errors.New("no renderable pages")

// PageImage is one encoded page and its ordering key.
type PageImage struct {
	Position int
	Data     []byte
}

// RenderMeta carries document-level PDF metadata. CreatedAt pins the PDF dates so that
// the same document always renders to the same bytes.
type RenderMeta struct {
	Title     string
	CreatedAt time.Time
}

// RenderResult is a rendered PDF artifact.
type RenderResult struct {
	Data    []byte
	Pages   int
	Skipped []int
}

// PDFRenderer assembles raster pages into a paginated PDF, one page per image.
type PDFRenderer struct {
	producer string
}

// NewPDFRenderer constructs a renderer stamping producer into the PDF info dictionary.
func NewPDFRenderer(producer string) *PDFRenderer {
	return &PDFRenderer{producer: producer}
}

type preparedPage struct {
	position  int
	name      string
	imageType string
	width     float64
	height    float64
	data      []byte
}

// Render lays out pages in position order. Each PDF page is sized to the image's pixel
// dimensions (1px = 1pt). Pages that fail to decode are skipped and reported.
func (r *PDFRenderer) Render(pages []PageImage, meta RenderMeta) (*RenderResult, error) {
	ordered := make([]PageImage, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	prepared := make([]preparedPage, 0, len(ordered))
	skipped := make([]int, 0)
	for _, page := range ordered {
		p, err := preparePage(page)
		if err != nil {
			skipped = append(skipped, page.Position)
			continue
		}
		prepared = append(prepared, p)
	}
	if len(prepared) == 0 {
		return nil, ErrNoRenderablePages
	}

	stamp := meta.CreatedAt.UTC()
	if meta.CreatedAt.IsZero() {
		stamp = time.Unix(0, 0).UTC()
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: prepared[0].width, Ht: prepared[0].height},
	})
	pdf.SetCompression(true)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetProducer(r.producer, true)
	pdf.SetCreator(r.producer, true)
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	for _, p := range prepared {
		opts := gofpdf.ImageOptions{ImageType: p.imageType, ReadDpi: false}
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: p.width, Ht: p.height})
		pdf.RegisterImageOptionsReader(p.name, opts, bytes.NewReader(p.data))
		pdf.ImageOptions(p.name, 0, 0, p.width, p.height, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("render page %d: %w", p.position, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &RenderResult{Data: buf.Bytes(), Pages: len(prepared), Skipped: skipped}, nil
}

func preparePage(page PageImage) (preparedPage, error) {
	w, h, format, err := imaging.Dimensions(page.Data)
	if err != nil {
		return preparedPage{}, err
	}
	p := preparedPage{
		position: page.Position,
		name:     fmt.Sprintf("page-%d", page.Position),
		width:    float64(w),
		height:   float64(h),
		data:     page.Data,
	}
	switch format {
	case "jpeg":
		p.imageType = "JPG"
	case "png":
		p.imageType = "PNG"
	case "gif":
		p.imageType = "GIF"
	default:
		// WebP, TIFF and BMP are not embeddable; convert to PNG.
		img, err := imaging.NewJPEGCodec().Decode(page.Data)
		if err != nil {
			return preparedPage{}, err
		}
		buf := &bytes.Buffer{}
		if err := png.Encode(buf, img); err != nil {
			return preparedPage{}, fmt.Errorf("convert page %d: %w", page.Position, err)
		}
		p.imageType = "PNG"
		p.data = buf.Bytes()
	}
	return p, nil
}
