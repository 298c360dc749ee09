package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
	"github.com/RodenPaul86/docmatic/pkg/storage"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *documentFixture, *storage.LocalStorage) {
	t.Helper()
	f := newDocumentFixture(t, DocumentConfig{})
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(f.svc, store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil, nil, nil, nil)
	return svc, f, store
}

func TestExportServiceRoundTripPageCount(t *testing.T) {
	svc, f, store := newExportServiceForTest(t)
	doc, err := f.svc.Create(context.Background(), "Scan", pagesOfImages(t, 3))
	require.NoError(t, err)

	link, err := svc.Export(context.Background(), "s1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, link.Pages)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/exports/"))

	token := strings.TrimPrefix(link.URL, "/api/v1/exports/")
	parsed, err := svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, parsed.ResourceID)
	assert.Equal(t, "exports/"+doc.ID+".pdf", parsed.Path)

	data, err := store.ReadFile(parsed.Path)
	require.NoError(t, err)
	count, err := api.PageCount(bytes.NewReader(data), relaxedPDFConf())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestExportServiceReplacesArtifactDeterministically(t *testing.T) {
	svc, f, store := newExportServiceForTest(t)
	doc, err := f.svc.Create(context.Background(), "Scan", pagesOfImages(t, 2))
	require.NoError(t, err)

	_, err = svc.Export(context.Background(), "s1", doc.ID)
	require.NoError(t, err)
	first, err := store.ReadFile(artifactName(doc.ID))
	require.NoError(t, err)

	_, err = svc.Export(context.Background(), "s1", doc.ID)
	require.NoError(t, err)
	second, err := store.ReadFile(artifactName(doc.ID))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExportServiceNoRenderablePages(t *testing.T) {
	svc, f, _ := newExportServiceForTest(t)
	doc, err := f.svc.Create(context.Background(), "Broken", pagesOf("not an image"))
	require.NoError(t, err)

	_, err = svc.Export(context.Background(), "s1", doc.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrExportFailure))
}

func TestExportServiceLockedDocument(t *testing.T) {
	svc, f, _ := newExportServiceForTest(t)
	doc, err := f.svc.Create(context.Background(), "Secret", pagesOfImages(t, 1))
	require.NoError(t, err)
	_, err = f.svc.Lock(context.Background(), "s1", doc.ID)
	require.NoError(t, err)

	_, err = svc.Export(context.Background(), "s1", doc.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrDocumentLocked))
}

func TestExportServiceResolveRejectsTampering(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	_, err := svc.Resolve("garbage.token")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceCleanupRemovesOldArtifacts(t *testing.T) {
	svc, f, store := newExportServiceForTest(t)
	doc, err := f.svc.Create(context.Background(), "Scan", pagesOfImages(t, 1))
	require.NoError(t, err)
	_, err = svc.Export(context.Background(), "s1", doc.ID)
	require.NoError(t, err)

	removed, err := svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Len(t, removed, 1)
	_, err = store.ReadFile(artifactName(doc.ID))
	assert.Error(t, err)
}

func TestExportServiceLibraryCSV(t *testing.T) {
	svc, f, _ := newExportServiceForTest(t)
	_, err := f.svc.Create(context.Background(), "Taxes, 2025", pagesOf("a", "b"))
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, svc.WriteLibraryCSV(context.Background(), buf))

	records, err := csv.NewReader(io.Reader(buf)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"id", "name", "created_at", "pages", "locked"}, records[0])
	assert.Equal(t, "Taxes, 2025", records[1][1])
	assert.Equal(t, "2", records[1][3])
	assert.Equal(t, "false", records[1][4])
}

func pagesOfImages(t *testing.T, n int) []models.Page {
	t.Helper()
	pages := make([]models.Page, n)
	for i := range pages {
		pages[i] = models.Page{Position: i, Image: pngBlob(t, 40+i*10, 60, color.Gray{Y: uint8(40 * i)})}
	}
	return pages
}

func relaxedPDFConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
