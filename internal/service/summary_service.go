package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

// Recognizer extracts text from one encoded page image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Summarizer condenses text to roughly targetWords words.
type Summarizer interface {
	Summarize(ctx context.Context, text string, targetWords int) (string, error)
}

type pageContent interface {
	Content(ctx context.Context, sessionID, id string) (*models.Document, []models.Page, error)
}

type lengthPresets interface {
	TargetWords(length string) int
}

// SummaryService runs OCR over a document's pages and forwards the text to the summarizer.
type SummaryService struct {
	documents  pageContent
	recognizer Recognizer
	summarizer Summarizer
	presets    lengthPresets
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewSummaryService constructs the bridge. A nil summarizer makes every attempt fail softly.
func NewSummaryService(documents pageContent, recognizer Recognizer, summarizer Summarizer, presets lengthPresets, metrics *MetricsService, logger *zap.Logger) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{
		documents:  documents,
		recognizer: recognizer,
		summarizer: summarizer,
		presets:    presets,
		metrics:    metrics,
		logger:     logger,
	}
}

// ExtractText recognizes pages in order. A page that fails contributes an empty line.
// It returns the joined text and the number of failed pages.
func (s *SummaryService) ExtractText(ctx context.Context, pages []models.Page) (string, int, error) {
	texts := make([]string, len(pages))
	failed := 0
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		if s.recognizer == nil {
			failed++
			continue
		}
		text, err := s.recognizer.Recognize(ctx, page.Image)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", 0, ctxErr
			}
			s.logger.Debug("page ocr failed", zap.Int("position", page.Position), zap.Error(err))
			failed++
			continue
		}
		texts[i] = text
	}
	return strings.Join(texts, "\n"), failed, nil
}

// Summarize extracts the document text and requests a summary of the given length preset.
// External failures come back as an unsuccessful result, not an error. Cancellation
// returns ctx.Err().
func (s *SummaryService) Summarize(ctx context.Context, sessionID, documentID, length string) (*models.SummaryResult, error) {
	doc, pages, err := s.documents.Content(ctx, sessionID, documentID)
	if err != nil {
		return nil, err
	}

	target := 150
	if s.presets != nil {
		target = s.presets.TargetWords(length)
	}
	result := &models.SummaryResult{DocumentID: doc.ID, TargetWords: target}

	text, failed, err := s.ExtractText(ctx, pages)
	if err != nil {
		return nil, err
	}
	result.PagesFailed = failed
	result.PagesRead = len(pages) - failed

	if s.summarizer == nil || strings.TrimSpace(text) == "" {
		return s.failed(result, errors.New("nothing to summarize")), nil
	}

	summary, err := s.summarizer.Summarize(ctx, text, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return s.failed(result, err), nil
	}

	result.Succeeded = true
	result.Summary = summary
	s.metrics.SummaryAttempted(true)
	return result, nil
}

func (s *SummaryService) failed(result *models.SummaryResult, cause error) *models.SummaryResult {
	s.logger.Warn("summarization failed", zap.String("document_id", result.DocumentID), zap.Error(cause))
	s.metrics.SummaryAttempted(false)
	result.Succeeded = false
	result.Message = appErrors.ErrSummarizationFailure.Message
	return result
}
