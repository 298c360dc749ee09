package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

const defaultWidgetLimit = 20

type snapshotSource interface {
	Snapshot(ctx context.Context, limit int) ([]models.DocumentSummary, error)
}

type snapshotPublisher interface {
	Publish(ctx context.Context, snapshot models.WidgetSnapshot) error
	Get(ctx context.Context) (*models.WidgetSnapshot, error)
}

type snapshotFiles interface {
	Replace(filename string, data []byte) (string, error)
	ReadFile(filename string) ([]byte, error)
}

// WidgetConfig controls snapshot size and file location.
type WidgetConfig struct {
	SnapshotFile string
	Limit        int
}

// WidgetService publishes the read-only document projection consumed by home-screen widgets.
type WidgetService struct {
	source    snapshotSource
	publisher snapshotPublisher
	files     snapshotFiles
	cfg       WidgetConfig
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewWidgetService constructs the service. publisher and files are both optional.
func NewWidgetService(source snapshotSource, publisher snapshotPublisher, files snapshotFiles, cfg WidgetConfig, metrics *MetricsService, logger *zap.Logger) *WidgetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultWidgetLimit
	}
	return &WidgetService{
		source:    source,
		publisher: publisher,
		files:     files,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh rebuilds the snapshot from the store and publishes it to every configured sink.
func (s *WidgetService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.refreshLocked(ctx)
	s.metrics.WidgetRefreshed(err == nil)
	return err
}

func (s *WidgetService) refreshLocked(ctx context.Context) (*models.WidgetSnapshot, error) {
	items, err := s.source.Snapshot(ctx, s.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("load widget snapshot: %w", err)
	}
	snapshot := &models.WidgetSnapshot{GeneratedAt: s.now().UTC(), Documents: items}

	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, *snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	if s.files != nil && s.cfg.SnapshotFile != "" {
		payload, err := json.MarshalIndent(snapshot, "", "  ")
		if err == nil {
			_, err = s.files.Replace(s.cfg.SnapshotFile, payload)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write widget snapshot file: %w", err))
		}
	}
	if len(errs) > 0 {
		return snapshot, errors.Join(errs...)
	}
	s.logger.Debug("widget snapshot published", zap.Int("documents", len(items)))
	return snapshot, nil
}

// Latest returns the most recently published snapshot, building one if nothing was published yet.
func (s *WidgetService) Latest(ctx context.Context) (*models.WidgetSnapshot, error) {
	if s.publisher != nil {
		snapshot, err := s.publisher.Get(ctx)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("widget snapshot read failed", zap.Error(err))
		}
	}
	if s.files != nil && s.cfg.SnapshotFile != "" {
		raw, err := s.files.ReadFile(s.cfg.SnapshotFile)
		if err == nil {
			var snapshot models.WidgetSnapshot
			if err := json.Unmarshal(raw, &snapshot); err == nil {
				return &snapshot, nil
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("widget snapshot file unreadable", zap.Error(err))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, err := s.refreshLocked(ctx)
	if snapshot == nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build widget snapshot")
	}
	if err != nil {
		s.logger.Warn("widget snapshot built but not published", zap.Error(err))
	}
	return snapshot, nil
}
