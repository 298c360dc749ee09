package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/RodenPaul86/docmatic/internal/models"
	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

const dayLayout = "2006-01-02"

type quotaSource interface {
	Count(ctx context.Context) (int, error)
	CreationTimes(ctx context.Context) ([]time.Time, error)
}

// QuotaConfig holds the free-tier policy.
type QuotaConfig struct {
	FreeLimit int
	Location  *time.Location
}

// QuotaService tracks document count and creation days. Its state is a cache derived
// from the document store and is rebuilt by Sync, never loaded from a stored counter.
type QuotaService struct {
	repo    quotaSource
	oracle  EntitlementOracle
	cfg     QuotaConfig
	logger  *zap.Logger
	now     func() time.Time
	syncers singleflight.Group

	// changes is held shared by store writes until their Record call and exclusively by Sync.
	changes sync.RWMutex

	mu    sync.RWMutex
	count int
	days  map[string]int
}

// NewQuotaService constructs the engine. Call Sync before serving traffic.
func NewQuotaService(repo quotaSource, oracle EntitlementOracle, cfg QuotaConfig, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FreeLimit < 0 {
		cfg.FreeLimit = 0
	}
	if oracle == nil {
		oracle = NewStaticEntitlement(false)
	}
	return &QuotaService{
		repo:   repo,
		oracle: oracle,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		days:   make(map[string]int),
	}
}

// BeginChange marks a store write whose outcome will be reported through RecordCreation
// or RecordDeletion. Sync waits for every open change, and changes begun during a Sync
// wait for it. Call the returned func after recording (or abandoning) the write.
func (s *QuotaService) BeginChange() func() {
	s.changes.RLock()
	return s.changes.RUnlock
}

// Sync recomputes count and creation days from the store. Concurrent calls share one load.
func (s *QuotaService) Sync(ctx context.Context) error {
	_, err, shared := s.syncers.Do("sync", func() (interface{}, error) {
		s.changes.Lock()
		defer s.changes.Unlock()

		count, err := s.repo.Count(ctx)
		if err != nil {
			return nil, err
		}
		times, err := s.repo.CreationTimes(ctx)
		if err != nil {
			return nil, err
		}
		days := make(map[string]int, len(times))
		for _, ts := range times {
			days[s.dayKey(ts)]++
		}

		s.mu.Lock()
		s.count = count
		s.days = days
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync quota")
	}
	if !shared {
		s.logger.Debug("quota synced", zap.Int("count", s.Count()), zap.Int("streak", s.Streak()))
	}
	return nil
}

// Count returns the tracked number of documents.
func (s *QuotaService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// RemainingFree returns max(freeLimit-count, 0).
func (s *QuotaService) RemainingFree() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return max(s.cfg.FreeLimit-s.count, 0)
}

// Streak returns the number of consecutive days, ending today, with at least one creation.
func (s *QuotaService) Streak() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streakLocked()
}

// RecordCreation registers one durably persisted document created at createdAt.
func (s *QuotaService) RecordCreation(createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	s.days[s.dayKey(createdAt)]++
}

// RecordDeletion registers one deleted document. The count never goes below zero.
// A zero createdAt only adjusts the count.
func (s *QuotaService) RecordDeletion(createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count--
	}
	if createdAt.IsZero() {
		return
	}
	key := s.dayKey(createdAt)
	if s.days[key] <= 1 {
		delete(s.days, key)
		return
	}
	s.days[key]--
}

// State returns the current quota view including the entitlement.
func (s *QuotaService) State(ctx context.Context) models.QuotaState {
	premium := s.oracle.IsPremiumActive(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	remaining := max(s.cfg.FreeLimit-s.count, 0)
	return models.QuotaState{
		Count:         s.count,
		FreeLimit:     s.cfg.FreeLimit,
		RemainingFree: remaining,
		Streak:        s.streakLocked(),
		Premium:       premium,
		CanCreate:     premium || remaining > 0,
	}
}

// CheckCreationAllowed returns ErrQuotaExceeded when the free tier is exhausted and the
// user is not premium.
func (s *QuotaService) CheckCreationAllowed(ctx context.Context) error {
	if s.oracle.IsPremiumActive(ctx) {
		return nil
	}
	if s.RemainingFree() <= 0 {
		return appErrors.ErrQuotaExceeded
	}
	return nil
}

func (s *QuotaService) streakLocked() int {
	day := s.startOfDay(s.now())
	streak := 0
	for s.days[day.Format(dayLayout)] > 0 {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func (s *QuotaService) startOfDay(t time.Time) time.Time {
	t = t.In(s.cfg.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.Location)
}

func (s *QuotaService) dayKey(t time.Time) string {
	return t.In(s.cfg.Location).Format(dayLayout)
}
