package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/RodenPaul86/docmatic/pkg/errors"
)

type quotaSourceStub struct {
	count int
	times []time.Time
	err   error
	calls int32
	gate  chan struct{}
}

func (s *quotaSourceStub) Count(ctx context.Context) (int, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return 0, s.err
	}
	return s.count, nil
}

func (s *quotaSourceStub) CreationTimes(ctx context.Context) ([]time.Time, error) {
	return s.times, nil
}

var quotaNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newQuotaForTest(repo quotaSource, premium bool) *QuotaService {
	svc := NewQuotaService(repo, NewStaticEntitlement(premium), QuotaConfig{FreeLimit: 3, Location: time.UTC}, nil)
	svc.now = func() time.Time { return quotaNow }
	return svc
}

func TestQuotaStreakStopsAtFirstGap(t *testing.T) {
	repo := &quotaSourceStub{count: 4, times: []time.Time{
		quotaNow.Add(-2 * time.Hour),
		quotaNow.Add(-1 * time.Hour),
		quotaNow.AddDate(0, 0, -1),
		quotaNow.AddDate(0, 0, -3),
	}}
	svc := newQuotaForTest(repo, false)
	require.NoError(t, svc.Sync(context.Background()))

	assert.Equal(t, 2, svc.Streak())
	assert.Equal(t, 4, svc.Count())
}

func TestQuotaStreakZeroWhenTodayMissing(t *testing.T) {
	repo := &quotaSourceStub{count: 2, times: []time.Time{quotaNow.AddDate(0, 0, -1), quotaNow.AddDate(0, 0, -2)}}
	svc := newQuotaForTest(repo, false)
	require.NoError(t, svc.Sync(context.Background()))

	assert.Equal(t, 0, svc.Streak())
}

func TestQuotaStreakUsesConfiguredZone(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*3600)
	// 03:00 UTC on the 10th is the evening of the 9th in UTC-5.
	repo := &quotaSourceStub{count: 2, times: []time.Time{
		time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
	}}
	svc := NewQuotaService(repo, nil, QuotaConfig{FreeLimit: 3, Location: zone}, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.Sync(context.Background()))

	assert.Equal(t, 2, svc.Streak())
}

func TestQuotaRemainingFreeNeverNegative(t *testing.T) {
	svc := newQuotaForTest(&quotaSourceStub{}, false)
	require.NoError(t, svc.Sync(context.Background()))
	assert.Equal(t, 3, svc.RemainingFree())

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.CheckCreationAllowed(context.Background()))
		svc.RecordCreation(quotaNow)
	}
	assert.Equal(t, 0, svc.RemainingFree())

	err := svc.CheckCreationAllowed(context.Background())
	assert.True(t, appErrors.Is(err, appErrors.ErrQuotaExceeded))
	assert.Equal(t, 0, svc.RemainingFree())
	assert.Equal(t, 1, svc.Streak())
}

func TestQuotaRecordDeletionFloorsAtZero(t *testing.T) {
	svc := newQuotaForTest(&quotaSourceStub{count: 1, times: []time.Time{quotaNow}}, false)
	require.NoError(t, svc.Sync(context.Background()))

	svc.RecordDeletion(quotaNow)
	assert.Equal(t, 0, svc.Count())
	assert.Equal(t, 0, svc.Streak())

	svc.RecordDeletion(time.Time{})
	assert.Equal(t, 0, svc.Count())
	assert.Equal(t, 3, svc.RemainingFree())
}

func TestQuotaPremiumAlwaysAllowed(t *testing.T) {
	svc := newQuotaForTest(&quotaSourceStub{count: 10}, true)
	require.NoError(t, svc.Sync(context.Background()))

	require.NoError(t, svc.CheckCreationAllowed(context.Background()))
	state := svc.State(context.Background())
	assert.True(t, state.Premium)
	assert.True(t, state.CanCreate)
	assert.Equal(t, 0, state.RemainingFree)
	assert.Equal(t, 10, state.Count)
}

func TestQuotaSyncReplacesCachedCount(t *testing.T) {
	repo := &quotaSourceStub{count: 1}
	svc := newQuotaForTest(repo, false)
	require.NoError(t, svc.Sync(context.Background()))
	svc.RecordCreation(quotaNow)
	svc.RecordCreation(quotaNow)
	assert.Equal(t, 3, svc.Count())

	require.NoError(t, svc.Sync(context.Background()))
	assert.Equal(t, 1, svc.Count())
}

func TestQuotaSyncCollapsesConcurrentCalls(t *testing.T) {
	repo := &quotaSourceStub{count: 2, gate: make(chan struct{})}
	svc := newQuotaForTest(repo, false)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Sync(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&repo.calls) >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Less(t, atomic.LoadInt32(&repo.calls), int32(5))
	assert.Equal(t, 2, svc.Count())
}

func TestQuotaSyncError(t *testing.T) {
	svc := newQuotaForTest(&quotaSourceStub{err: errors.New("db down")}, false)
	err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

// pausingSource stalls the first CreationTimes call, after Count has already been read.
type pausingSource struct {
	*memDocumentRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *pausingSource) CreationTimes(ctx context.Context) ([]time.Time, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return s.memDocumentRepo.CreationTimes(ctx)
}

func TestQuotaSyncDoesNotLoseConcurrentCreation(t *testing.T) {
	repo := newMemDocumentRepo()
	src := &pausingSource{memDocumentRepo: repo, entered: make(chan struct{}), release: make(chan struct{})}
	quota := NewQuotaService(src, nil, QuotaConfig{FreeLimit: 3}, nil)
	docs := NewDocumentService(repo, quota, nil, nil, nil, nil, nil, DocumentConfig{})

	syncDone := make(chan error, 1)
	go func() { syncDone <- quota.Sync(context.Background()) }()
	<-src.entered

	createDone := make(chan error, 1)
	go func() {
		_, err := docs.Create(context.Background(), "Receipt", pagesOf("a"))
		createDone <- err
	}()

	select {
	case <-createDone:
		t.Fatal("document committed while a quota sync was reading the store")
	case <-time.After(50 * time.Millisecond):
	}

	close(src.release)
	require.NoError(t, <-syncDone)
	require.NoError(t, <-createDone)

	assert.Equal(t, 1, quota.Count())
	assert.Equal(t, 2, quota.RemainingFree())

	require.NoError(t, quota.Sync(context.Background()))
	assert.Equal(t, 1, quota.Count())
}

func TestQuotaSyncWaitsForOpenChange(t *testing.T) {
	repo := newMemDocumentRepo()
	quota := NewQuotaService(repo, nil, QuotaConfig{FreeLimit: 3}, nil)

	done := quota.BeginChange()
	repo.seed("Invoice", quotaNow)

	syncDone := make(chan error, 1)
	go func() { syncDone <- quota.Sync(context.Background()) }()

	select {
	case <-syncDone:
		t.Fatal("sync ran while a store write was unrecorded")
	case <-time.After(50 * time.Millisecond):
	}

	quota.RecordCreation(quotaNow)
	done()
	require.NoError(t, <-syncDone)
	assert.Equal(t, 1, quota.Count())
}
