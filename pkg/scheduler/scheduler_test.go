package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/tulip/pkg/reconciler"
	"github.com/Ramsey-B/tulip/pkg/scheduler"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
	err   error
	done  chan struct{}
}

func (f *fakeSyncer) FastResync(ctx context.Context) (reconciler.SyncStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 && f.done != nil {
		close(f.done)
	}
	return reconciler.SyncStats{}, f.err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestScheduler_RunsImmediatelyOnStart(t *testing.T) {
	syncer := &fakeSyncer{done: make(chan struct{})}
	s := scheduler.NewScheduler(syncer, scheduler.Config{Interval: time.Hour}, getTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ran the initial cycle")
	}
	assert.True(t, s.IsRunning())
}

func TestScheduler_StartTwiceFails(t *testing.T) {
	syncer := &fakeSyncer{}
	s := scheduler.NewScheduler(syncer, scheduler.Config{Interval: time.Hour}, getTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrSchedulerAlreadyRunning)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	syncer := &fakeSyncer{}
	s := scheduler.NewScheduler(syncer, scheduler.Config{Interval: time.Hour}, getTestLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())

	// Second stop is a no-op
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_BusyCycleIsSkippedQuietly(t *testing.T) {
	syncer := &fakeSyncer{err: reconciler.ErrSyncInProgress, done: make(chan struct{})}
	s := scheduler.NewScheduler(syncer, scheduler.Config{Interval: time.Hour}, getTestLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ran the initial cycle")
	}

	// The busy error is swallowed and the loop keeps running
	assert.True(t, s.IsRunning())
	assert.Equal(t, 1, syncer.callCount())
}
