package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, s)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func blocking(name string, rec *recorder, started *atomic.Int32) Service {
	return ServiceFunc(func(ctx context.Context) error {
		started.Add(1)
		<-ctx.Done()
		rec.add(name)
		return nil
	})
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	rec := &recorder{}
	var started atomic.Int32
	lc.Add("store", blocking("store", rec, &started))
	lc.Add("watcher", blocking("watcher", rec, &started))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool { return started.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"watcher", "store"}, rec.get())
}

func TestLifecycle_FailureStopsOthers(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	rec := &recorder{}
	var started atomic.Int32
	boom := errors.New("boom")
	lc.Add("store", blocking("store", rec, &started))
	lc.Add("broken", ServiceFunc(func(ctx context.Context) error { return boom }))

	err := lc.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"store"}, rec.get())
}

func TestLifecycle_EarlyCleanExitIsFailure(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	lc.Add("quitter", ServiceFunc(func(ctx context.Context) error { return nil }))
	err := lc.Run(context.Background())
	assert.ErrorIs(t, err, errExitedEarly)
}

func TestLifecycle_GracePeriod(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	lc.Add("stuck", ServiceFunc(func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.NoError(t, lc.Run(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCloser(t *testing.T) {
	closed := false
	svc := Closer(func() error {
		closed = true
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))
	assert.True(t, closed)
}
