package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until its context is cancelled or Stop is
// called, unless serveErr is set.
type fakeAdapter struct {
	protocol string
	endpoint string
	serveErr error

	mu      sync.Mutex
	stopped int
	stopCh  chan struct{}
	once    sync.Once
}

func newFake(protocol, endpoint string) *fakeAdapter {
	return &fakeAdapter{protocol: protocol, endpoint: endpoint, stopCh: make(chan struct{})}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.serveErr != nil {
		return f.serveErr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.stopCh:
		return context.Canceled
	}
}

func (f *fakeAdapter) Stop(context.Context) error {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
	f.once.Do(func() { close(f.stopCh) })
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Endpoint() string { return f.endpoint }

func (f *fakeAdapter) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func TestAddAdapter_RejectsDuplicates(t *testing.T) {
	srv := New()
	require.NoError(t, srv.AddAdapter(newFake("FUSE", "/mnt/a")))

	err := srv.AddAdapter(newFake("FUSE", "/mnt/b"))
	assert.ErrorContains(t, err, "already registered")

	err = srv.AddAdapter(newFake("metrics", "/mnt/a"))
	assert.ErrorContains(t, err, "already in use")

	assert.Len(t, srv.Adapters(), 1)
}

func TestServe_NoAdapters(t *testing.T) {
	err := New().Serve(context.Background())
	assert.ErrorContains(t, err, "no adapters registered")
}

func TestServe_ContextCancelStopsAll(t *testing.T) {
	srv := New()
	a := newFake("FUSE", "/mnt/a")
	b := newFake("metrics", ":9090")
	require.NoError(t, srv.AddAdapter(a))
	require.NoError(t, srv.AddAdapter(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, 1, a.stopCount())
	assert.Equal(t, 1, b.stopCount())
}

func TestServe_AdapterFailureStopsOthers(t *testing.T) {
	srv := New()
	healthy := newFake("metrics", ":9090")
	failing := newFake("FUSE", "/mnt/a")
	failing.serveErr = errors.New("mount failed")
	require.NoError(t, srv.AddAdapter(healthy))
	require.NoError(t, srv.AddAdapter(failing))

	err := srv.Serve(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "FUSE adapter error")
	assert.ErrorContains(t, err, "mount failed")
	assert.Equal(t, 1, healthy.stopCount())
}

func TestServe_OnlyOnce(t *testing.T) {
	srv := New()
	failing := newFake("FUSE", "/mnt/a")
	failing.serveErr = errors.New("boom")
	require.NoError(t, srv.AddAdapter(failing))

	require.Error(t, srv.Serve(context.Background()))
	assert.ErrorIs(t, srv.Serve(context.Background()), ErrAlreadyServed)
	assert.Error(t, srv.AddAdapter(newFake("metrics", ":9090")))
}
