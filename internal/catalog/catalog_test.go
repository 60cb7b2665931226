package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdesk/internal/testutil"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls   atomic.Int32
	err     error
	schemas []core.Schema
	gate    chan struct{}
}

func (f *fakeFetcher) FetchSchemas(ctx context.Context, _ string) ([]core.Schema, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.schemas, nil
}

var testSchemas = []core.Schema{
	{Name: "public", Tables: []core.Table{{Name: "users", Columns: []core.Column{{Name: "id", DataType: "integer"}}}}},
}

func newTestCatalog(t *testing.T, f Fetcher) *Catalog {
	t.Helper()
	c, err := New(f, 0, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// settle waits until buffered cache writes are applied.
func settle(c *Catalog) {
	c.cache.Wait()
}

func TestCatalog_LoadCaches(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas}
	c := newTestCatalog(t, f)
	ctx := context.Background()

	got, err := c.Load(ctx, "postgresql://u@h/db")
	require.NoError(t, err)
	assert.Equal(t, testSchemas, got)
	settle(c)
	assert.True(t, c.Cached("postgresql://u@h/db"))

	got, err = c.Load(ctx, "postgresql://u@h/db")
	require.NoError(t, err)
	assert.Equal(t, testSchemas, got)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCatalog_KeysByConnection(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas}
	c := newTestCatalog(t, f)
	ctx := context.Background()

	_, err := c.Load(ctx, "postgresql://u@a/db")
	require.NoError(t, err)
	_, err = c.Load(ctx, "postgresql://u@b/db")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCatalog_InvalidateAndRefresh(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas}
	c := newTestCatalog(t, f)
	ctx := context.Background()
	cs := "postgresql://u@h/db"

	_, err := c.Load(ctx, cs)
	require.NoError(t, err)
	settle(c)

	c.Invalidate(cs)
	assert.False(t, c.Cached(cs))
	_, err = c.Load(ctx, cs)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
	settle(c)

	_, err = c.Refresh(ctx, cs)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestCatalog_FetchErrorIsConnectivityError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	c := newTestCatalog(t, f)

	_, err := c.Load(context.Background(), "postgresql://u:secret@h/db")
	var connErr *core.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "load schemas", connErr.Op)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotContains(t, err.Error(), "secret")

	assert.False(t, c.Cached("postgresql://u:secret@h/db"))
	_, err = c.Load(context.Background(), "postgresql://u:secret@h/db")
	assert.Error(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCatalog_KeepsExistingConnectivityError(t *testing.T) {
	orig := &core.ConnectivityError{Op: "dial", Err: errors.New("x")}
	c := newTestCatalog(t, &fakeFetcher{err: orig})

	_, err := c.Load(context.Background(), "postgresql://u@h/db")
	var connErr *core.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Same(t, orig, connErr)
}

func TestCatalog_NilSchemasBecomeEmpty(t *testing.T) {
	c := newTestCatalog(t, &fakeFetcher{})

	got, err := c.Load(context.Background(), "postgresql://u@h/db")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCatalog_ConcurrentLoadsShareFetch(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas, gate: make(chan struct{})}
	c := newTestCatalog(t, f)

	const n = 8
	var wg sync.WaitGroup
	started := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			got, err := c.Load(context.Background(), "postgresql://u@h/db")
			assert.NoError(t, err)
			assert.Equal(t, testSchemas, got)
		}()
	}
	for i := 0; i < n; i++ {
		<-started
	}
	require.Eventually(t, func() bool { return f.calls.Load() >= 1 }, testutil.DefaultWait, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.LessOrEqual(t, f.calls.Load(), int32(n))
	settle(c)
	assert.True(t, c.Cached("postgresql://u@h/db"))
}

func TestCatalog_CancelledCallerDoesNotCancelSharedFetch(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas, gate: make(chan struct{})}
	c := newTestCatalog(t, f)
	cs := "postgresql://u@h/db"

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.Load(ctxA, cs)
		errA <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, testutil.DefaultWait, time.Millisecond)

	type result struct {
		schemas []core.Schema
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		got, err := c.Load(context.Background(), cs)
		resB <- result{got, err}
	}()
	testutil.NoReceive(t, resB, 20*time.Millisecond)

	cancelA()
	err := testutil.Receive(t, errA)
	assert.ErrorIs(t, err, context.Canceled)
	var connErr *core.ConnectivityError
	assert.False(t, errors.As(err, &connErr))

	close(f.gate)
	b := testutil.Receive(t, resB)
	require.NoError(t, b.err)
	assert.Equal(t, testSchemas, b.schemas)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestCatalog_FetchTimeoutIsNotConnectivityError(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas, gate: make(chan struct{})}
	c, err := New(f, 0, testutil.NewTestLogger(t), WithFetchTimeout(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.Load(context.Background(), "postgresql://u@h/db")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var connErr *core.ConnectivityError
	assert.False(t, errors.As(err, &connErr))
}

func TestCatalog_InvalidateKeepsInFlightFetch(t *testing.T) {
	f := &fakeFetcher{schemas: testSchemas, gate: make(chan struct{})}
	c := newTestCatalog(t, f)
	cs := "postgresql://u@h/db"

	errs := make(chan error, 2)
	go func() {
		_, err := c.Load(context.Background(), cs)
		errs <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, testutil.DefaultWait, time.Millisecond)

	c.Invalidate(cs)
	go func() {
		_, err := c.Load(context.Background(), cs)
		errs <- err
	}()
	testutil.NoReceive(t, errs, 20*time.Millisecond)

	close(f.gate)
	require.NoError(t, testutil.Receive(t, errs))
	require.NoError(t, testutil.Receive(t, errs))
	assert.Equal(t, int32(1), f.calls.Load())
}
