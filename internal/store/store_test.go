package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdesk/internal/testutil"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTripAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := PathFor(t.TempDir(), ".test.dat")

	s := openTestStore(t, path)
	require.NoError(t, s.Set("a", entry{Name: "alpha", Count: 1}))
	require.NoError(t, s.Set("b", []string{"x", "y"}))
	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)

	var got entry
	found, err := reopened.Get("a", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{Name: "alpha", Count: 1}, got)

	var list []string
	found, err = reopened.Get("b", &list)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"x", "y"}, list)

	assert.Equal(t, []string{"a", "b"}, reopened.Keys())
}

func TestStore_UnsavedChangesAreNotPersisted(t *testing.T) {
	path := PathFor(t.TempDir(), ".test.dat")

	s := openTestStore(t, path)
	require.NoError(t, s.Set("a", 1))
	assert.True(t, s.Dirty())
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	var v int
	found, err := reopened.Get("a", &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_GetSeesStagedValues(t *testing.T) {
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	require.NoError(t, s.Set("k", "staged"))
	var v string
	found, err := s.Get("k", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "staged", v)

	require.NoError(t, s.Delete("k"))
	found, err = s.Get("k", &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, s.Keys())
}

func TestStore_DeletePersists(t *testing.T) {
	ctx := context.Background()
	path := PathFor(t.TempDir(), ".test.dat")

	s := openTestStore(t, path)
	require.NoError(t, s.Set("k", 1))
	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Save(ctx))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path)
	_, found := reopened.Raw("k")
	assert.False(t, found)
}

func TestStore_SerializationErrors(t *testing.T) {
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	err := s.Set("bad", make(chan int))
	var serr *core.SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "bad", serr.Key)

	require.NoError(t, s.Set("text", "hello"))
	var n int
	found, err := s.Get("text", &n)
	assert.True(t, found)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "text", serr.Key)
}

func TestStore_PersistenceErrorKeepsChangesStaged(t *testing.T) {
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.db.Close())

	err := s.Save(context.Background())
	var perr *core.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, s.Path(), perr.Path)
	assert.True(t, s.Dirty())

	var v string
	found, err := s.Get("k", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestStore_SubscribeDeliversOncePerSave(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	sub := s.Subscribe("k")
	defer sub.Unsubscribe()
	other := s.Subscribe("other")
	defer other.Unsubscribe()

	require.NoError(t, s.Set("k", 1))
	require.NoError(t, s.Save(ctx))
	assert.JSONEq(t, "1", string(testutil.Receive(t, sub.C())))
	testutil.NoReceive(t, sub.C(), 50*time.Millisecond)

	require.NoError(t, s.Set("k", 2))
	require.NoError(t, s.Save(ctx))
	assert.JSONEq(t, "2", string(testutil.Receive(t, sub.C())))

	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Save(ctx))
	assert.Nil(t, testutil.Receive(t, sub.C()))

	testutil.NoReceive(t, other.C(), 50*time.Millisecond)
}

func TestStore_SaveWithoutChangesDoesNotNotify(t *testing.T) {
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	sub := s.Subscribe("k")
	defer sub.Unsubscribe()

	require.NoError(t, s.Save(context.Background()))
	testutil.NoReceive(t, sub.C(), 50*time.Millisecond)
}

func TestStore_SlowSubscriberSeesNewest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	sub := s.Subscribe("k")
	defer sub.Unsubscribe()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Set("k", i))
		require.NoError(t, s.Save(ctx))
	}
	assert.JSONEq(t, "5", string(testutil.Receive(t, sub.C())))
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	sub := s.Subscribe("k")
	sub.Unsubscribe()
	sub.Unsubscribe()

	require.NoError(t, s.Set("k", 1))
	require.NoError(t, s.Save(ctx))
	assert.True(t, testutil.Closed(t, sub.C()))
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	got := make(chan json.RawMessage, 4)
	stop := s.OnChange("k", func(v json.RawMessage) { got <- v })

	require.NoError(t, s.Set("k", "x"))
	require.NoError(t, s.Save(ctx))
	assert.JSONEq(t, `"x"`, string(testutil.Receive(t, got)))

	stop()
	stop()
	require.NoError(t, s.Set("k", "y"))
	require.NoError(t, s.Save(ctx))
	testutil.NoReceive(t, got, 50*time.Millisecond)
}

func TestStore_CloseEndsSubscriptions(t *testing.T) {
	s, err := Open(context.Background(), PathFor(t.TempDir(), ".test.dat"), nil)
	require.NoError(t, err)

	sub := s.Subscribe("k")
	require.NoError(t, s.Close())
	assert.True(t, testutil.Closed(t, sub.C()))

	assert.True(t, errors.Is(s.Set("k", 1), ErrClosed))
	assert.True(t, errors.Is(s.Save(context.Background()), ErrClosed))
	require.NoError(t, s.Close())
}

func TestStore_ConcurrentSets(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, PathFor(t.TempDir(), ".test.dat"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			assert.NoError(t, s.Set(key, i))
			assert.NoError(t, s.Save(ctx))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Keys(), 10)
	assert.False(t, s.Dirty())
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", ".test.dat")
	s := openTestStore(t, path)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}
