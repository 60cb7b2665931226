package registry

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReceivesListAfterEachChange(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	ctx := context.Background()

	w := r.Watch()
	defer w.Stop()

	_, err := r.Add(ctx, "postgresql://a@one/db")
	require.NoError(t, err)
	list := testutil.Receive(t, w.C())
	require.Len(t, list, 1)
	assert.Equal(t, "one/db", list[0].Name)
	assert.True(t, Contains(list, "postgresql://a@one/db"))

	_, err = r.Remove(ctx, "one/db")
	require.NoError(t, err)
	list = testutil.Receive(t, w.C())
	assert.Empty(t, list)
	assert.False(t, Contains(list, "postgresql://a@one/db"))
}

func TestWatch_Stop(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())

	w := r.Watch()
	w.Stop()
	w.Stop()
	assert.True(t, testutil.Closed(t, w.C()))

	_, err := r.Add(context.Background(), "postgresql://a@one/db")
	require.NoError(t, err)
	testutil.NoReceive(t, w.C(), 50*time.Millisecond)
}

func TestWatch_EndsWhenRegistryCloses(t *testing.T) {
	r, err := Open(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)

	w := r.Watch()
	require.NoError(t, r.Close())
	assert.True(t, testutil.Closed(t, w.C()))
	w.Stop()
}

func TestWatch_SeesChangesFromAnotherProcess(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	r := openTestRegistry(t, dir)
	w := r.Watch()
	defer w.Stop()

	other := openTestRegistry(t, dir)
	_, err := other.Add(ctx, "postgresql://a@one/db")
	require.NoError(t, err)

	list := testutil.Receive(t, w.C())
	require.Len(t, list, 1)
	assert.Equal(t, "one/db", list[0].Name)

	got, err := r.List()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
