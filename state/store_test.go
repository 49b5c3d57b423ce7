package state

import (
	"context"
	"testing"

	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCursor(num uint64) *cursor.Cursor {
	block := cursor.NewBlockRef("block-id", num)
	return cursor.New(cursor.StepNew, block, block, cursor.NewBlockRef("lib-id", num-1))
}

func testCheckpoint(num uint64) *Checkpoint {
	c := testCursor(num)
	return &Checkpoint{Token: c.ToOpaque(), Cursor: c}
}

func TestTracker_GetStateIsSnapshot(t *testing.T) {
	checkpointer := NewMemoryCheckpointer()
	tracker := NewTracker(checkpointer, "split-a")

	empty, err := tracker.GetState()
	require.NoError(t, err)
	require.NoError(t, empty.Save(context.Background()))

	loaded, err := tracker.ReadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)

	tracker.SetCursor(testCursor(10).ToOpaque(), testCursor(10))
	snapshot, err := tracker.GetState()
	require.NoError(t, err)

	tracker.SetCursor(testCursor(20).ToOpaque(), testCursor(20))
	require.NoError(t, snapshot.Save(context.Background()))

	loaded, err = tracker.ReadCheckpoint(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, uint64(10), loaded.Cursor.Block.Num)
	assert.Equal(t, testCursor(10).ToOpaque(), loaded.Token)
	assert.Equal(t, uint64(20), tracker.Cursor().Block.Num)

	tracker.SetCursor("", nil)
	assert.Nil(t, tracker.Cursor())
}

func TestTracker_KeepsServerToken(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()
	tracker := NewTracker(checkpointer, "split-a")

	// Block, head and LIB are equal, re-encoding the decoded cursor would
	// produce a shorter c1 token.
	issued := cursor.EncodeOpaque([]byte("c3:1:10:aaaa:10:aaaa:10:aaaa"))
	decoded, err := cursor.FromOpaque(issued)
	require.NoError(t, err)
	require.NotEqual(t, issued, decoded.ToOpaque())

	tracker.SetCursor(issued, decoded)
	snapshot, err := tracker.GetState()
	require.NoError(t, err)
	require.NoError(t, snapshot.Save(ctx))

	loaded, err := checkpointer.Load(ctx, "split-a")
	require.NoError(t, err)
	assert.Equal(t, issued, loaded.Token)
	assert.True(t, decoded.Equals(loaded.Cursor))
}

func TestMemoryCheckpointer_KeyedBySplit(t *testing.T) {
	ctx := context.Background()
	checkpointer := NewMemoryCheckpointer()

	require.NoError(t, checkpointer.Save(ctx, "split-a", testCheckpoint(10)))
	require.NoError(t, checkpointer.Save(ctx, "split-b", testCheckpoint(99)))

	a, err := checkpointer.Load(ctx, "split-a")
	require.NoError(t, err)
	b, err := checkpointer.Load(ctx, "split-b")
	require.NoError(t, err)

	assert.Equal(t, uint64(10), a.Cursor.Block.Num)
	assert.Equal(t, uint64(99), b.Cursor.Block.Num)

	checkpointer.SetToken("split-c", "garbage")
	_, err = checkpointer.Load(ctx, "split-c")
	require.Error(t, err)

	require.Error(t, checkpointer.Save(ctx, "", testCheckpoint(1)))
}

func TestScheme(t *testing.T) {
	assert.Equal(t, "postgres", Scheme("postgres://user@localhost/db"))
	assert.Equal(t, "redis", Scheme("REDIS://localhost:6379"))
	assert.Equal(t, "gs", Scheme("gs://bucket/path"))
	assert.Equal(t, "", Scheme("./state"))
	assert.Equal(t, "", Scheme("://nothing"))
}
