package state

import (
	"context"
	"errors"
	"testing"

	"github.com/streamingfast/dstore"
	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDStoreCheckpointer(t *testing.T) {
	ctx := context.Background()
	store := dstore.NewMockStore(nil)
	checkpointer := NewDStoreCheckpointer(store, zap.NewNop())

	c, err := checkpointer.Load(ctx, "map_events-pkg.spkg-localhost:9000")
	require.NoError(t, err)
	assert.Nil(t, c, "absent checkpoint is not an error")

	saved := testCheckpoint(5000)
	require.NoError(t, checkpointer.Save(ctx, "map_events-pkg.spkg-localhost:9000", saved))
	require.NoError(t, checkpointer.Save(ctx, "map_events-pkg.spkg-other:9000", testCheckpoint(12)))

	assert.Len(t, store.Files, 2)
	assert.Contains(t, store.Files, StateFilename("map_events-pkg.spkg-localhost:9000"))

	loaded, err := checkpointer.Load(ctx, "map_events-pkg.spkg-localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	other, err := checkpointer.Load(ctx, "map_events-pkg.spkg-other:9000")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), other.Cursor.Block.Num)
}

func TestDStoreCheckpointer_StoresIssuedToken(t *testing.T) {
	ctx := context.Background()
	store := dstore.NewMockStore(nil)
	checkpointer := NewDStoreCheckpointer(store, zap.NewNop())

	issued, err := NewCheckpoint(cursor.EncodeOpaque([]byte("c3:1:10:aaaa:10:aaaa:10:aaaa")))
	require.NoError(t, err)
	require.NotEqual(t, issued.Token, issued.Cursor.ToOpaque())

	require.NoError(t, checkpointer.Save(ctx, "split", issued))

	loaded, err := checkpointer.Load(ctx, "split")
	require.NoError(t, err)
	assert.Equal(t, issued.Token, loaded.Token)
}

func TestDStoreCheckpointer_CorruptCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := dstore.NewMockStore(nil)
	checkpointer := NewDStoreCheckpointer(store, zap.NewNop())

	store.SetFile(StateFilename("split"), []byte("split_id: split\ncursor: not-a-token\n"))

	_, err := checkpointer.Load(ctx, "split")
	require.Error(t, err)

	var decodeErr *cursor.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestDStoreCheckpointer_ForeignStateFile(t *testing.T) {
	ctx := context.Background()
	store := dstore.NewMockStore(nil)
	checkpointer := NewDStoreCheckpointer(store, zap.NewNop())

	store.SetFile(StateFilename("split"), []byte("split_id: another\ncursor: "+testCursor(1).ToOpaque()+"\n"))

	_, err := checkpointer.Load(ctx, "split")
	require.Error(t, err)
}

func TestStateFilename(t *testing.T) {
	assert.Equal(t, StateFilename("a"), StateFilename("a"))
	assert.NotEqual(t, StateFilename("a"), StateFilename("b"))
	assert.Regexp(t, `^state-[0-9a-f]{16}\.yaml$`, StateFilename("module-https://x/y.spkg-host:443"))
}
