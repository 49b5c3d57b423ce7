package split

import (
	"testing"

	"github.com/streamingfast/substreams-cursor-source/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_ID(t *testing.T) {
	config, err := validProperties().Validate()
	require.NoError(t, err)

	withoutCursor := NewDescriptor(config, "")
	withCursor := NewDescriptor(config, testCursor(1234).ToOpaque())

	assert.Equal(t, "map_events-./substreams.spkg-mainnet.eth.streamingfast.io:443", withoutCursor.ID())
	assert.Equal(t, withoutCursor.ID(), withCursor.ID(), "cursor and bounds do not participate in identity")

	other := *withCursor
	other.StopBlock = 9999
	assert.Equal(t, withoutCursor.ID(), other.ID())

	other.Endpoint = "other:443"
	assert.NotEqual(t, withoutCursor.ID(), other.ID())
}

func TestDescriptor_JSON(t *testing.T) {
	config, err := validProperties().Validate()
	require.NoError(t, err)

	descriptor := NewDescriptor(config, testCursor(1234).ToOpaque())
	content, err := descriptor.EncodeJSON()
	require.NoError(t, err)
	assert.Contains(t, string(content), `"opaque_cursor":"`)

	restored, err := RestoreJSON(content)
	require.NoError(t, err)
	assert.Equal(t, descriptor, restored)

	c, err := restored.Cursor()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), c.Block.Num)

	_, err = RestoreJSON([]byte("{"))
	require.Error(t, err)
}

func TestDescriptor_WithResumeCursor(t *testing.T) {
	config, err := validProperties().Validate()
	require.NoError(t, err)

	descriptor := NewDescriptor(config, "")
	c, err := descriptor.Cursor()
	require.NoError(t, err)
	assert.Nil(t, c)

	updated, decoded, err := descriptor.WithResumeCursor(testCursor(77).ToOpaque())
	require.NoError(t, err)
	assert.Equal(t, uint64(77), decoded.Block.Num)
	assert.True(t, updated.HasResumeCursor())
	assert.False(t, descriptor.HasResumeCursor(), "original is left untouched")

	_, _, err = descriptor.WithResumeCursor("garbage")
	require.Error(t, err)
}

func TestDescriptor_IsComplete(t *testing.T) {
	d := &Descriptor{StopBlock: 5000}
	assert.True(t, d.IsComplete(testCursor(5000)))
	assert.True(t, d.IsComplete(testCursor(5001)))
	assert.False(t, d.IsComplete(testCursor(4999)))
	assert.False(t, d.IsComplete(nil))

	unbounded := &Descriptor{StopBlock: 0}
	assert.False(t, unbounded.IsComplete(testCursor(1<<40)))
}

func testCursor(num uint64) *cursor.Cursor {
	block := cursor.NewBlockRef("block-id", num)
	return cursor.New(cursor.StepNew, block, block, cursor.NewBlockRef("lib-id", num))
}
