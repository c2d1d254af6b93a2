// SPDX-License-Identifier: MIT

package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockWriteAdvancesCursor(t *testing.T) {
	b := Alloc(4)
	n, err := b.Write([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, b.Len())

	_, err = b.Write([]byte{3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b.Bytes())
}

func TestBlockRewindResetsCursorNotCapacity(t *testing.T) {
	b := Alloc(8)
	_, err := b.Write([]byte{9, 9, 9})
	require.NoError(t, err)
	b.Rewind()
	assert.Equal(t, 0, b.Len())

	_, err = b.Write([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, b.Bytes())
}

func TestBlockResizePreservesPrefix(t *testing.T) {
	b := Alloc(4)
	_, err := b.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	require.NoError(t, b.Resize(2))
	assert.Equal(t, []byte{1, 2}, b.Bytes())
	assert.Equal(t, 2, b.Len())
}

func TestBlockWriteAtPatchesWithoutMovingCursor(t *testing.T) {
	b := Alloc(8)
	_, err := b.Write([]byte{0, 0, 0, 0})
	require.NoError(t, err)

	require.NoError(t, b.WriteAt(0, []byte{0xff, 0xee}))
	assert.Equal(t, []byte{0xff, 0xee, 0, 0}, b.Bytes())
	assert.Equal(t, 4, b.Len())
}

func TestBlockWriteAtOutOfRangeFails(t *testing.T) {
	b := Alloc(4)
	_, err := b.Write([]byte{1, 2})
	require.NoError(t, err)

	err = b.WriteAt(1, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestBlockReleaseClearsState(t *testing.T) {
	b := Alloc(4)
	_, _ = b.Write([]byte{1, 2})
	b.Release()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Bytes())
}
