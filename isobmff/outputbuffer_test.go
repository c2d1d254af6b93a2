// SPDX-License-Identifier: MIT

package isobmff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputBufferMoofRotatesIntoLastMoof(t *testing.T) {
	b := NewOutputBuffer()

	b.SetMoofBox([]byte("moof-1"))
	_, ok := b.LastMoofBox()
	assert.False(t, ok)

	b.SetMoofBox([]byte("moof-2"))
	last, ok := b.LastMoofBox()
	require.True(t, ok)
	assert.Equal(t, []byte("moof-1"), last)

	cur, ok := b.MoofBox()
	require.True(t, ok)
	assert.Equal(t, []byte("moof-2"), cur)
}

func TestOutputBufferResetMoofAndFragmentKeepsInitBox(t *testing.T) {
	b := NewOutputBuffer()
	b.SetInitBox([]byte("ftyp+moov"))
	b.SetMoofBox([]byte("moof"))
	b.SetFragmentBox([]byte("mdat"))
	b.SetPresentationTime(42)

	b.ResetMoofAndFragmentPosition()

	init, ok := b.InitBox()
	require.True(t, ok)
	assert.Equal(t, []byte("ftyp+moov"), init)

	_, ok = b.MoofBox()
	assert.False(t, ok)
	_, ok = b.FragmentBox()
	assert.False(t, ok)
	_, ok = b.PresentationTime()
	assert.False(t, ok)
}

func TestOutputBufferResetAllPositionClearsEverything(t *testing.T) {
	b := NewOutputBuffer()
	b.SetInitBox([]byte("ftyp+moov"))
	b.SetMoofBox([]byte("moof-1"))
	b.SetMoofBox([]byte("moof-2"))

	b.ResetAllPosition()

	_, ok := b.InitBox()
	assert.False(t, ok)
	_, ok = b.LastMoofBox()
	assert.False(t, ok)
}
