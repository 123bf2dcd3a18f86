package vectorstore

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_SearchOrdering(t *testing.T) {
	idx := NewIndex(2)
	require.NoError(t, idx.Add([][]float32{{0, 0}, {3, 4}, {1, 0}, {0, 1}}))
	assert.Equal(t, 4, idx.Len())

	pos, dist, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, pos, "ties keep insertion order")
	assert.Equal(t, []float32{0, 1, 1}, dist)

	pos, _, err = idx.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, pos, 4)

	_, _, err = idx.Search([]float32{0, 0, 0}, 1)
	assert.Error(t, err)
}

func TestIndex_AddRejectsWrongDimension(t *testing.T) {
	idx := NewIndex(3)
	err := idx.Add([][]float32{{1, 2, 3}, {1, 2}})
	assert.Error(t, err)
	assert.Equal(t, 0, idx.Len(), "a rejected batch adds nothing")
}

func TestIndex_Codec(t *testing.T) {
	idx := NewIndex(3)
	require.NoError(t, idx.Add([][]float32{{1, 2, 3}, {-1.5, 0, 9}}))

	var buf bytes.Buffer
	_, err := idx.WriteTo(&buf)
	require.NoError(t, err)

	decoded, err := DecodeIndex(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Dim())
	assert.Equal(t, idx.data, decoded.data)

	t.Run("Empty index", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := NewIndex(8).WriteTo(&buf)
		require.NoError(t, err)
		decoded, err := DecodeIndex(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, 8, decoded.Dim())
		assert.Equal(t, 0, decoded.Len())
	})

	t.Run("Corrupt input", func(t *testing.T) {
		data := buf.Bytes()
		for _, bad := range [][]byte{
			nil,
			[]byte("nope"),
			append([]byte("XXXX"), data[4:]...),
			data[:len(data)-2],
		} {
			_, err := DecodeIndex(bad)
			assert.ErrorIs(t, err, ErrCorruptIndex)
		}
	})
}
