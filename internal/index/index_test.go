package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/schemarecall/internal/errortypes"
)

func TestAppendLocksDimension(t *testing.T) {
	idx := New(0)
	assert.Equal(t, 0, idx.Dimension())
	assert.Equal(t, 0, idx.Len())

	pos, err := idx.Append([]float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 3, idx.Dimension())

	_, err = idx.Append([]float32{1, 2})
	require.Error(t, err)
	assert.True(t, errortypes.IsDimensionMismatch(err))
	assert.Equal(t, 1, idx.Len())

	pos, err = idx.Append([]float32{4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestAppendEmptyVector(t *testing.T) {
	_, err := New(0).Append(nil)
	assert.True(t, errortypes.IsInputError(err))
}

func TestSearchOrdering(t *testing.T) {
	idx := New(2)
	for _, v := range [][]float32{{0, 0}, {3, 4}, {1, 0}, {0, 1}} {
		_, err := idx.Append(v)
		require.NoError(t, err)
	}

	matches, err := idx.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	assert.Equal(t, Match{Position: 0, Distance: 0}, matches[0])
	// {1,0} and {0,1} tie at distance 1; the earlier position wins.
	assert.Equal(t, Match{Position: 2, Distance: 1}, matches[1])
	assert.Equal(t, Match{Position: 3, Distance: 1}, matches[2])
	assert.Equal(t, Match{Position: 1, Distance: 25}, matches[3])
}

func TestSearchLimits(t *testing.T) {
	idx := New(1)
	for i := 0; i < 5; i++ {
		_, err := idx.Append([]float32{float32(i)})
		require.NoError(t, err)
	}

	matches, err := idx.Search([]float32{0}, 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	matches, err = idx.Search([]float32{0}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = New(0).Search([]float32{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = idx.Search([]float32{0, 0}, 1)
	assert.True(t, errortypes.IsDimensionMismatch(err))
}

func TestTruncateAndResetDimension(t *testing.T) {
	idx := New(0)
	_, err := idx.Append([]float32{1, 1})
	require.NoError(t, err)
	_, err = idx.Append([]float32{2, 2})
	require.NoError(t, err)

	idx.Truncate(1)
	assert.Equal(t, 1, idx.Len())

	idx.ResetDimension()
	assert.Equal(t, 2, idx.Dimension(), "non-empty index keeps its dimension")

	idx.Truncate(0)
	idx.ResetDimension()
	assert.Equal(t, 0, idx.Dimension())
	assert.Equal(t, 0, idx.Len())
}

func TestWithout(t *testing.T) {
	idx, err := FromVectors(2, [][]float32{{1, 1}, {2, 2}, {3, 3}})
	require.NoError(t, err)

	out, err := idx.Without(1)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {3, 3}}, out.Vectors())
	assert.Equal(t, 3, idx.Len(), "receiver is unchanged")

	single, err := FromVectors(2, [][]float32{{1, 1}})
	require.NoError(t, err)
	empty, err := single.Without(0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 2, empty.Dimension())

	_, err = idx.Without(3)
	assert.Error(t, err)
}

func TestFromVectorsRejectsMismatch(t *testing.T) {
	_, err := FromVectors(2, [][]float32{{1, 1}, {1}})
	assert.True(t, errortypes.IsDimensionMismatch(err))
}

func TestVectorsReturnCopies(t *testing.T) {
	idx, err := FromVectors(2, [][]float32{{1, 2}})
	require.NoError(t, err)

	v := idx.Vectors()
	v[0][0] = 99

	assert.Equal(t, [][]float32{{1, 2}}, idx.Vectors())
}
