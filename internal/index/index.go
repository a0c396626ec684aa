// Package index implements the exact nearest-neighbour vector index used by
// the training store.
//
// Vectors live in a single contiguous arena addressed by insertion position.
// Search is brute force over squared Euclidean distance, which keeps results
// exact and reproducible for the small corpora a schema assistant trains on.
package index

import (
	"errors"
	"fmt"
	"sort"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/vector"
)

// Match is a single search hit.
type Match struct {
	// Position is the 0-based insertion position of the vector.
	Position int
	// Distance is the squared L2 distance to the query. Lower is closer.
	Distance float64
}

// Index is a flat L2 index. It is not safe for concurrent use; the training
// store serializes access.
type Index struct {
	dim  int
	data []float32
}

// New returns an empty index of dimension dim. A dim of 0 means unset; the
// first Append locks it in.
func New(dim int) *Index {
	if dim < 0 {
		dim = 0
	}
	return &Index{dim: dim}
}

// FromVectors builds an index holding vecs in order. Every vector must have
// length dim.
func FromVectors(dim int, vecs [][]float32) (*Index, error) {
	idx := New(dim)
	idx.data = make([]float32, 0, dim*len(vecs))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, errortypes.DimensionMismatchError(dim, len(v)).WithField("position", i)
		}
		idx.data = append(idx.data, v...)
	}
	return idx, nil
}

// Dimension returns the vector length, or 0 while unset.
func (x *Index) Dimension() int {
	return x.dim
}

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Append stores v at position Len(). The first vector appended to an index
// with unset dimension fixes the dimension.
func (x *Index) Append(v []float32) (int, error) {
	if len(v) == 0 {
		return 0, errortypes.InputError(errors.New("empty vector"), "cannot index empty vector")
	}
	if x.dim == 0 {
		x.dim = len(v)
	} else if len(v) != x.dim {
		return 0, errortypes.DimensionMismatchError(x.dim, len(v))
	}
	pos := x.Len()
	x.data = append(x.data, v...)
	return pos, nil
}

// Search returns up to k matches ordered by ascending distance. Ties keep
// the earlier position first. An empty index or k <= 0 yields no matches.
func (x *Index) Search(query []float32, k int) ([]Match, error) {
	n := x.Len()
	if k <= 0 || n == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, errortypes.DimensionMismatchError(x.dim, len(query))
	}

	matches := make([]Match, n)
	for i := 0; i < n; i++ {
		matches[i] = Match{
			Position: i,
			Distance: vector.SquaredL2Distance(query, x.at(i)),
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})

	if k < n {
		matches = matches[:k]
	}
	return matches, nil
}

// Vectors returns copies of every stored vector in position order.
func (x *Index) Vectors() [][]float32 {
	n := x.Len()
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, x.dim)
		copy(v, x.at(i))
		out[i] = v
	}
	return out
}

// Truncate drops every vector at position n or later. It is used to roll
// back an append whose persistence failed.
func (x *Index) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= x.Len() {
		return
	}
	x.data = x.data[:n*x.dim]
}

// ResetDimension clears the dimension of an empty index.
func (x *Index) ResetDimension() {
	if x.Len() == 0 {
		x.dim = 0
		x.data = x.data[:0]
	}
}

// Without returns a new index holding every vector except the one at pos,
// with later positions shifted down by one. The receiver is not modified and
// the result keeps the receiver's dimension even when empty.
func (x *Index) Without(pos int) (*Index, error) {
	n := x.Len()
	if pos < 0 || pos >= n {
		return nil, fmt.Errorf("position %d out of range [0,%d)", pos, n)
	}
	out := &Index{dim: x.dim, data: make([]float32, 0, (n-1)*x.dim)}
	out.data = append(out.data, x.data[:pos*x.dim]...)
	out.data = append(out.data, x.data[(pos+1)*x.dim:]...)
	return out, nil
}

func (x *Index) at(pos int) []float32 {
	return x.data[pos*x.dim : (pos+1)*x.dim]
}
