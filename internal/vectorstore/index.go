package vectorstore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
)

const (
	indexMagic   = "CSVI"
	indexVersion = uint32(1)
)

// ErrCorruptIndex is returned when an index artifact cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt vector index")

// Index is a flat exhaustive L2 index. Row i is the vector appended i-th.
type Index struct {
	dim  int
	data []float32
}

// NewIndex returns an empty index fixed to dim.
func NewIndex(dim int) *Index {
	return &Index{dim: dim}
}

func (x *Index) Dim() int { return x.dim }

// Len returns the number of stored vectors.
func (x *Index) Len() int {
	if x.dim == 0 {
		return 0
	}
	return len(x.data) / x.dim
}

// Add appends vectors in order. Every vector must have the index dimension.
func (x *Index) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("vector %d has dimension %d, index has %d", i, len(v), x.dim)
		}
	}
	for _, v := range vectors {
		x.data = append(x.data, v...)
	}
	return nil
}

type hit struct {
	pos  int
	dist float32
}

// Search returns the positions and squared L2 distances of the min(k, Len)
// nearest rows, nearest first. Equal distances keep position order.
func (x *Index) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != x.dim {
		return nil, nil, fmt.Errorf("query has dimension %d, index has %d", len(query), x.dim)
	}
	n := x.Len()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil, nil
	}

	hits := make([]hit, n)
	for i := 0; i < n; i++ {
		row := x.data[i*x.dim : (i+1)*x.dim]
		var sum float32
		for j, q := range query {
			d := row[j] - q
			sum += d * d
		}
		hits[i] = hit{pos: i, dist: sum}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].dist < hits[b].dist })

	positions := make([]int, k)
	dists := make([]float32, k)
	for i := 0; i < k; i++ {
		positions[i] = hits[i].pos
		dists[i] = hits[i].dist
	}
	return positions, dists, nil
}

type indexHeader struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Count   uint32
}

// WriteTo encodes the index as a fixed header followed by little-endian rows.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	h := indexHeader{Version: indexVersion, Dim: uint32(x.dim), Count: uint32(x.Len())}
	copy(h.Magic[:], indexMagic)
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	if err := binary.Write(bw, binary.LittleEndian, x.data); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(binary.Size(h) + 4*len(x.data)), nil
}

// DecodeIndex parses an encoded index, rejecting anything malformed with ErrCorruptIndex.
func DecodeIndex(data []byte) (*Index, error) {
	r := bytes.NewReader(data)
	var h indexHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorruptIndex, err)
	}
	if string(h.Magic[:]) != indexMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	if h.Version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, h.Version)
	}
	if h.Dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorruptIndex)
	}

	want := int64(h.Dim) * int64(h.Count)
	if int64(r.Len()) != want*4 {
		return nil, fmt.Errorf("%w: expected %d values, have %d bytes", ErrCorruptIndex, want, r.Len())
	}
	values := make([]float32, want)
	if err := binary.Read(r, binary.LittleEndian, values); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrCorruptIndex, err)
	}
	return &Index{dim: int(h.Dim), data: values}, nil
}
