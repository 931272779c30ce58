package fragment

import (
	"fmt"

	"github.com/aretw0/pie/pkg/domain"
)

// Partitioner assigns each vertex to a fragment.
type Partitioner interface {
	Partition(v domain.VertexID, fnum int) int
}

// HashPartitioner assigns vertices by id modulo the fragment count.
type HashPartitioner struct{}

func (HashPartitioner) Partition(v domain.VertexID, fnum int) int {
	p := int(int64(v) % int64(fnum))
	if p < 0 {
		p += fnum
	}
	return p
}

// RangePartitioner splits the sorted vertex set into contiguous, nearly equal ranges.
type RangePartitioner struct {
	index map[domain.VertexID]int
	total int
}

// NewRangePartitioner prepares a range partitioner over the given vertex set.
func NewRangePartitioner(vertices []domain.VertexID) *RangePartitioner {
	sorted := sortedUnique(vertices)
	index := make(map[domain.VertexID]int, len(sorted))
	for i, v := range sorted {
		index[v] = i
	}
	return &RangePartitioner{index: index, total: len(sorted)}
}

func (r *RangePartitioner) Partition(v domain.VertexID, fnum int) int {
	i, ok := r.index[v]
	if !ok || r.total == 0 {
		return HashPartitioner{}.Partition(v, fnum)
	}
	return i * fnum / r.total
}

// MapPartitioner is an explicit assignment. Unlisted vertices fall back to hashing.
type MapPartitioner map[domain.VertexID]int

func (m MapPartitioner) Partition(v domain.VertexID, fnum int) int {
	if p, ok := m[v]; ok {
		return p
	}
	return HashPartitioner{}.Partition(v, fnum)
}

// PartitionerByName resolves the partitioner names accepted by the CLI.
func PartitionerByName(name string, vertices []domain.VertexID) (Partitioner, error) {
	switch name {
	case "", "hash":
		return HashPartitioner{}, nil
	case "range":
		return NewRangePartitioner(vertices), nil
	default:
		return nil, fmt.Errorf("unknown partitioner %q", name)
	}
}
