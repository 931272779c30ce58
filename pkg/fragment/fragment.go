package fragment

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
)

// ErrInvalidPartition is returned when a partitioner maps a vertex outside [0, fnum).
var ErrInvalidPartition = errors.New("partitioner returned an out-of-range fragment")

// Fragment is an immutable in-memory partition.
type Fragment struct {
	fid    int
	fnum   int
	inner  []domain.VertexID
	outer  []domain.VertexID
	lids   map[domain.VertexID]int
	owners map[domain.VertexID]int
	adj    [][]domain.Edge
}

var _ ports.Fragment = (*Fragment)(nil)

func (f *Fragment) FID() int                         { return f.fid }
func (f *Fragment) FNum() int                        { return f.fnum }
func (f *Fragment) InnerVertices() []domain.VertexID { return f.inner }
func (f *Fragment) OuterVertices() []domain.VertexID { return f.outer }
func (f *Fragment) InnerCount() int                  { return len(f.inner) }

func (f *Fragment) Neighbors(v domain.VertexID) []domain.Edge {
	lid, ok := f.lids[v]
	if !ok {
		return nil
	}
	return f.adj[lid]
}

func (f *Fragment) IsInner(v domain.VertexID) bool {
	_, ok := f.lids[v]
	return ok
}

func (f *Fragment) Owner(v domain.VertexID) (int, bool) {
	fid, ok := f.owners[v]
	return fid, ok
}

func (f *Fragment) Lid(v domain.VertexID) (int, bool) {
	lid, ok := f.lids[v]
	return lid, ok
}

func (f *Fragment) Oid(lid int) domain.VertexID {
	return f.inner[lid]
}

type buildOptions struct {
	directed bool
}

// Option configures Build.
type Option func(*buildOptions)

// Directed keeps edges one-way. By default every edge is added in both directions.
func Directed() Option {
	return func(o *buildOptions) {
		o.directed = true
	}
}

// Build partitions a graph into fnum fragments. vertices may list isolated vertices;
// endpoints of edges are added implicitly.
func Build(edges []domain.EdgeTriple, vertices []domain.VertexID, fnum int, p Partitioner, opts ...Option) ([]*Fragment, error) {
	if fnum <= 0 {
		return nil, fmt.Errorf("fragment count must be positive, got %d", fnum)
	}
	if p == nil {
		p = HashPartitioner{}
	}
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}

	all := slices.Clone(vertices)
	for _, e := range edges {
		all = append(all, e.Src, e.Dst)
	}
	all = sortedUnique(all)

	owners := make(map[domain.VertexID]int, len(all))
	frags := make([]*Fragment, fnum)
	for fid := range frags {
		frags[fid] = &Fragment{
			fid:    fid,
			fnum:   fnum,
			lids:   make(map[domain.VertexID]int),
			owners: make(map[domain.VertexID]int),
		}
	}
	for _, v := range all {
		fid := p.Partition(v, fnum)
		if fid < 0 || fid >= fnum {
			return nil, fmt.Errorf("%w: vertex %d -> %d", ErrInvalidPartition, v, fid)
		}
		owners[v] = fid
		f := frags[fid]
		f.lids[v] = len(f.inner)
		f.inner = append(f.inner, v)
		f.owners[v] = fid
	}
	for _, f := range frags {
		f.adj = make([][]domain.Edge, len(f.inner))
	}

	addEdge := func(src, dst domain.VertexID, w float64) {
		f := frags[owners[src]]
		lid := f.lids[src]
		f.adj[lid] = append(f.adj[lid], domain.Edge{To: dst, Weight: w})
		if _, known := f.owners[dst]; !known {
			f.owners[dst] = owners[dst]
			f.outer = append(f.outer, dst)
		}
	}
	for _, e := range edges {
		addEdge(e.Src, e.Dst, e.Weight)
		if !o.directed && e.Src != e.Dst {
			addEdge(e.Dst, e.Src, e.Weight)
		}
	}
	for _, f := range frags {
		slices.Sort(f.outer)
		for _, list := range f.adj {
			slices.SortFunc(list, func(a, b domain.Edge) int {
				switch {
				case a.To < b.To:
					return -1
				case a.To > b.To:
					return 1
				}
				return 0
			})
		}
	}
	return frags, nil
}

func sortedUnique(vs []domain.VertexID) []domain.VertexID {
	out := slices.Clone(vs)
	slices.Sort(out)
	return slices.Compact(out)
}

// Ports returns frags as the port interface, in the same order.
func Ports(frags []*Fragment) []ports.Fragment {
	out := make([]ports.Fragment, len(frags))
	for i, f := range frags {
		out[i] = f
	}
	return out
}
