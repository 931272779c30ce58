package ports

import "github.com/aretw0/pie/pkg/domain"

// Fragment is a read-only partition of a distributed graph.
// Implementations must be safe for concurrent reads and must never change after
// being handed to a worker.
type Fragment interface {
	// FID is this fragment's index in [0, FNum).
	FID() int
	// FNum is the total number of fragments of the graph.
	FNum() int

	// InnerVertices lists the vertices owned by this fragment, ordered by local id.
	InnerVertices() []domain.VertexID
	// OuterVertices lists the vertices adjacent to inner vertices but owned elsewhere.
	OuterVertices() []domain.VertexID
	// InnerCount is len(InnerVertices()).
	InnerCount() int

	// Neighbors returns the adjacency of an inner vertex.
	Neighbors(v domain.VertexID) []domain.Edge
	// IsInner reports whether v is owned by this fragment.
	IsInner(v domain.VertexID) bool
	// Owner returns the fragment owning v, if v is known to this fragment.
	Owner(v domain.VertexID) (int, bool)

	// Lid maps an inner vertex to its dense local index.
	Lid(v domain.VertexID) (int, bool)
	// Oid maps a local index back to the global vertex id.
	Oid(lid int) domain.VertexID
}
