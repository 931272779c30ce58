package domain

// Edge is an adjacency entry of a fragment vertex.
type Edge struct {
	To     VertexID `json:"to"`
	Weight float64  `json:"weight"`
}

// EdgeTriple is an input edge before partitioning.
type EdgeTriple struct {
	Src    VertexID
	Dst    VertexID
	Weight float64
}
