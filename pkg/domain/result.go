package domain

import "time"

// ResultView is a read-only snapshot of one partition's Context, published under a key.
// It does not track later queries on the worker that produced it.
type ResultView struct {
	Key        string           `json:"key"`
	FragmentID int              `json:"fragment_id"`
	Supersteps int              `json:"supersteps"`
	CreatedAt  time.Time        `json:"created_at"`
	Values     map[VertexID]any `json:"values"`
}
