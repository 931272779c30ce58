package domain

// WorkerState is the lifecycle state of a Worker.
type WorkerState string

const (
	StateUninitialized WorkerState = "uninitialized" // Constructed, no communication group
	StateReady         WorkerState = "ready"         // Initialized, accepts Query
	StateEvaluating    WorkerState = "evaluating"    // A Query is running
	StatePoisoned      WorkerState = "poisoned"      // Fatal failure, only Finalize is permitted
	StateFinalized     WorkerState = "finalized"     // Resources released
)

// Terminal reports whether no further transition is possible out of s.
func (s WorkerState) Terminal() bool {
	return s == StateFinalized
}

// CommSpec describes the communication group a worker belongs to.
// It is consumed verbatim by the transport.
type CommSpec struct {
	// Group names the communication group. All partitions of one graph share it.
	Group string `json:"group" yaml:"group"`
	// Rank is this partition's index in the group, in [0, Size).
	Rank int `json:"rank" yaml:"rank"`
	// Size is the number of partitions in the group.
	Size int `json:"size" yaml:"size"`
}

// ParallelSpec configures intra-worker concurrency.
type ParallelSpec struct {
	// Threads is the number of goroutines processing vertices concurrently.
	// Zero or negative means one.
	Threads int `json:"threads" yaml:"threads"`
}
