package domain

// VertexID is the global (original) identifier of a vertex.
type VertexID int64

// Message is a value addressed to a vertex owned by some partition.
//
// Source and Seq identify the sending fragment and the message's position in
// that fragment's queue for the destination. Receivers order by them, so the
// messages of a vertex do not depend on barrier arrival order.
type Message[M any] struct {
	Target  VertexID `json:"target"`
	Payload M        `json:"payload"`
	Source  int      `json:"source"`
	Seq     int      `json:"seq"`
}

// Vote is what one partition contributes to the end-of-round collective.
type Vote struct {
	// Sent is the number of messages the partition emitted this round.
	Sent int `json:"sent"`
	// Failed is set when the partition's callback failed this round.
	Failed bool `json:"failed"`
}

// RoundOutcome is the group-wide result of a round, identical on every partition.
type RoundOutcome struct {
	// Active is true when any partition sent at least one message.
	Active bool
	// FailedRanks lists the partitions that voted Failed, in ascending order.
	FailedRanks []int
}

// Quiescent reports global quiescence: nobody sent, nobody failed.
func (o RoundOutcome) Quiescent() bool {
	return !o.Active && len(o.FailedRanks) == 0
}
