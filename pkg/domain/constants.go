package domain

// Phase names one of the three program callbacks.
type Phase string

const (
	PhaseInit    Phase = "init"
	PhasePEval   Phase = "peval"
	PhaseIncEval Phase = "inceval"
)
