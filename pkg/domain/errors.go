package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by what it means for the worker that produced it.
type ErrorKind string

const (
	// KindConfiguration covers misuse of the lifecycle (unbound callbacks, double Init,
	// operations on uninitialized or finalized workers). Never retried.
	KindConfiguration ErrorKind = "configuration"
	// KindCommunication covers failures joining or using the communication group.
	// The worker is poisoned afterwards; only Finalize is permitted.
	KindCommunication ErrorKind = "communication"
	// KindProgram covers failures raised by a bound callback. The query fails but the
	// worker returns to Ready.
	KindProgram ErrorKind = "program"
	// KindArgument covers malformed query arguments. The worker stays Ready.
	KindArgument ErrorKind = "argument"
	// KindInternal covers broken runtime invariants (e.g. a panic outside any callback).
	// The worker is poisoned.
	KindInternal ErrorKind = "internal"
)

// Configuration errors.
var (
	ErrUnboundCallback    = errors.New("program callback not bound")
	ErrProgramSealed      = errors.New("program binding is sealed")
	ErrAlreadyInitialized = errors.New("worker already initialized")
	ErrNotInitialized     = errors.New("worker not initialized")
	ErrQueryInFlight      = errors.New("query already in flight")
	ErrPoisoned           = errors.New("worker poisoned by a fatal failure")
	ErrFinalized          = errors.New("worker finalized")
	ErrInvalidHandle      = errors.New("invalid worker handle")
)

// Communication errors.
var (
	// ErrPeerLeft is returned by transports when a peer left the group mid-round.
	ErrPeerLeft = errors.New("peer left the communication group")
	// ErrGroupFull is returned when a rank joins a group that is already complete.
	ErrGroupFull = errors.New("communication group already complete")
)

// Program errors.
var (
	// ErrPeerFailed is reported by healthy partitions when another partition of the
	// group failed during the same round.
	ErrPeerFailed = errors.New("peer partition failed")
	// ErrSuperstepLimit is returned when evaluation did not converge within the
	// configured number of supersteps.
	ErrSuperstepLimit = errors.New("superstep limit reached before quiescence")
)

// ErrMalformedArgs is returned when a query argument blob cannot be interpreted.
var ErrMalformedArgs = errors.New("malformed query arguments")

// ErrResultNotFound is returned when no published result exists for a key.
var ErrResultNotFound = errors.New("result not found")

// Loader errors.
var (
	ErrLoaderBusy       = errors.New("another program is already loaded")
	ErrProgramNotFound  = errors.New("program not registered")
	ErrNoProgramLoaded  = errors.New("no program loaded")
	ErrProgramType      = errors.New("loaded program has different data types")
	ErrDuplicateProgram = errors.New("program already registered")
	ErrLockLost         = errors.New("loader lock lost")
)

// Error is the structured failure value returned across the worker boundary.
type Error struct {
	Kind ErrorKind
	// Op names the operation that failed (e.g. "init", "query", "peval").
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation. An err that already is an *Error
// keeps its original kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(op string, err error) *Error {
	return NewError(KindConfiguration, op, err)
}

// CommunicationError builds a KindCommunication error.
func CommunicationError(op string, err error) *Error {
	return NewError(KindCommunication, op, err)
}

// ProgramError builds a KindProgram error.
func ProgramError(op string, err error) *Error {
	return NewError(KindProgram, op, err)
}

// InternalError builds a KindInternal error.
func InternalError(op string, err error) *Error {
	return NewError(KindInternal, op, err)
}

// ArgumentError builds a KindArgument error.
func ArgumentError(op string, err error) *Error {
	return NewError(KindArgument, op, err)
}

// KindOf reports the kind carried by err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRecoverable reports whether the worker that returned err can accept another Query.
func IsRecoverable(err error) bool {
	switch KindOf(err) {
	case KindProgram, KindArgument:
		return true
	}
	return false
}
