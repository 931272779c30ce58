package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/aretw0/pie/internal/logging"
	"github.com/aretw0/pie/pkg/domain"
)

// Target is the query surface of a Worker, independent of its data types.
type Target interface {
	Query(ctx context.Context, params domain.Params) error
	State() domain.WorkerState
	poison(ctx context.Context)
}

// Invoker translates an opaque argument blob into a worker Query and converts every
// failure, including panics escaping the worker, into a *domain.Error.
type Invoker struct {
	logger *slog.Logger
}

// NewInvoker creates an invoker. A nil logger discards output.
func NewInvoker(logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{logger: logger}
}

// Query parses args and runs one PIE cycle on target.
//
// Malformed args fail with an argument error before the worker is touched, so every
// partition of a group given the same blob fails the same way without entering a round.
func (i *Invoker) Query(ctx context.Context, target Target, args domain.QueryArgs) (err error) {
	if target == nil {
		return domain.ConfigurationError("query", domain.ErrInvalidHandle)
	}

	params, perr := domain.ParseArgs(args)
	if perr != nil {
		return domain.ArgumentError("query", perr)
	}

	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("panic escaped worker query", "panic", r, "stack", string(debug.Stack()))
			target.poison(ctx)
			err = domain.InternalError("query", fmt.Errorf("panic: %v", r))
		}
	}()

	if qerr := target.Query(ctx, params); qerr != nil {
		return domain.InternalError("query", qerr)
	}
	return nil
}
