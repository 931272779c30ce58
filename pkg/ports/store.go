package ports

import (
	"context"

	"github.com/aretw0/pie/pkg/domain"
)

// ResultStore publishes finished Context snapshots for retrieval by other subsystems.
// A key can hold one view per fragment.
type ResultStore interface {
	// Publish stores view under view.Key, replacing any previous view of the same fragment.
	Publish(ctx context.Context, view *domain.ResultView) error

	// Load returns every fragment's view for key, ordered by fragment id.
	// Returns domain.ErrResultNotFound if nothing was published under key.
	Load(ctx context.Context, key string) ([]*domain.ResultView, error)

	// Delete removes all views under key.
	Delete(ctx context.Context, key string) error

	// List returns the published keys.
	List(ctx context.Context) ([]string, error)
}
