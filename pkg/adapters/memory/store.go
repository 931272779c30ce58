package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/pie/pkg/domain"
)

// Store implements ports.ResultStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[int]*domain.ResultView
	mu   sync.RWMutex
}

// NewStore creates a new in-memory result store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[int]*domain.ResultView),
	}
}

// Publish stores a copy of the view, replacing the previous view of the same fragment.
func (s *Store) Publish(ctx context.Context, view *domain.ResultView) error {
	// Copy so the caller can keep mutating its map
	copied := cloneView(view)

	s.mu.Lock()
	defer s.mu.Unlock()
	byFragment, ok := s.data[view.Key]
	if !ok {
		byFragment = make(map[int]*domain.ResultView)
		s.data[view.Key] = byFragment
	}
	byFragment[view.FragmentID] = copied
	return nil
}

// Load returns copies of every fragment's view for key, ordered by fragment id.
func (s *Store) Load(ctx context.Context, key string) ([]*domain.ResultView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFragment, ok := s.data[key]
	if !ok || len(byFragment) == 0 {
		return nil, domain.ErrResultNotFound
	}

	views := make([]*domain.ResultView, 0, len(byFragment))
	for _, v := range byFragment {
		views = append(views, cloneView(v))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].FragmentID < views[j].FragmentID })
	return views, nil
}

// Delete removes every view under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns published keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func cloneView(view *domain.ResultView) *domain.ResultView {
	copied := *view
	copied.Values = make(map[domain.VertexID]any, len(view.Values))
	for v, val := range view.Values {
		copied.Values[v] = val
	}
	return &copied
}
