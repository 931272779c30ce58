package ports

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/pie/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResultStoreContract runs a suite of tests to verify that a ResultStore
// implementation adheres to the defined interface contract.
func RunResultStoreContract(t *testing.T, store ResultStore) {
	ctx := context.Background()
	key := "contract-" + uuid.NewString()

	view := func(fid int, values map[domain.VertexID]any) *domain.ResultView {
		return &domain.ResultView{
			Key:        key,
			FragmentID: fid,
			Supersteps: 3,
			CreatedAt:  time.Now(),
			Values:     values,
		}
	}

	t.Run("Publish and Load", func(t *testing.T) {
		require.NoError(t, store.Publish(ctx, view(1, map[domain.VertexID]any{2: 1})))
		require.NoError(t, store.Publish(ctx, view(0, map[domain.VertexID]any{1: 1})))

		views, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, 0, views[0].FragmentID, "views must be ordered by fragment id")
		assert.Equal(t, 1, views[1].FragmentID)
		assert.Equal(t, 3, views[0].Supersteps)
		// JSON-backed stores may widen numbers; compare the rendered value.
		assert.Equal(t, "1", fmt.Sprint(views[0].Values[1]))
	})

	t.Run("Publish Replaces Fragment", func(t *testing.T) {
		require.NoError(t, store.Publish(ctx, view(0, map[domain.VertexID]any{1: 7})))

		views, err := store.Load(ctx, key)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, "7", fmt.Sprint(views[0].Values[1]))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrResultNotFound)
	})

	t.Run("List", func(t *testing.T) {
		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, key)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrResultNotFound, "Load after Delete should return ErrResultNotFound")

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, keys, key)
	})
}

// RunTransportContract verifies barrier, delivery and failure semantics of a
// Transport. Every subtest joins a fresh group name. Close must be idempotent.
func RunTransportContract(t *testing.T, transport Transport[int]) {
	const size = 3

	join := func(t *testing.T, group string) []Endpoint[int] {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		endpoints := make([]Endpoint[int], size)
		errs := make([]error, size)
		var wg sync.WaitGroup
		for rank := 0; rank < size; rank++ {
			wg.Add(1)
			go func(rank int) {
				defer wg.Done()
				endpoints[rank], errs[rank] = transport.Join(ctx, domain.CommSpec{Group: group, Rank: rank, Size: size})
			}(rank)
		}
		wg.Wait()
		for rank, err := range errs {
			require.NoError(t, err, "rank %d failed to join", rank)
			assert.Equal(t, rank, endpoints[rank].Rank())
			assert.Equal(t, size, endpoints[rank].Size())
		}
		return endpoints
	}

	type roundResult struct {
		in      []domain.Message[int]
		outcome domain.RoundOutcome
		err     error
	}

	round := func(endpoints []Endpoint[int], n int, send func(rank int) (map[int][]domain.Message[int], domain.Vote)) []roundResult {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		results := make([]roundResult, len(endpoints))
		var wg sync.WaitGroup
		for rank, ep := range endpoints {
			wg.Add(1)
			go func(rank int, ep Endpoint[int]) {
				defer wg.Done()
				out, vote := send(rank)
				in, outcome, err := ep.Exchange(ctx, n, out, vote)
				results[rank] = roundResult{in: in, outcome: outcome, err: err}
			}(rank, ep)
		}
		wg.Wait()
		return results
	}

	t.Run("Exchange Delivers And Reports Activity", func(t *testing.T) {
		endpoints := join(t, "contract-"+uuid.NewString())
		defer closeAll(endpoints)

		// Every rank sends its rank number to every rank, itself included.
		results := round(endpoints, 0, func(rank int) (map[int][]domain.Message[int], domain.Vote) {
			out := make(map[int][]domain.Message[int], size)
			for dst := 0; dst < size; dst++ {
				out[dst] = []domain.Message[int]{{Target: domain.VertexID(dst), Payload: rank}}
			}
			return out, domain.Vote{Sent: size}
		})
		for rank, res := range results {
			require.NoError(t, res.err)
			assert.True(t, res.outcome.Active)
			assert.Empty(t, res.outcome.FailedRanks)

			payloads := make([]int, 0, len(res.in))
			for _, msg := range res.in {
				assert.Equal(t, domain.VertexID(rank), msg.Target)
				payloads = append(payloads, msg.Payload)
			}
			sort.Ints(payloads)
			assert.Equal(t, []int{0, 1, 2}, payloads)
		}

		// A silent round is quiescent everywhere.
		results = round(endpoints, 1, func(int) (map[int][]domain.Message[int], domain.Vote) {
			return nil, domain.Vote{}
		})
		for _, res := range results {
			require.NoError(t, res.err)
			assert.Empty(t, res.in)
			assert.True(t, res.outcome.Quiescent())
		}
	})

	t.Run("Failure Vote Is Seen By All", func(t *testing.T) {
		endpoints := join(t, "contract-"+uuid.NewString())
		defer closeAll(endpoints)

		results := round(endpoints, 0, func(rank int) (map[int][]domain.Message[int], domain.Vote) {
			return nil, domain.Vote{Failed: rank == 1}
		})
		for _, res := range results {
			require.NoError(t, res.err)
			assert.Equal(t, []int{1}, res.outcome.FailedRanks)
			assert.False(t, res.outcome.Quiescent())
		}
	})

	t.Run("Closed Peer Unblocks Exchange", func(t *testing.T) {
		endpoints := join(t, "contract-"+uuid.NewString())
		defer closeAll(endpoints)

		require.NoError(t, endpoints[2].Close())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _, err := endpoints[0].Exchange(ctx, 0, nil, domain.Vote{})
		assert.ErrorIs(t, err, domain.ErrPeerLeft)
	})
}

func closeAll(endpoints []Endpoint[int]) {
	for _, ep := range endpoints {
		_ = ep.Close()
	}
}
