package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/pie/pkg/adapters/redis"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/aretw0/pie/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTransport_Contract(t *testing.T) {
	_, client := newClient(t)
	transport := redis.NewTransport[int](client, redis.WithPollInterval(2*time.Millisecond))
	ports.RunTransportContract(t, transport)
}

func TestRedisTransport_StructuredPayloads(t *testing.T) {
	type distance struct {
		Hops int     `json:"hops"`
		Cost float64 `json:"cost"`
	}
	_, client := newClient(t)
	transport := redis.NewTransport[distance](client, redis.WithPollInterval(2*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eps := make([]ports.Endpoint[distance], 2)
	var wg sync.WaitGroup
	for rank := range eps {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			ep, err := transport.Join(ctx, domain.CommSpec{Group: "structs", Rank: rank, Size: 2})
			assert.NoError(t, err)
			eps[rank] = ep
		}(rank)
	}
	wg.Wait()
	require.NotNil(t, eps[0])
	require.NotNil(t, eps[1])
	defer eps[0].Close()
	defer eps[1].Close()

	results := make([][]domain.Message[distance], 2)
	for rank, ep := range eps {
		wg.Add(1)
		go func(rank int, ep ports.Endpoint[distance]) {
			defer wg.Done()
			var out map[int][]domain.Message[distance]
			vote := domain.Vote{}
			if rank == 0 {
				out = map[int][]domain.Message[distance]{1: {{Target: 5, Payload: distance{Hops: 2, Cost: 1.5}}}}
				vote.Sent = 1
			}
			in, outcome, err := ep.Exchange(ctx, 0, out, vote)
			assert.NoError(t, err)
			assert.True(t, outcome.Active)
			results[rank] = in
		}(rank, ep)
	}
	wg.Wait()

	assert.Empty(t, results[0])
	assert.Equal(t, []domain.Message[distance]{{Target: 5, Payload: distance{Hops: 2, Cost: 1.5}}}, results[1])
}

func TestRedisTransport_GroupKeysRemovedAfterClose(t *testing.T) {
	mr, client := newClient(t)
	transport := redis.NewTransport[int](client, redis.WithTransportPrefix("t:"), redis.WithPollInterval(2*time.Millisecond))

	ep, err := transport.Join(context.Background(), domain.CommSpec{Group: "solo", Rank: 0, Size: 1})
	require.NoError(t, err)

	_, outcome, err := ep.Exchange(context.Background(), 0, nil, domain.Vote{})
	require.NoError(t, err)
	assert.True(t, outcome.Quiescent())

	require.NoError(t, ep.Close())
	require.NoError(t, ep.Close())
	assert.Empty(t, mr.Keys())
}

func TestRedisTransport_JoinTimeoutReleasesRank(t *testing.T) {
	mr, client := newClient(t)
	transport := redis.NewTransport[int](client, redis.WithTransportPrefix("t:"), redis.WithPollInterval(2*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := transport.Join(ctx, domain.CommSpec{Group: "g", Rank: 0, Size: 2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	members, err := mr.Members("t:g:members")
	if err == nil {
		assert.Empty(t, members)
	}
}
