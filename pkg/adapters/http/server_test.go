package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pie/pkg/adapters/memory"
	"github.com/aretw0/pie/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Publish(ctx, &domain.ResultView{Key: "labels", FragmentID: 0, Values: map[domain.VertexID]any{1: 1, 2: 1}}))
	require.NoError(t, store.Publish(ctx, &domain.ResultView{Key: "labels", FragmentID: 1, Values: map[domain.VertexID]any{3: 1}}))
	return store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestResults(t *testing.T) {
	h := NewHandler(seeded(t))

	w := get(t, h, "/results")
	require.Equal(t, http.StatusOK, w.Code)
	var list map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, []string{"labels"}, list["keys"])

	w = get(t, h, "/results/labels")
	require.Equal(t, http.StatusOK, w.Code)
	var views []domain.ResultView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, 1, views[1].FragmentID)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/results/missing").Code)
}

func TestGetVertex(t *testing.T) {
	h := NewHandler(seeded(t))

	w := get(t, h, "/results/labels/vertices/3")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1.0, body["fragment_id"])
	assert.Equal(t, 1.0, body["value"])

	assert.Equal(t, http.StatusNotFound, get(t, h, "/results/labels/vertices/42").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/results/labels/vertices/abc").Code)
}

func TestDeleteResult(t *testing.T) {
	store := seeded(t)
	h := NewHandler(store)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/results/labels", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := store.Load(context.Background(), "labels")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestHealthInfoAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "pie_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	h := NewHandler(memory.NewStore(), WithGatherer(reg))

	assert.Contains(t, get(t, h, "/health").Body.String(), `"ok"`)
	assert.Contains(t, get(t, h, "/info").Body.String(), "pie-http")
	assert.Contains(t, get(t, h, "/metrics").Body.String(), "pie_test_total 1")

	assert.Equal(t, http.StatusNotFound, get(t, NewHandler(memory.NewStore()), "/metrics").Code)
}

func TestSubscribeEvents(t *testing.T) {
	sm := NewStreamManager(nil)
	h := NewHandler(memory.NewStore(), WithStreams(sm))
	hooks := sm.Hooks()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events?group=g1", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeHTTP(w, req)
		close(done)
	}()

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		sm.mu.RLock()
		defer sm.mu.RUnlock()
		return len(sm.subscribers["g1"]) == 1
	}, time.Second, 5*time.Millisecond)

	hooks.OnSuperstep(ctx, &domain.SuperstepEvent{
		EventBase: domain.EventBase{Type: domain.EventSuperstepEnd, Group: "g1", FragmentID: 2},
		Superstep: 1,
		Sent:      5,
	})
	hooks.OnSuperstep(ctx, &domain.SuperstepEvent{
		EventBase: domain.EventBase{Type: domain.EventSuperstepEnd, Group: "other"},
	})
	hooks.OnQueryFinish(ctx, &domain.QueryEvent{
		EventBase: domain.EventBase{Type: domain.EventQueryFinish, Group: "g1"},
		Err:       domain.ErrPeerFailed,
	})

	require.Eventually(t, func() bool {
		sm.mu.RLock()
		defer sm.mu.RUnlock()
		for ch := range sm.subscribers["g1"] {
			return len(ch) == 0
		}
		return false
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "event: superstep_end")
	assert.Contains(t, body, `"sent":5`)
	assert.Contains(t, body, "event: query_finish")
	assert.Contains(t, body, "peer partition failed")
	assert.Equal(t, 2, strings.Count(body, "data: {"))
}
