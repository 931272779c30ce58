package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/pie/pkg/domain"
)

// Event is one server-sent event.
type Event struct {
	Type domain.EventType
	Data []byte
}

// StreamManager fans worker lifecycle events out to SSE subscribers.
// Subscribing to the empty group receives every group.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(group string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 32)
	if _, ok := sm.subscribers[group]; !ok {
		sm.subscribers[group] = make(map[chan Event]struct{})
	}
	sm.subscribers[group][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			subs := sm.subscribers[group]
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, group)
			}
		})
	}
}

// Broadcast sends ev to the subscribers of group and to the catch-all ones.
// Slow subscribers lose events instead of stalling the caller.
func (sm *StreamManager) Broadcast(group string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	targets := []string{""}
	if group != "" {
		targets = append(targets, group)
	}
	for _, g := range targets {
		for ch := range sm.subscribers[g] {
			select {
			case ch <- ev:
			default:
				sm.logger.Warn("SSE: client buffer full, dropping event", "group", group, "type", ev.Type)
			}
		}
	}
}

// Hooks returns lifecycle hooks broadcasting every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) { sm.publish(e.EventBase, e) },
		OnQueryStart:  func(_ context.Context, e *domain.QueryEvent) { sm.publish(e.EventBase, e) },
		OnQueryFinish: func(_ context.Context, e *domain.QueryEvent) { sm.publish(e.EventBase, queryFinish{e, errString(e.Err)}) },
		OnSuperstep:   func(_ context.Context, e *domain.SuperstepEvent) { sm.publish(e.EventBase, e) },
	}
}

type queryFinish struct {
	*domain.QueryEvent
	Error string `json:"error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (sm *StreamManager) publish(base domain.EventBase, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		sm.logger.Error("SSE: event encode failed", "type", base.Type, "err", err)
		return
	}
	sm.Broadcast(base.Group, Event{Type: base.Type, Data: data})
}
