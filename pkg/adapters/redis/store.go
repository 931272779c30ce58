package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/pie/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.ResultStore using Redis.
// Each key is a hash of fragment id -> JSON view; a sorted set indexes the keys.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration of published results.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for results.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis result store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis result store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "pie:result:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Publish stores view under its key, replacing the previous view of the fragment.
func (s *Store) Publish(ctx context.Context, view *domain.ResultView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal result view: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(view.Key), strconv.Itoa(view.FragmentID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key(view.Key), s.ttl)
	}

	// Score = Now + TTL. If TTL = 0, Score = far future.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: view.Key})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Load returns every fragment's view for key, ordered by fragment id.
func (s *Store) Load(ctx context.Context, key string) ([]*domain.ResultView, error) {
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to load from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrResultNotFound
	}

	views := make([]*domain.ResultView, 0, len(fields))
	for fid, raw := range fields {
		var view domain.ResultView
		if err := json.Unmarshal([]byte(raw), &view); err != nil {
			return nil, fmt.Errorf("failed to unmarshal view %s/%s: %w", key, fid, err)
		}
		views = append(views, &view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].FragmentID < views[j].FragmentID })
	return views, nil
}

// Delete removes every view under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(key))
	pipe.ZRem(ctx, s.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns published keys, pruning expired ones from the index first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired results: %w", err)
	}

	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
