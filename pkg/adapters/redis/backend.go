// Package redis stores drafts in Redis so several devices on one account
// can recover each other's unsaved work.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/introspection"
	"github.com/redis/go-redis/v9"

	"github.com/aretw0/inkwell/pkg/core"
)

// DefaultPrefix namespaces draft keys.
const DefaultPrefix = "inkwell:draft:"

// draftData is the JSON value stored per key.
type draftData struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	Favorited bool      `json:"favorited"`
	SavedAt   time.Time `json:"saved_at"`
}

// Backend implements core.DraftBackend on Redis string keys.
type Backend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Backend.
type Option func(*Backend)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(b *Backend) { b.prefix = prefix }
}

// WithTTL expires drafts that have not been rewritten for d. Zero keeps them
// until removed.
func WithTTL(d time.Duration) Option {
	return func(b *Backend) { b.ttl = d }
}

// New connects to redisURL (redis://host:port/db) and checks reachability.
func New(redisURL string, opts ...Option) (*Backend, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, opts...), nil
}

// NewWithClient creates a backend from an existing client.
func NewWithClient(client *redis.Client, opts ...Option) *Backend {
	b := &Backend{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) key(k string) string {
	return b.prefix + k
}

// Put stores the draft for key.
func (b *Backend) Put(ctx context.Context, key string, d core.Draft) error {
	data, err := json.Marshal(draftData{
		Title:     d.Title,
		Body:      d.Body,
		Tags:      d.Tags,
		Favorited: d.Favorited,
		SavedAt:   d.SavedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := b.client.Set(ctx, b.key(key), data, b.ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	return nil
}

// Get returns the draft for key or core.ErrNotFound.
func (b *Backend) Get(ctx context.Context, key string) (core.Draft, error) {
	raw, err := b.client.Get(ctx, b.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return core.Draft{}, fmt.Errorf("draft %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return core.Draft{}, fmt.Errorf("lookup draft %s: %w", key, err)
	}

	var data draftData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return core.Draft{}, fmt.Errorf("draft %s: %w: %v", key, core.ErrInvalidDraft, err)
	}
	return core.Draft{
		Fields:  core.Fields{Title: data.Title, Body: data.Body, Tags: data.Tags, Favorited: data.Favorited},
		SavedAt: data.SavedAt,
	}, nil
}

// Delete removes the draft for key.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}

// Keys lists draft keys in lexical order. It uses SCAN so large keyspaces do
// not block the server.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), b.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan drafts: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping checks if Redis is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *Backend) Close() error {
	return b.client.Close()
}

// BackendState exposes internal state for observability.
type BackendState struct {
	Addr   string        `json:"addr"`
	Prefix string        `json:"prefix"`
	TTL    time.Duration `json:"ttl"`
}

// State implements introspection.Introspectable.
func (b *Backend) State() any {
	return BackendState{Addr: b.client.Options().Addr, Prefix: b.prefix, TTL: b.ttl}
}

// ComponentType implements introspection.Component.
func (b *Backend) ComponentType() string {
	return "redis-drafts"
}

var (
	_ core.DraftBackend            = (*Backend)(nil)
	_ introspection.Introspectable = (*Backend)(nil)
	_ introspection.Component      = (*Backend)(nil)
)
