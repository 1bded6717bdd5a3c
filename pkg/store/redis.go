package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/maskatlas/pkg/errors"
)

// RedisStore persists metadata as fields of a named hash: one hash per table,
// one field per atlas name. Redis creates the hash on first write, so there is
// no table setup step. All commands go through the client API with the name
// and payload as arguments; no statement text is ever assembled from keys.
type RedisStore struct {
	client *redis.Client
	table  string
	owned  bool
}

// NewRedisStore wraps an already-open client. The caller keeps ownership of
// the connection; Close on the returned store is a no-op for it.
func NewRedisStore(client *redis.Client, table string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeMissingOption, "redis client is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if err := errors.ValidateTableName(table); err != nil {
		return nil, err
	}
	return &RedisStore{client: client, table: table}, nil
}

// OpenRedisStore dials addr and returns a store that owns the connection,
// closing it around the store's lifetime.
func OpenRedisStore(ctx context.Context, addr, table string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New(errors.ErrCodeMissingOption, "redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connect to redis at %s", addr)
	}
	s, err := NewRedisStore(client, table)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Read fetches and validates the metadata stored under name.
// A missing field, a missing hash, malformed payloads and dimension
// mismatches are all cache misses.
func (s *RedisStore) Read(ctx context.Context, name string, frameW, frameH int) (*Metadata, bool, error) {
	data, err := s.client.HGet(ctx, s.table, name).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStore, err, "read %q from table %q", name, s.table)
	}
	meta := Decode(data)
	if !meta.Usable(frameW, frameH) {
		return nil, false, nil
	}
	return meta, true, nil
}

// Write serializes meta and stores it under name in the table hash.
func (s *RedisStore) Write(ctx context.Context, meta *Metadata, name string) error {
	data, err := meta.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "encode metadata for %q", name)
	}
	if err := s.client.HSet(ctx, s.table, name, data).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "write %q to table %q", name, s.table)
	}
	return nil
}

// Close releases the connection if this store opened it.
func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
