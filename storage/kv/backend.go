// Package kv implements the remote key-value session backend on Redis.
//
// Layout: every session is a JSON string at "{prefix}:{id}" and the set of
// known ids lives in the Redis set "{prefix}:index". Redis has no cheap
// "list all records" operation, so the index is maintained on every insert
// and delete, atomically with the record itself. The id "index" would name
// the index key itself, so it never holds a session: reads report it as not
// found and inserts report it as taken.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
)

// DefaultPrefix namespaces session keys.
const DefaultPrefix = "session"

// ReservedID is the key suffix of the id index.
const ReservedID = "index"

const insertSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SADD", KEYS[2], ARGV[2])
return 1
`

var insertSessionLua = redis.NewScript(insertSessionScript)

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Backend is a Redis-backed [session.Backend].
type Backend struct {
	redis  redis.UniversalClient
	prefix string

	indexMu       sync.Mutex
	indexMigrated bool
}

var _ session.Backend = (*Backend)(nil)

// New returns a Backend using client. An empty prefix selects DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{redis: client, prefix: prefix}
}

// NewClient builds a Redis client from a redis:// or rediss:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (b *Backend) key(id string) string {
	return b.prefix + ":" + id
}

func (b *Backend) indexKey() string {
	return b.prefix + ":" + ReservedID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", session.ErrStorageUnavailable, err)
}

// Fetch loads and decodes one record.
//
//	Performance: 1 Redis GET.
func (b *Backend) Fetch(ctx context.Context, id string) (*session.Session, error) {
	if id == ReservedID {
		return nil, session.ErrNotFound
	}
	data, err := b.redis.Get(ctx, b.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, session.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return session.Decode(data)
}

// Insert writes a new record and adds its id to the index in one script.
//
//	Performance: 1 Lua EVALSHA (EXISTS + SET + SADD).
func (b *Backend) Insert(ctx context.Context, s *session.Session) error {
	if s.ID == ReservedID {
		return session.ErrExists
	}
	if err := b.ensureIndexMigrated(ctx); err != nil {
		return err
	}
	data, err := session.Encode(s)
	if err != nil {
		return err
	}

	created, err := insertSessionLua.Run(ctx, b.redis, []string{b.key(s.ID), b.indexKey()}, data, s.ID).Int64()
	if err != nil {
		return unavailable(err)
	}
	if created == 0 {
		return session.ErrExists
	}
	return nil
}

// Write overwrites the record and makes sure it is indexed.
//
//	Performance: 1 MULTI/EXEC (SET + SADD).
func (b *Backend) Write(ctx context.Context, s *session.Session) error {
	if s.ID == ReservedID {
		return session.ErrNotFound
	}
	if err := b.ensureIndexMigrated(ctx); err != nil {
		return err
	}
	data, err := session.Encode(s)
	if err != nil {
		return err
	}

	_, err = b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.key(s.ID), data, 0)
		pipe.SAdd(ctx, b.indexKey(), s.ID)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// CompareAndSwap writes s only if the stored version still equals expected.
// It relies on WATCH: a concurrent write to the key between the read and
// EXEC aborts the transaction, which is reported as a version conflict.
//
//	Performance: WATCH + GET + MULTI/EXEC.
func (b *Backend) CompareAndSwap(ctx context.Context, s *session.Session, expected int64) error {
	if s.ID == ReservedID {
		return session.ErrNotFound
	}
	data, err := session.Encode(s)
	if err != nil {
		return err
	}
	key := b.key(s.ID)

	err = b.redis.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return session.ErrNotFound
			}
			return err
		}
		current, err := session.Decode(raw)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return session.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return session.ErrVersionConflict
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrVersionConflict),
		errors.Is(err, session.ErrCorrupt):
		return err
	default:
		return unavailable(err)
	}
}

// Delete removes the record and its index entry.
//
//	Performance: 1 Lua EVALSHA (DEL + SREM).
func (b *Backend) Delete(ctx context.Context, id string) error {
	if id == ReservedID {
		return nil
	}
	if err := b.ensureIndexMigrated(ctx); err != nil {
		return err
	}
	if err := deleteSessionLua.Run(ctx, b.redis, []string{b.key(id), b.indexKey()}, id).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// List returns every record named by the index. Index entries whose record
// is gone are skipped.
//
//	Performance: 1 SMEMBERS + 1 pipelined GET batch.
func (b *Backend) List(ctx context.Context) ([]*session.Session, error) {
	if err := b.ensureIndexMigrated(ctx); err != nil {
		return nil, err
	}

	ids, err := b.redis.SMembers(ctx, b.indexKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*session.Session{}, nil
		}
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []*session.Session{}, nil
	}

	pipe := b.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, b.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable(err)
	}

	out := make([]*session.Session, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, unavailable(err)
		}
		s, err := session.Decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Ping checks Redis availability.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// ensureIndexMigrated converts an index stored as a JSON array string (the
// layout used before the index became a Redis set) into a set. It runs until
// it succeeds once per Backend.
func (b *Backend) ensureIndexMigrated(ctx context.Context) error {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()
	if b.indexMigrated {
		return nil
	}

	key := b.indexKey()
	err := b.redis.Watch(ctx, func(tx *redis.Tx) error {
		kind, err := tx.Type(ctx, key).Result()
		if err != nil {
			return err
		}
		if kind != "string" {
			return nil
		}

		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return fmt.Errorf("%w: legacy index: %v", session.ErrCorrupt, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(ids) > 0 {
				members := make([]interface{}, len(ids))
				for i, id := range ids {
					members[i] = id
				}
				pipe.SAdd(ctx, key, members...)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, session.ErrCorrupt) {
			return err
		}
		return unavailable(err)
	}

	b.indexMigrated = true
	return nil
}
