package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/darkstore/core/model"
	core "github.com/kilianp07/darkstore/core/store"
)

// mergeAttempts bounds optimistic retries when a watched hash changes under us.
const mergeAttempts = 5

// RedisStore keeps one hash per collection; each hash field is a record id
// holding the JSON document.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis connects with opts and verifies the connection.
func NewRedis(ctx context.Context, opts *redis.Options, prefix string) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, redisUnreachable("ping", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) key(collection string) string {
	if s.prefix == "" {
		return collection
	}
	return s.prefix + ":" + collection
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]core.Record, error) {
	all, err := s.client.HGetAll(ctx, s.key(collection)).Result()
	if err != nil {
		return nil, redisUnreachable("list "+collection, err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]core.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := decodeBody([]byte(all[id]))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (core.Record, error) {
	body, err := s.client.HGet(ctx, s.key(collection), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, redisUnreachable("get "+collection+"/"+id, err)
	}
	return decodeBody(body)
}

// Merge reads, patches and writes the record inside WATCH/MULTI so that a
// concurrent writer on the same collection forces a retry.
func (s *RedisStore) Merge(ctx context.Context, collection, id string, fields core.Record) error {
	patch, err := core.Normalize(fields)
	if err != nil {
		return err
	}
	key := s.key(collection)
	txf := func(tx *redis.Tx) error {
		base := core.Record{}
		body, err := tx.HGet(ctx, key, id).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if base, err = decodeBody(body); err != nil {
				return err
			}
		}
		doc := core.Patch(base, patch)
		doc[core.IDField] = id
		out, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, id, out)
			return nil
		})
		return err
	}
	for i := 0; i < mergeAttempts; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return redisUnreachable("merge "+collection+"/"+id, err)
	}
	return nil
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, rec core.Record) error {
	doc, err := core.Normalize(rec)
	if err != nil {
		return err
	}
	doc[core.IDField] = id
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.key(collection), id, body).Err(); err != nil {
		return redisUnreachable("set "+collection+"/"+id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.HDel(ctx, s.key(collection), id).Err(); err != nil {
		return redisUnreachable("delete "+collection+"/"+id, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }

func redisUnreachable(op string, err error) error {
	return fmt.Errorf("redis store: %s: %w: %w", op, model.ErrStoreUnreachable, err)
}
