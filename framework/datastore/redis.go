package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSingularPrefix   = "lane:data:singular:"
	redisRelationalPrefix = "lane:data:relational:"
)

// RedisBackend stores objects as JSON strings. An expiring object also gets
// a redis TTL so abandoned keys age out even without a read; the Store still
// applies the expiry-on-read contract for clock-skewed entries.
type RedisBackend struct {
	cli redis.Cmdable
}

func NewRedisBackend(cli redis.Cmdable) *RedisBackend {
	return &RedisBackend{cli: cli}
}

func redisKey(id ObjectID) string {
	if id.Relational != nil {
		return redisRelationalPrefix + id.Relational.Table + ":" + id.Relational.EntityID + ":" + id.Key
	}
	return redisSingularPrefix + id.Key
}

func (r *RedisBackend) Load(ctx context.Context, id ObjectID) (*DataObject, bool, error) {
	data, err := r.cli.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var obj DataObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false, fmt.Errorf("corrupt data object %s: %w", id, err)
	}
	return &obj, true, nil
}

func (r *RedisBackend) Save(ctx context.Context, obj *DataObject) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if obj.RemovalTime != nil && *obj.RemovalTime > 0 {
		ttl = time.Until(time.UnixMilli(*obj.RemovalTime))
		if ttl <= 0 {
			ttl = time.Millisecond
		}
	}
	return r.cli.Set(ctx, redisKey(obj.ID), data, ttl).Err()
}

func (r *RedisBackend) Delete(ctx context.Context, id ObjectID) error {
	return r.cli.Del(ctx, redisKey(id)).Err()
}

func (r *RedisBackend) ListIDs(ctx context.Context, relational *RelationalID, prefix string) ([]ObjectID, error) {
	var match string
	if relational != nil {
		match = redisRelationalPrefix + relational.Table + ":" + relational.EntityID + ":" + prefix + "*"
	} else {
		match = redisSingularPrefix + prefix + "*"
	}

	var ids []ObjectID
	iter := r.cli.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		switch {
		case relational != nil:
			rest := strings.TrimPrefix(key, redisRelationalPrefix+relational.Table+":"+relational.EntityID+":")
			ids = append(ids, ObjectID{Relational: relational, Key: rest})
		default:
			ids = append(ids, ObjectID{Key: strings.TrimPrefix(key, redisSingularPrefix)})
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *RedisBackend) Close() error {
	return nil
}
