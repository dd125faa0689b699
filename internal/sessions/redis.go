package sessions

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// RedisStore is a Store backed by redis. Records expire through redis key
// expiry, which is renewed on every touch.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new RedisStore; all keys are prefixed with prefix
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "kvapi"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisStore) sessionKey(id string) string {
	return r.prefix + ":session:" + id
}

func (r *RedisStore) userKey(userID string) string {
	return r.prefix + ":user-sessions:" + userID
}

// Save implements the Store interface
func (r *RedisStore) Save(ctx context.Context, s model.Session, ttl time.Duration) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return errors.WithStack(err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.sessionKey(s.ID), data, ttl)
	pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "could not store session in redis")
}

// Get implements the Store interface
func (r *RedisStore) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not read session from redis")
	}
	var s model.Session
	if err = msgpack.Unmarshal(data, &s); err != nil {
		return nil, errors.WithStack(err)
	}
	return &s, nil
}

// Touch implements the Store interface
func (r *RedisStore) Touch(ctx context.Context, id string, at time.Time, ttl time.Duration) (bool, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s == nil {
		return false, err
	}
	if at.After(s.LastActivityAt) {
		s.LastActivityAt = at
	}
	data, err := msgpack.Marshal(s)
	if err != nil {
		return false, errors.WithStack(err)
	}
	// XX: never recreate a session that was deleted in the meantime
	ok, err := r.client.SetArgs(
		ctx, r.sessionKey(id), data, redis.SetArgs{
			Mode: "XX",
			TTL:  ttl,
		},
	).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrap(err, "could not renew session in redis")
	}
	return ok == "OK", nil
}

// Delete implements the Store interface
func (r *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	s, err := r.Get(ctx, id)
	if err != nil || s == nil {
		return false, err
	}
	pipe := r.client.TxPipeline()
	del := pipe.Del(ctx, r.sessionKey(id))
	pipe.SRem(ctx, r.userKey(s.UserID), id)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, errors.Wrap(err, "could not delete session from redis")
	}
	return del.Val() > 0, nil
}

// DeleteForUser implements the Store interface
func (r *RedisStore) DeleteForUser(ctx context.Context, userID string) (int, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "could not list user sessions in redis")
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.sessionKey(id))
	}
	keys = append(keys, r.userKey(userID))
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.Wrap(err, "could not delete user sessions from redis")
	}
	// the user index key itself is not a session
	if n > 0 {
		n--
	}
	return int(n), nil
}

// Sweep implements the Store interface. Redis expires session records on its
// own; only stale ids in the per-user indexes are removed.
func (r *RedisStore) Sweep(ctx context.Context, _ time.Time, _ time.Duration) (int, error) {
	var removed int
	iter := r.client.Scan(ctx, 0, r.userKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		ids, err := r.client.SMembers(ctx, indexKey).Result()
		if err != nil {
			return removed, errors.Wrap(err, "could not list user sessions in redis")
		}
		for _, id := range ids {
			exists, err := r.client.Exists(ctx, r.sessionKey(id)).Result()
			if err != nil {
				return removed, errors.Wrap(err, "could not check session in redis")
			}
			if exists == 0 {
				r.client.SRem(ctx, indexKey, id)
				removed++
			}
		}
	}
	return removed, errors.Wrap(iter.Err(), "could not scan redis")
}

// Reset implements the Store interface
func (r *RedisStore) Reset(ctx context.Context) error {
	for _, pattern := range []string{r.sessionKey("*"), r.userKey("*")} {
		iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
				return errors.Wrap(err, "could not delete session from redis")
			}
		}
		if err := iter.Err(); err != nil {
			return errors.Wrap(err, "could not scan redis")
		}
	}
	return nil
}
