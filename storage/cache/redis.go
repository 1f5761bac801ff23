// Package cache holds the Redis backed services: a JSON value cache and a student identifier sequencer.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/enrollment"
)

const (
	keyPrefix      = "shule:"
	sequencePrefix = keyPrefix + "student_seq:"
)

// Open connects to the configured Redis server and checks it answers.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Redis.Addr,
		Password:     conf.Redis.Password,
		DB:           conf.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// RedisCache stores values as JSON under namespaced keys.
type RedisCache struct {
	client redis.Cmdable
}

var _ core.Cache = (*RedisCache)(nil) // interface compliance check

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return core.ErrCacheMiss
	}
	if err != nil {
		return errors.Wrapf(err, "getting %s", key)
	}
	return errors.Wrapf(json.Unmarshal(data, dest), "decoding %s", key)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, keyPrefix+key, data, ttl).Err(), "setting %s", key)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, keyPrefix+k)
	}
	return errors.Wrap(c.client.Del(ctx, full...).Err(), "deleting keys")
}

// SequenceSeeder finds the highest sequence number already used in a year partition.
type SequenceSeeder interface {
	LastSequence(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error)
}

// RedisSequencer allocates student sequence numbers with INCR, so several API processes
// can share one counter per year. A partition's counter starts at its highest identifier.
// Values are not returned on rollback: a failed enrollment leaves a gap.
type RedisSequencer struct {
	client   redis.Cmdable
	students SequenceSeeder
}

var _ enrollment.Sequencer = (*RedisSequencer)(nil) // interface compliance check

func NewRedisSequencer(client redis.Cmdable, students SequenceSeeder) *RedisSequencer {
	return &RedisSequencer{client: client, students: students}
}

func (s *RedisSequencer) NextValue(ctx context.Context, partition string, exec ...core.DBExecutor) (int, error) {
	key := sequencePrefix + partition

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "checking sequence")
	}
	if exists == 0 {
		last, err := s.students.LastSequence(ctx, partition, exec...)
		if err != nil {
			return 0, errors.Wrap(err, "seeding sequence")
		}
		// the first process to seed wins
		if err = s.client.SetNX(ctx, key, last, 0).Err(); err != nil {
			return 0, errors.Wrap(err, "seeding sequence")
		}
	}

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "incrementing sequence")
	}
	return int(n), nil
}
