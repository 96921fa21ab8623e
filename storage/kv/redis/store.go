package rediskv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unitrack/unitrack/core"
)

// Store persists session state in Redis so a student's caches survive
// process restarts and are shared across portal instances.
type Store struct {
	rdb *goredis.Client
}

var _ core.KVStore = (*Store)(nil)

// Open connects to Redis using the redis* config keys and pings it.
func Open() (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     core.Conf.GetString("redisAddr"),
		Password: core.Conf.GetString("redisPassword"),
		DB:       core.Conf.GetInt("redisDB"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping")
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return errors.Wrap(s.rdb.Set(ctx, key, value, 0).Err(), "redis set")
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.rdb.Del(ctx, key).Err(), "redis del")
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
