package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const redisTimeout = 2 * time.Second

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Redis implements Storage on a Redis server, so several machines can share
// one timing cache. Keys are stored as-is; the cache namespaces its own keys.
type Redis struct {
	client *goredis.Client
}

// OpenRedis connects to the server described by a redis:// URL and pings it
func OpenRedis(url string) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", opts.Addr)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Get(key string) (json.RawMessage, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %q", key)
	}
	return val, true, nil
}

func (r *Redis) Set(key string, value json.RawMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return errors.Wrapf(r.client.Set(ctx, key, []byte(value), 0).Err(), "redis set %q", key)
}

func (r *Redis) Remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return errors.Wrapf(r.client.Del(ctx, key).Err(), "redis remove %q", key)
}

// ListKeys walks the keys under prefix with SCAN MATCH, leaving the rest
// of a shared keyspace alone
func (r *Redis) ListKeys(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*redisTimeout)
	defer cancel()

	var keys []string
	iter := r.client.Scan(ctx, 0, globEscaper.Replace(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "redis scan")
	}
	return keys, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
