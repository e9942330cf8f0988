package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nodesieve/nodepool/model"
)

const (
	redisKeyPrefix      = "nodesieve:verdict:"
	redisConnectTimeout = 5 * time.Second
)

// RedisStorage 把缓存记录以 JSON 写入 redis，过期交给 redis 的 TTL。
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(url string, ttl time.Duration) (*RedisStorage, error) {
	if url == "" {
		return nil, errors.New("redis cache selected but redis_url is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = redisConnectTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStorage{client: client, ttl: ttl}, nil
}

func (s *RedisStorage) Get(ctx context.Context, key string) (*model.Verdict, bool, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get verdict %s: %w", key, err)
	}

	var v model.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal verdict %s: %w", key, err)
	}
	return &v, true, nil
}

func (s *RedisStorage) Put(ctx context.Context, key string, v *model.Verdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set verdict %s: %w", key, err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
