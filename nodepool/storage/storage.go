package storage

import (
	"context"
	"fmt"
	"time"

	"nodesieve/internal/shared/types"
	"nodesieve/nodepool/model"
)

// VerdictStore 接口定义了风险检测结果缓存的行为。
// key 形如 "provider:ip"，过期的记录视为未命中。
type VerdictStore interface {
	Get(ctx context.Context, key string) (*model.Verdict, bool, error)
	Put(ctx context.Context, key string, v *model.Verdict) error
	Close() error
}

// New 按 [ip_risk_check] 的 cache 字段创建缓存，"none" 或空值返回 nil。
func New(cfg types.IPRiskConf) (VerdictStore, error) {
	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour

	var (
		store VerdictStore
		err   error
	)
	switch cfg.Cache {
	case "", "none":
		return nil, nil
	case "file":
		store, err = NewFileStorage(cfg.CachePath, ttl)
	case "sqlite":
		store, err = NewSQLiteStorage(cfg.CachePath, ttl)
	case "redis":
		store, err = NewRedisStorage(cfg.RedisURL, ttl)
	default:
		return nil, fmt.Errorf("unknown verdict cache backend %q", cfg.Cache)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// expired 报告记录是否超过 ttl。ttl <= 0 表示永不过期。
func expired(v *model.Verdict, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(v.CheckedAt) > ttl
}
