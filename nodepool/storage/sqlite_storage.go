package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"nodesieve/nodepool/model"
)

// verdictRecord 是 sqlite 中的表结构。
type verdictRecord struct {
	CacheKey    string `gorm:"primaryKey"`
	Provider    string
	Country     string
	ISP         string
	Risk        string
	Hosting     bool
	Residential bool
	CheckedAt   time.Time `gorm:"index"`
}

func (verdictRecord) TableName() string { return "ip_verdicts" }

// SQLiteStorage 使用嵌入式 sqlite 数据库保存缓存，适合多次运行之间共享。
type SQLiteStorage struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLiteStorage(path string, ttl time.Duration) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite cache %s: %w", path, err)
	}
	if err := db.AutoMigrate(&verdictRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite cache: %w", err)
	}
	return &SQLiteStorage{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) (*model.Verdict, bool, error) {
	var rec verdictRecord
	err := s.db.WithContext(ctx).First(&rec, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	v := &model.Verdict{
		Provider:    rec.Provider,
		Country:     rec.Country,
		ISP:         rec.ISP,
		Hosting:     rec.Hosting,
		Residential: rec.Residential,
		CheckedAt:   rec.CheckedAt,
	}
	if rec.Risk != "" {
		if err := json.Unmarshal([]byte(rec.Risk), &v.Risk); err != nil {
			return nil, false, fmt.Errorf("invalid cached risk for %s: %w", key, err)
		}
	}
	if expired(v, s.ttl, s.now()) {
		return nil, false, nil
	}
	return v, true, nil
}

func (s *SQLiteStorage) Put(ctx context.Context, key string, v *model.Verdict) error {
	risk, err := json.Marshal(v.Risk)
	if err != nil {
		return err
	}
	rec := verdictRecord{
		CacheKey:    key,
		Provider:    v.Provider,
		Country:     v.Country,
		ISP:         v.ISP,
		Risk:        string(risk),
		Hosting:     v.Hosting,
		Residential: v.Residential,
		CheckedAt:   v.CheckedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Purge 删除已过期的记录，返回删除条数。
func (s *SQLiteStorage) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("checked_at < ?", s.now().Add(-s.ttl)).Delete(&verdictRecord{})
	return res.RowsAffected, res.Error
}

func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
