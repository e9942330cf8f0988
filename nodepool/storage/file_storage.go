package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"nodesieve/internal/shared/logger"
	"nodesieve/nodepool/model"
)

const (
	delimiter = "|"
	numFields = 8 // Key|Provider|Country|ISP|Risk|Hosting|Residential|CheckedAt
)

// FileStorage 实现了 VerdictStore 接口，使用纯文本文件进行持久化。
// 打开时整体读入内存，每次 Put 后整体重写。
type FileStorage struct {
	filePath string
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	verdicts map[string]*model.Verdict
}

// NewFileStorage 创建一个新的 FileStorage 实例并加载已有记录。
func NewFileStorage(filePath string, ttl time.Duration) (*FileStorage, error) {
	fs := &FileStorage{
		filePath: filePath,
		ttl:      ttl,
		now:      time.Now,
	}
	verdicts, err := fs.load()
	if err != nil {
		return nil, err
	}
	fs.verdicts = verdicts
	return fs, nil
}

func (fs *FileStorage) Get(_ context.Context, key string) (*model.Verdict, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	v, ok := fs.verdicts[key]
	if !ok || expired(v, fs.ttl, fs.now()) {
		return nil, false, nil
	}
	cp := *v
	return &cp, true, nil
}

func (fs *FileStorage) Put(_ context.Context, key string, v *model.Verdict) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	cp := *v
	fs.verdicts[key] = &cp
	return fs.save()
}

func (fs *FileStorage) Close() error { return nil }

// load 从纯文本文件加载缓存记录，跳过格式错误和已过期的行。
func (fs *FileStorage) load() (map[string]*model.Verdict, error) {
	l := logger.WithComponent("NodePool/Storage")

	file, err := os.Open(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("path", fs.filePath).Msg("Verdict cache file not found, starting with an empty cache.")
			return make(map[string]*model.Verdict), nil
		}
		return nil, err
	}
	defer file.Close()

	verdicts := make(map[string]*model.Verdict)
	now := fs.now()
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, delimiter)
		if len(fields) != numFields {
			l.Warn().Int("line", lineNum).Int("expected", numFields).Int("got", len(fields)).Msg("Skipping malformed line in verdict cache.")
			continue
		}

		key, v, err := parseVerdict(fields)
		if err != nil {
			l.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse verdict from line, skipping.")
			continue
		}
		if expired(v, fs.ttl, now) {
			continue
		}
		verdicts[key] = v
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.Info().Int("count", len(verdicts)).Msg("Loaded verdict cache from file.")
	return verdicts, nil
}

func (fs *FileStorage) save() error {
	keys := make([]string, 0, len(fs.verdicts))
	for k := range fs.verdicts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		line, err := formatVerdict(k, fs.verdicts[k])
		if err != nil {
			return err
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if dir := filepath.Dir(fs.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(fs.filePath, []byte(sb.String()), 0644)
}

// formatVerdict 将一条缓存记录格式化为一行文本。
func formatVerdict(key string, v *model.Verdict) (string, error) {
	risk, err := json.Marshal(v.Risk)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{
		clean(key),
		clean(v.Provider),
		clean(v.Country),
		clean(v.ISP),
		clean(string(risk)),
		strconv.FormatBool(v.Hosting),
		strconv.FormatBool(v.Residential),
		strconv.FormatInt(v.CheckedAt.Unix(), 10),
	}, delimiter), nil
}

// parseVerdict 从字符串切片解析出一条缓存记录。
func parseVerdict(fields []string) (string, *model.Verdict, error) {
	v := &model.Verdict{
		Provider: fields[1],
		Country:  fields[2],
		ISP:      fields[3],
	}
	if fields[4] != "" {
		if err := json.Unmarshal([]byte(fields[4]), &v.Risk); err != nil {
			return "", nil, fmt.Errorf("invalid risk: %w", err)
		}
	}

	hosting, err := strconv.ParseBool(fields[5])
	if err != nil {
		return "", nil, fmt.Errorf("invalid hosting flag: %w", err)
	}
	v.Hosting = hosting

	residential, err := strconv.ParseBool(fields[6])
	if err != nil {
		return "", nil, fmt.Errorf("invalid residential flag: %w", err)
	}
	v.Residential = residential

	checkedUnix, err := strconv.ParseInt(fields[7], 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid checked time: %w", err)
	}
	v.CheckedAt = time.Unix(checkedUnix, 0)

	return fields[0], v, nil
}

// clean 去掉会破坏行格式的字符。
func clean(s string) string {
	return strings.NewReplacer(delimiter, "/", "\n", " ", "\r", " ").Replace(s)
}
