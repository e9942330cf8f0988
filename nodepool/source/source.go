// Package source 读取原始节点字符串：本地文件、订阅链接与频道页面。
package source

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"nodesieve/internal/shared/logger"
	"nodesieve/internal/shared/types"
)

// ErrNoSource 表示该来源不存在（例如输入文件缺失）。
var ErrNoSource = errors.New("input source not found")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// nodeURIRe 从任意文本中提取受支持协议的节点 URI。
var nodeURIRe = regexp.MustCompile("(?i)\\b(?:vmess|vless|trojan|ssr|ss|hysteria2|hysteria)://[^\\s<>\"'`]+")

// Source 接口定义了读取原始节点字符串的行为。
type Source interface {
	// Fetch 返回原始节点字符串，不做解析与去重。
	Fetch(ctx context.Context) ([]string, error)

	// Name 返回来源名称，用于日志记录。
	Name() string
}

// New 按 [input] 段创建全部来源：本地文件总是第一个。
func New(cfg types.InputConf) []Source {
	timeout := time.Duration(cfg.FetchTimeout) * time.Second
	sources := []Source{NewFileSource(cfg.AllURLFile, cfg.CollectedFile)}
	if len(cfg.SubscriptionURLs) > 0 {
		sources = append(sources, NewSubscriptionSource(cfg.SubscriptionURLs, timeout))
	}
	if len(cfg.ChannelPages) > 0 {
		sources = append(sources, NewChannelSource(cfg.ChannelPages, timeout))
	}
	return sources
}

// Collect 依次读取所有来源并按顺序合并。
// 只有当每个来源都返回 ErrNoSource 时才返回 ErrNoSource；远程来源的其他错误只记录警告。
func Collect(ctx context.Context, sources []Source) ([]string, error) {
	l := logger.WithComponent("NodePool/Source")

	var lines []string
	found := false
	for _, s := range sources {
		got, err := s.Fetch(ctx)
		if errors.Is(err, ErrNoSource) {
			l.Debug().Str("source", s.Name()).Msg("Source not available.")
			continue
		}
		found = true
		if err != nil {
			l.Warn().Err(err).Str("source", s.Name()).Msg("Source fetch failed.")
			continue
		}
		l.Info().Str("source", s.Name()).Int("count", len(got)).Msg("Read raw nodes from source.")
		lines = append(lines, got...)
	}
	if !found {
		return nil, ErrNoSource
	}
	return lines, nil
}

// decodeSubscription 解析订阅内容：明文按行切分，否则尝试整体 base64 解码。
func decodeSubscription(body []byte) []string {
	text := strings.TrimSpace(string(body))
	if !strings.Contains(text, "://") {
		if decoded, ok := decodeBase64(text); ok {
			text = string(decoded)
		}
	}
	return splitURILines(text)
}

// splitURILines 返回所有包含 "://" 的非空行。
func splitURILines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && strings.Contains(line, "://") {
			out = append(out, line)
		}
	}
	return out
}

func decodeBase64(s string) ([]byte, bool) {
	s = strings.Join(strings.Fields(s), "")
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, true
	}
	return nil, false
}
