// Package notify 在一次筛选结束后推送结果摘要。
// 支持 Telegram Bot 与 Discord Webhook，均通过环境变量启用，未配置时静默跳过。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nodesieve/nodepool/report"
)

const requestTimeout = 10 * time.Second

const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvDiscordWebhook = "DISCORD_WEBHOOK_URL"
)

// Notifier 与 nodepool.Notifier 相同，这里重复定义避免反向依赖。
type Notifier interface {
	Name() string
	Notify(ctx context.Context, nodesPath string, r *report.Report) error
}

// FromEnv 返回所有已通过环境变量配置的通知器。
func FromEnv(getenv func(string) string) []Notifier {
	var out []Notifier
	token := strings.TrimSpace(getenv(EnvTelegramToken))
	chatID := strings.TrimSpace(getenv(EnvTelegramChatID))
	if token != "" && chatID != "" {
		out = append(out, NewTelegram(token, chatID, ""))
	}
	if webhook := strings.TrimSpace(getenv(EnvDiscordWebhook)); webhook != "" {
		out = append(out, NewDiscord(webhook))
	}
	return out
}

// FormatMessage 生成 Markdown 格式的摘要。
func FormatMessage(r *report.Report) string {
	var sb strings.Builder
	sb.WriteString("🎉 *Node quality filter finished*\n\n")
	fmt.Fprintf(&sb, "✅ *Available*: %d / %d (%s)\n", r.Summary.AvailableNodes, r.Summary.ParsedSuccess, r.Summary.AvailabilityRate)
	fmt.Fprintf(&sb, "📥 *Input*: %d, after dedup %d\n", r.Summary.TotalInput, r.Summary.AfterDedup)
	fmt.Fprintf(&sb, "🔍 *Probed*: %d in %d batch(es), stop: %s\n", r.Probing.Probed, r.Probing.Batches, r.Probing.StopReason)

	d := r.LatencyDistribution
	fmt.Fprintf(&sb, "⚡ *Latency*: <100ms %d, 100-200ms %d, 200-300ms %d, 300-500ms %d\n",
		d.Under100, d.From100, d.From200, d.From300Up)

	if e := r.Enrichment; e != nil {
		fmt.Fprintf(&sb, "🛡️ *Risk check* (%s): checked %d, filtered %d, penalized %d\n",
			e.Provider, e.Checked, e.Filtered, e.Penalized)
	}
	fmt.Fprintf(&sb, "⏰ %s UTC", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	return sb.String()
}

func postJSON(ctx context.Context, client *http.Client, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(client, req)
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
