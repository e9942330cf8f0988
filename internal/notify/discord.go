package notify

import (
	"context"
	"fmt"
	"net/http"

	"nodesieve/nodepool/report"
)

const discordUsername = "nodesieve"

// Discord 通过 Webhook 发送摘要。
type Discord struct {
	webhook string
	client  *http.Client
}

func NewDiscord(webhook string) *Discord {
	return &Discord{webhook: webhook, client: &http.Client{Timeout: requestTimeout}}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Notify(ctx context.Context, _ string, r *report.Report) error {
	err := postJSON(ctx, d.client, d.webhook, map[string]any{
		"content":  FormatMessage(r),
		"username": discordUsername,
	})
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}
