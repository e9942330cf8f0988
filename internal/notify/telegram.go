package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"nodesieve/internal/shared/logger"
	"nodesieve/nodepool/report"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram 通过 Bot API 发送摘要，并把节点列表作为文件附上。
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegram 创建 Telegram 通知器。baseURL 为空时使用官方 API 地址。
func NewTelegram(token, chatID, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = defaultTelegramAPI
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) endpoint(method string) string {
	return t.baseURL + "/bot" + t.token + "/" + method
}

// Notify 先发送文本摘要；节点文件非空时再发送文件。文件发送失败只记录警告。
func (t *Telegram) Notify(ctx context.Context, nodesPath string, r *report.Report) error {
	err := postJSON(ctx, t.client, t.endpoint("sendMessage"), map[string]any{
		"chat_id":                  t.chatID,
		"text":                     FormatMessage(r),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}

	if nodesPath == "" || r.Summary.AvailableNodes == 0 {
		return nil
	}
	if err := t.sendDocument(ctx, nodesPath); err != nil {
		l := logger.WithComponent("Notify/Telegram")
		l.Warn().Err(err).Str("path", nodesPath).Msg("Failed to send nodes file.")
	}
	return nil
}

func (t *Telegram) sendDocument(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendDocument"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := do(t.client, req); err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	return nil
}
