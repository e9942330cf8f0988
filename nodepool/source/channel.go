package source

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"nodesieve/internal/shared/logger"
)

// 频道页面中承载节点文本的元素
const messageSelector = "div.tgme_widget_message_text, pre, code, p"

// ChannelSource 抓取公开频道的 HTML 页面（如 t.me/s/xxx），从消息文本和链接中提取节点 URI。
type ChannelSource struct {
	pages   []string
	timeout time.Duration
}

func NewChannelSource(pages []string, timeout time.Duration) *ChannelSource {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChannelSource{pages: pages, timeout: timeout}
}

func (s *ChannelSource) Name() string { return "channel" }

func (s *ChannelSource) Fetch(ctx context.Context) ([]string, error) {
	l := logger.WithComponent("NodePool/Source")

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	var lines []string
	var lastErr error
	succeeded := 0

	c.OnHTML("body", func(e *colly.HTMLElement) {
		got := extractFromDocument(e.DOM)
		l.Debug().Str("host", e.Request.URL.Host).Int("count", len(got)).Msg("Channel page parsed.")
		lines = append(lines, got...)
		succeeded++
	})
	c.OnError(func(r *colly.Response, err error) {
		l.Warn().Err(err).Int("status_code", r.StatusCode).Str("host", r.Request.URL.Host).Msg("Channel page request failed.")
		lastErr = err
	})

	for _, page := range s.pages {
		if err := c.Visit(page); err != nil {
			l.Warn().Err(err).Msg("Cannot visit channel page.")
			lastErr = err
		}
	}
	c.Wait()

	if succeeded == 0 && len(s.pages) > 0 {
		if lastErr == nil {
			lastErr = errors.New("no channel page could be fetched")
		}
		return nil, lastErr
	}
	return lines, nil
}

// extractFromDocument 从消息块文本与 a[href] 中提取节点 URI，保持出现顺序。
func extractFromDocument(root *goquery.Selection) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(text string) {
		for _, m := range nodeURIRe.FindAllString(text, -1) {
			m = strings.TrimRight(m, ".,;)")
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}

	root.Find(messageSelector).Each(func(_ int, sel *goquery.Selection) {
		// <br> 分隔的多个节点要拆开
		sel.Find("br").ReplaceWithHtml("\n")
		add(sel.Text())
	})
	root.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		add(href)
	})
	return out
}
