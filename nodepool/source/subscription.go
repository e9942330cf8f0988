package source

import (
	"context"
	"errors"
	"time"

	"github.com/gocolly/colly/v2"

	"nodesieve/internal/shared/logger"
)

// SubscriptionSource 下载订阅链接，内容可以是明文或 base64。
type SubscriptionSource struct {
	urls    []string
	timeout time.Duration
}

func NewSubscriptionSource(urls []string, timeout time.Duration) *SubscriptionSource {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SubscriptionSource{urls: urls, timeout: timeout}
}

func (s *SubscriptionSource) Name() string { return "subscription" }

// Fetch 顺序访问每个订阅，单个订阅失败只记录警告；全部失败时返回最后一个错误。
func (s *SubscriptionSource) Fetch(ctx context.Context) ([]string, error) {
	l := logger.WithComponent("NodePool/Source")

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.timeout)

	var lines []string
	var lastErr error
	succeeded := 0

	c.OnResponse(func(r *colly.Response) {
		got := decodeSubscription(r.Body)
		l.Debug().Str("url", r.Request.URL.Host).Int("count", len(got)).Msg("Subscription fetched.")
		lines = append(lines, got...)
		succeeded++
	})
	c.OnError(func(r *colly.Response, err error) {
		l.Warn().Err(err).Int("status_code", r.StatusCode).Str("host", r.Request.URL.Host).Msg("Subscription request failed.")
		lastErr = err
	})

	for _, u := range s.urls {
		if err := c.Visit(u); err != nil {
			l.Warn().Err(err).Msg("Cannot visit subscription URL.")
			lastErr = err
		}
	}
	c.Wait()

	if succeeded == 0 && len(s.urls) > 0 {
		if lastErr == nil {
			lastErr = errors.New("no subscription could be fetched")
		}
		return nil, lastErr
	}
	return lines, nil
}
