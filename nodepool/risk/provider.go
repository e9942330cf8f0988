// Package risk 对排名靠前的节点做 IP 风险与地区检测，并据此调整分数。
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nodesieve/nodepool/model"
)

const (
	ProviderAbuseIPDB   = "abuseipdb"
	ProviderIPAPI       = "ipapi"
	ProviderIP2Location = "ip2location"

	requestTimeout = 5 * time.Second
)

// Provider 定义了风险数据源的行为。
// Lookup 只返回 Verdict 或 *ProviderError；Interval 是每次外部调用后的节流间隔，0 表示不节流。
// Delta 按当前配置把 Verdict 换算成分数调整，缓存命中的 Verdict 也走这里。
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*model.Verdict, error)
	Delta(v *model.Verdict) int
	Interval() time.Duration
}

// ProviderError 是一次失败的 provider 调用。节点保持原状。
type ProviderError struct {
	Provider   string
	IP         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s lookup %s: http %d: %v", e.Provider, e.IP, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s lookup %s: %v", e.Provider, e.IP, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// getJSON 发起带超时的 GET 请求并解码 JSON 响应。
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
