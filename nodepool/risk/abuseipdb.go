package risk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nodesieve/nodepool/model"
)

const abuseIPDBEndpoint = "https://api.abuseipdb.com/api/v2/check"

type abuseIPDBResponse struct {
	Data struct {
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		ISP                  string `json:"isp"`
		UsageType            string `json:"usageType"`
	} `json:"data"`
}

// AbuseIPDB 使用 abuseConfidenceScore 作为数字风险值，需要 API Key。
type AbuseIPDB struct {
	apiKey   string
	endpoint string
	maxRisk  int
	client   *http.Client
}

func NewAbuseIPDB(apiKey, baseURL string, maxRisk int) *AbuseIPDB {
	if baseURL == "" {
		baseURL = abuseIPDBEndpoint
	}
	return &AbuseIPDB{
		apiKey:   apiKey,
		endpoint: baseURL,
		maxRisk:  maxRisk,
		client:   newHTTPClient(),
	}
}

func (a *AbuseIPDB) Name() string            { return ProviderAbuseIPDB }
func (a *AbuseIPDB) Interval() time.Duration { return 500 * time.Millisecond }

func (a *AbuseIPDB) Lookup(ctx context.Context, ip string) (*model.Verdict, error) {
	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", "90")

	header := http.Header{}
	header.Set("Key", a.apiKey)
	header.Set("Accept", "application/json")

	var resp abuseIPDBResponse
	status, err := getJSON(ctx, a.client, a.endpoint+"?"+q.Encode(), header, &resp)
	if err != nil {
		return nil, &ProviderError{Provider: a.Name(), IP: ip, StatusCode: status, Err: err}
	}

	return &model.Verdict{
		Provider:  a.Name(),
		Country:   strings.ToUpper(resp.Data.CountryCode),
		ISP:       resp.Data.ISP,
		Risk:      model.NumericRisk(resp.Data.AbuseConfidenceScore),
		Hosting:   strings.Contains(strings.ToLower(resp.Data.UsageType), "data center"),
		CheckedAt: time.Now(),
	}, nil
}

// Delta 只看数字风险值，类别风险（例如其他 provider 写入的缓存）不调整。
func (a *AbuseIPDB) Delta(v *model.Verdict) int {
	if !v.Risk.Numeric {
		return 0
	}
	return abuseScoreDelta(v.Risk.Score, a.maxRisk)
}

// abuseScoreDelta: 0 分 +3，低于 20 分 +1，高于阈值 -10。
func abuseScoreDelta(score, maxRisk int) int {
	switch {
	case score == 0:
		return 3
	case score < 20:
		return 1
	case score > maxRisk:
		return -10
	default:
		return 0
	}
}
