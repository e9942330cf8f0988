package risk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"nodesieve/nodepool/model"
)

// ip-api 免费版只支持 http，且限制 45 次/分钟
const ipAPIEndpoint = "http://ip-api.com/json/"

const (
	labelResidential = "Residential"
	labelDataCenter  = "DataCenter"
	labelUnrated     = "Unrated"

	residentialBonus = 3
)

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CountryCode string `json:"countryCode"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	Hosting     bool   `json:"hosting"`
}

// IPAPI 是免 Key 模式：按是否为机房 IP 给出类别风险。
type IPAPI struct {
	endpoint          string
	datacenterPenalty int
	client            *http.Client
}

func NewIPAPI(baseURL string, datacenterPenalty int) *IPAPI {
	if baseURL == "" {
		baseURL = ipAPIEndpoint
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &IPAPI{
		endpoint:          baseURL,
		datacenterPenalty: datacenterPenalty,
		client:            newHTTPClient(),
	}
}

func (p *IPAPI) Name() string            { return ProviderIPAPI }
func (p *IPAPI) Interval() time.Duration { return 1500 * time.Millisecond }

func (p *IPAPI) Lookup(ctx context.Context, ip string) (*model.Verdict, error) {
	var resp ipAPIResponse
	rawURL := p.endpoint + ip + "?fields=status,message,countryCode,isp,org,hosting"
	status, err := getJSON(ctx, p.client, rawURL, nil, &resp)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), IP: ip, StatusCode: status, Err: err}
	}
	if resp.Status != "success" {
		msg := resp.Message
		if msg == "" {
			msg = "status " + resp.Status
		}
		return nil, &ProviderError{Provider: p.Name(), IP: ip, Err: errors.New(msg)}
	}

	v := &model.Verdict{
		Provider:  p.Name(),
		Country:   strings.ToUpper(resp.CountryCode),
		ISP:       resp.ISP,
		CheckedAt: time.Now(),
	}
	classifyUsage(v, resp.Hosting, !resp.Hosting)
	return v, nil
}

func (p *IPAPI) Delta(v *model.Verdict) int {
	return usageDelta(v, p.datacenterPenalty)
}

// classifyUsage 按机房/住宅类别写入风险标签。机房优先。
func classifyUsage(v *model.Verdict, hosting, residential bool) {
	v.Hosting = hosting
	v.Residential = residential && !hosting
	switch {
	case v.Hosting:
		v.Risk = model.LabelRisk(labelDataCenter)
	case v.Residential:
		v.Risk = model.LabelRisk(labelResidential)
	default:
		v.Risk = model.LabelRisk(labelUnrated)
	}
}

// usageDelta: 机房 -datacenterPenalty，住宅 +3。
func usageDelta(v *model.Verdict, datacenterPenalty int) int {
	switch {
	case v.Hosting:
		return -datacenterPenalty
	case v.Residential:
		return residentialBonus
	default:
		return 0
	}
}
