package risk

import (
	"context"
	"strings"
	"time"

	"github.com/ip2location/ip2location-go/v9"

	"nodesieve/nodepool/model"
)

// ip2locationReader 是 *ip2location.DB 中用到的部分。
type ip2locationReader interface {
	Get_all(ip string) (ip2location.IP2Locationrecord, error)
	Close()
}

// IP2Location 查询本地 BIN 数据库，没有外部调用，不需要节流。
type IP2Location struct {
	db                ip2locationReader
	datacenterPenalty int
}

func NewIP2Location(dbPath string, datacenterPenalty int) (*IP2Location, error) {
	db, err := ip2location.OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	return &IP2Location{db: db, datacenterPenalty: datacenterPenalty}, nil
}

func (p *IP2Location) Name() string            { return ProviderIP2Location }
func (p *IP2Location) Interval() time.Duration { return 0 }

func (p *IP2Location) Lookup(_ context.Context, ip string) (*model.Verdict, error) {
	rec, err := p.db.Get_all(ip)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name(), IP: ip, Err: err}
	}

	v := &model.Verdict{
		Provider:  p.Name(),
		Country:   countryCode(rec.Country_short),
		ISP:       usableField(rec.Isp),
		CheckedAt: time.Now(),
	}
	hosting, residential := classifyUsageType(rec.Usagetype)
	classifyUsage(v, hosting, residential)
	return v, nil
}

func (p *IP2Location) Delta(v *model.Verdict) int {
	return usageDelta(v, p.datacenterPenalty)
}

func (p *IP2Location) Close() {
	p.db.Close()
}

// classifyUsageType 解析 ip2location 的 usage type，例如 "DCH"、"ISP/MOB"。
func classifyUsageType(usage string) (hosting, residential bool) {
	for _, t := range strings.Split(strings.ToUpper(usage), "/") {
		switch strings.TrimSpace(t) {
		case "DCH", "CDN", "SES":
			hosting = true
		case "ISP", "MOB":
			residential = true
		}
	}
	if hosting {
		residential = false
	}
	return hosting, residential
}

// 精简版数据库对不支持的字段返回一段提示文本或 "-"。
func usableField(s string) string {
	if s == "-" || strings.Contains(s, "unavailable") || strings.Contains(s, "Invalid") {
		return ""
	}
	return s
}

func countryCode(s string) string {
	s = usableField(s)
	if len(s) != 2 {
		return ""
	}
	return strings.ToUpper(s)
}
