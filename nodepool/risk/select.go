package risk

import (
	"os"
	"strings"

	"nodesieve/internal/shared/logger"
	"nodesieve/internal/shared/types"
)

// NewProvider 按配置选择 provider。
// AbuseIPDB 缺少 Key 或 ip2location 数据库无法打开时降级为 ipapi，降级不是错误。
func NewProvider(cfg types.IPRiskConf) Provider {
	l := logger.WithComponent("NodePool/Risk")

	switch strings.ToLower(cfg.Provider) {
	case ProviderAbuseIPDB:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("ABUSEIPDB_API_KEY")
		}
		if key != "" {
			return NewAbuseIPDB(key, cfg.BaseURL, cfg.MaxRiskScore)
		}
		l.Warn().Msg("AbuseIPDB requires an API key, falling back to ipapi (keyless mode).")
		return NewIPAPI("", cfg.DatacenterPenalty)

	case ProviderIP2Location:
		p, err := NewIP2Location(cfg.DBPath, cfg.DatacenterPenalty)
		if err == nil {
			return p
		}
		l.Warn().Err(err).Str("path", cfg.DBPath).Msg("Cannot open ip2location database, falling back to ipapi.")
		return NewIPAPI("", cfg.DatacenterPenalty)

	case ProviderIPAPI:
		return NewIPAPI(cfg.BaseURL, cfg.DatacenterPenalty)

	default:
		l.Warn().Str("provider", cfg.Provider).Msg("Unknown risk provider, using ipapi.")
		return NewIPAPI("", cfg.DatacenterPenalty)
	}
}
