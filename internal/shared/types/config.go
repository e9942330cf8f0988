package types

// LogConf contains logging specific configuration
type LogConf struct {
	Level   string `ini:"level" yaml:"level"`
	NoColor bool   `ini:"no_color" yaml:"no_color"`
}

// InputConf 描述节点输入源。
// AllURLFile 是"完整 URL 列表"，存在时优先于 CollectedFile（裸节点列表）。
type InputConf struct {
	AllURLFile       string   `ini:"all_url_file" yaml:"all_url_file"`
	CollectedFile    string   `ini:"collected_file" yaml:"collected_file"`
	SubscriptionURLs []string `ini:"subscription_urls" delim:"," yaml:"subscription_urls"`
	ChannelPages     []string `ini:"channel_pages" delim:"," yaml:"channel_pages"`
	FetchTimeout     int      `ini:"fetch_timeout" yaml:"fetch_timeout"` // 秒
}

// OutputConf 描述输出文件布局
type OutputConf struct {
	Dir         string `ini:"dir" yaml:"dir"`
	NodesFile   string `ini:"nodes_file" yaml:"nodes_file"`
	ReportFile  string `ini:"report_file" yaml:"report_file"`
	RenameNodes bool   `ini:"rename_nodes" yaml:"rename_nodes"`
}

// QualityFilterConf 是探测与评分的行为配置
type QualityFilterConf struct {
	MaxWorkers             int      `ini:"max_workers" yaml:"max_workers"`
	ConnectTimeout         float64  `ini:"connect_timeout" yaml:"connect_timeout"` // 秒
	MaxLatency             float64  `ini:"max_latency" yaml:"max_latency"`         // 毫秒
	MaxTestNodes           int      `ini:"max_test_nodes" yaml:"max_test_nodes"`   // 第一批的大小
	BatchSize              int      `ini:"batch_size" yaml:"batch_size"`           // 后续每批的大小
	MaxTotalTestNodes      int      `ini:"max_total_test_nodes" yaml:"max_total_test_nodes"`
	MaxOutputNodes         int      `ini:"max_output_nodes" yaml:"max_output_nodes"`
	MinGuarantee           int      `ini:"min_guarantee" yaml:"min_guarantee"`
	PreferredProtocolsOnly bool     `ini:"preferred_protocols_only" yaml:"preferred_protocols_only"`
	SmartSampling          bool     `ini:"smart_sampling" yaml:"smart_sampling"`
	PreferredProtocols     []string `ini:"preferred_protocols" delim:"," yaml:"preferred_protocols"`
	QUICProbe              bool     `ini:"quic_probe" yaml:"quic_probe"`
	ProbeProxy             string   `ini:"probe_proxy" yaml:"probe_proxy"` // socks5://host:port
	Seed                   int64    `ini:"seed" yaml:"seed"`               // 0 表示随机
	Progress               bool     `ini:"progress" yaml:"progress"`
}

// IPRiskConf 是 IP 风险检测（enrichment）配置
type IPRiskConf struct {
	Enabled           bool   `ini:"enabled" yaml:"enabled"`
	Provider          string `ini:"provider" yaml:"provider"` // abuseipdb, ipapi, ip2location
	APIKey            string `ini:"api_key" yaml:"api_key"`
	CheckTopNodes     int    `ini:"check_top_nodes" yaml:"check_top_nodes"`
	MaxRiskScore      int    `ini:"max_risk_score" yaml:"max_risk_score"`
	DatacenterPenalty int    `ini:"datacenter_penalty" yaml:"datacenter_penalty"`
	BaseURL           string `ini:"base_url" yaml:"base_url"` // 覆盖 provider 的 API 地址
	DBPath            string `ini:"db_path" yaml:"db_path"`   // ip2location BIN 文件

	// 结果缓存: none, file, sqlite, redis
	Cache         string `ini:"cache" yaml:"cache"`
	CachePath     string `ini:"cache_path" yaml:"cache_path"`
	RedisURL      string `ini:"redis_url" yaml:"redis_url"`
	CacheTTLHours int    `ini:"cache_ttl_hours" yaml:"cache_ttl_hours"`
}

// RegionLimitConf 是地区策略配置
type RegionLimitConf struct {
	Enabled          bool     `ini:"enabled" yaml:"enabled"`
	AllowedCountries []string `ini:"allowed_countries" delim:"," yaml:"allowed_countries"`
	BlockedCountries []string `ini:"blocked_countries" delim:"," yaml:"blocked_countries"`
	Policy           string   `ini:"policy" yaml:"policy"` // filter, penalize
	Penalty          int      `ini:"penalty" yaml:"penalty"`
}

// WebConf 是结果发布服务的配置
type WebConf struct {
	Listen   string `ini:"listen" yaml:"listen"`
	User     string `ini:"user" yaml:"user"`
	Password string `ini:"password" yaml:"password"`
}

// Config 是整个项目的统一配置结构体
type Config struct {
	LogConf           `ini:"log" yaml:"log"`
	InputConf         `ini:"input" yaml:"input"`
	OutputConf        `ini:"output" yaml:"output"`
	QualityFilterConf `ini:"quality_filter" yaml:"quality_filter"`
	IPRiskConf        `ini:"ip_risk_check" yaml:"ip_risk_check"`
	RegionLimitConf   `ini:"region_limit" yaml:"region_limit"`
	WebConf           `ini:"web" yaml:"web"`
}

// DefaultConfig 返回内置默认配置。配置文件缺失或损坏时使用。
func DefaultConfig() *Config {
	return &Config{
		LogConf: LogConf{Level: "info"},
		InputConf: InputConf{
			AllURLFile:    "sub/sub_all_url_check.txt",
			CollectedFile: "collected_nodes.txt",
			FetchTimeout:  20,
		},
		OutputConf: OutputConf{
			Dir:         "sub",
			NodesFile:   "high_quality_nodes.txt",
			ReportFile:  "quality_report.json",
			RenameNodes: true,
		},
		QualityFilterConf: QualityFilterConf{
			MaxWorkers:         32,
			ConnectTimeout:     5,
			MaxLatency:         500,
			MaxTestNodes:       5000,
			BatchSize:          1000,
			MaxTotalTestNodes:  20000,
			MaxOutputNodes:     200,
			MinGuarantee:       100,
			SmartSampling:      true,
			PreferredProtocols: []string{"hysteria2", "vless", "trojan", "vmess", "ss"},
		},
		IPRiskConf: IPRiskConf{
			Provider:          "abuseipdb",
			CheckTopNodes:     50,
			MaxRiskScore:      50,
			DatacenterPenalty: 1,
			Cache:             "none",
			CachePath:         "sub/ip_verdicts.txt",
			CacheTTLHours:     72,
		},
		RegionLimitConf: RegionLimitConf{
			Enabled:          true,
			BlockedCountries: []string{"CN", "RU", "IR", "KP"},
			Policy:           "penalize",
			Penalty:          20,
		},
		WebConf: WebConf{Listen: ":8088"},
	}
}
