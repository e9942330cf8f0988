package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Status 是节点的探测状态。
type Status string

const (
	StatusUnprobed Status = "unprobed"
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusTimeout  Status = "timeout"
	StatusDNSError Status = "dns_error"
	StatusError    Status = "error"
)

// Stage 标记节点在流水线中到达的阶段。
// 探测/评分/风险检测的结果字段只在对应阶段到达后才有意义。
type Stage int

const (
	StageParsed Stage = iota
	StageProbed
	StageScored
	StageEnriched
)

func (s Stage) String() string {
	switch s {
	case StageParsed:
		return "parsed"
	case StageProbed:
		return "probed"
	case StageScored:
		return "scored"
	case StageEnriched:
		return "enriched"
	default:
		return "unknown"
	}
}

// Node 是整个引擎的核心数据结构。
// 由 parser 创建，validator 写入 Status/LatencyMs，scoring 与 risk 修改 FinalScore。
type Node struct {
	// 核心信息
	URL      string   `json:"url"` // 原始字符串，原样输出
	Protocol Protocol `json:"protocol"`
	Host     string   `json:"host"` // 域名或 IP
	Port     int      `json:"port"`

	// 评分
	BaseScore  int `json:"base_score"`
	FinalScore int `json:"final_score"`

	// 探测结果
	Status    Status  `json:"status"`
	LatencyMs float64 `json:"latency_ms,omitempty"` // 仅 Status == online 时有效
	IP        string  `json:"ip,omitempty"`         // 探测时解析到的地址，风险检测复用

	Stage      Stage      `json:"-"`
	Enrichment Enrichment `json:"-"` // 仅 Stage == StageEnriched 时有效
}

// Enrichment 保存风险检测写入的字段。
type Enrichment struct {
	Risk     RiskValue
	Country  string
	ISP      string
	Provider string
}

// Key 返回去重用的身份键 protocol://host:port。
func (n *Node) Key() string {
	return string(n.Protocol) + "://" + n.Host + ":" + strconv.Itoa(n.Port)
}

// Online 报告节点是否探测成功（延迟字段有效）。
func (n *Node) Online() bool {
	return n.Status == StatusOnline
}

// Enriched 报告节点是否已完成风险检测。
func (n *Node) Enriched() bool {
	return n.Stage == StageEnriched
}

// Country 返回风险检测得到的国家代码，未检测时为空。
func (n *Node) Country() string {
	if !n.Enriched() {
		return ""
	}
	return n.Enrichment.Country
}

// RiskValue 是风险值：AbuseIPDB 给出数字，ip-api 等给出类别标签。
type RiskValue struct {
	Score   int
	Label   string
	Numeric bool
}

func NumericRisk(score int) RiskValue  { return RiskValue{Score: score, Numeric: true} }
func LabelRisk(label string) RiskValue { return RiskValue{Label: label} }

// IsZero 报告是否没有任何风险信息。
func (r RiskValue) IsZero() bool {
	return !r.Numeric && r.Label == ""
}

func (r RiskValue) String() string {
	if r.Numeric {
		return strconv.Itoa(r.Score)
	}
	if r.Label == "" {
		return "N/A"
	}
	return r.Label
}

// MarshalJSON 数字风险序列化为数字，类别风险序列化为字符串。
func (r RiskValue) MarshalJSON() ([]byte, error) {
	if r.Numeric {
		return json.Marshal(r.Score)
	}
	return json.Marshal(r.Label)
}

func (r *RiskValue) UnmarshalJSON(data []byte) error {
	var score int
	if err := json.Unmarshal(data, &score); err == nil {
		*r = NumericRisk(score)
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*r = LabelRisk(label)
	return nil
}

// Verdict 是风险 provider 对单个 IP 的一次回答，可被缓存。
// 只保存 provider 返回的原始事实；分数调整在使用时按当前配置计算。
type Verdict struct {
	Provider    string    `json:"provider"`
	Country     string    `json:"country"`
	ISP         string    `json:"isp,omitempty"`
	Risk        RiskValue `json:"risk"`
	Hosting     bool      `json:"hosting"`
	Residential bool      `json:"residential"`
	CheckedAt   time.Time `json:"checked_at"`
}
