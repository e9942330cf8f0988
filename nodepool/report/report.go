// Package report 生成质量报告并写出结果文件。
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"nodesieve/internal/shared/logger"
	"nodesieve/nodepool/model"
)

const topN = 10

type Summary struct {
	TotalInput       int    `json:"total_input"`
	AfterDedup       int    `json:"after_dedup"`
	ParsedSuccess    int    `json:"parsed_success"`
	AvailableNodes   int    `json:"available_nodes"`
	AvailabilityRate string `json:"availability_rate"`
}

// LatencyDistribution 的字段顺序就是 JSON 中的顺序。
type LatencyDistribution struct {
	Under100  int `json:"<100ms"`
	From100   int `json:"100-200ms"`
	From200   int `json:"200-300ms"`
	From300Up int `json:"300-500ms"`
}

type TopNode struct {
	Rank      int              `json:"rank"`
	Protocol  string           `json:"protocol"`
	Host      string           `json:"host"`
	Port      int              `json:"port"`
	Latency   string           `json:"latency"`
	Score     int              `json:"score"`
	RiskScore *model.RiskValue `json:"risk_score,omitempty"`
	Country   *string          `json:"country,omitempty"`
}

// ProbingStats 记录分批探测的过程。
type ProbingStats struct {
	Candidates int    `json:"candidates"`
	Probed     int    `json:"probed"`
	Batches    int    `json:"batches"`
	TooSlow    int    `json:"too_slow"`
	StopReason string `json:"stop_reason"`
}

type EnrichmentStats struct {
	Provider  string `json:"provider"`
	Checked   int    `json:"checked"`
	Lookups   int    `json:"lookups"`
	CacheHits int    `json:"cache_hits"`
	Failures  int    `json:"failures"`
	Filtered  int    `json:"filtered"`
	Penalized int    `json:"penalized"`
}

type Report struct {
	RunID                string              `json:"run_id"`
	GeneratedAt          time.Time           `json:"generated_at"`
	Summary              Summary             `json:"summary"`
	ProtocolDistribution map[string]int      `json:"protocol_distribution"`
	LatencyDistribution  LatencyDistribution `json:"latency_distribution"`
	TopNodes             []TopNode           `json:"top_10_nodes"`
	Probing              ProbingStats        `json:"probing"`
	Enrichment           *EnrichmentStats    `json:"enrichment,omitempty"`
}

// Input 是生成报告所需的全部计数与最终节点列表。
type Input struct {
	TotalInput    int
	AfterDedup    int
	ParsedSuccess int
	Available     []*model.Node
	Probing       ProbingStats
	Enrichment    *EnrichmentStats
}

// Build 根据最终（已排序）的节点列表生成报告。
func Build(in Input) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Summary: Summary{
			TotalInput:       in.TotalInput,
			AfterDedup:       in.AfterDedup,
			ParsedSuccess:    in.ParsedSuccess,
			AvailableNodes:   len(in.Available),
			AvailabilityRate: availabilityRate(len(in.Available), in.ParsedSuccess),
		},
		ProtocolDistribution: make(map[string]int),
		TopNodes:             make([]TopNode, 0, topN),
		Probing:              in.Probing,
		Enrichment:           in.Enrichment,
	}

	for _, n := range in.Available {
		r.ProtocolDistribution[string(n.Protocol)]++

		switch {
		case n.LatencyMs < 100:
			r.LatencyDistribution.Under100++
		case n.LatencyMs < 200:
			r.LatencyDistribution.From100++
		case n.LatencyMs < 300:
			r.LatencyDistribution.From200++
		default:
			r.LatencyDistribution.From300Up++
		}
	}

	for i, n := range in.Available {
		if i >= topN {
			break
		}
		top := TopNode{
			Rank:     i + 1,
			Protocol: string(n.Protocol),
			Host:     n.Host,
			Port:     n.Port,
			Latency:  strconv.FormatFloat(n.LatencyMs, 'f', -1, 64) + "ms",
			Score:    n.FinalScore,
		}
		if n.Enriched() && !n.Enrichment.Risk.IsZero() {
			risk := n.Enrichment.Risk
			country := n.Enrichment.Country
			top.RiskScore = &risk
			top.Country = &country
		}
		r.TopNodes = append(r.TopNodes, top)
	}
	return r
}

func availabilityRate(available, parsed int) string {
	if parsed == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(available)/float64(parsed)*100)
}

// Marshal 以两空格缩进序列化报告，保留非 ASCII 字符。
func (r *Report) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 写出节点列表（每行一个）与 JSON 报告。
func Write(dir, nodesFile, reportFile string, lines []string, r *Report) error {
	l := logger.WithComponent("NodePool/Report")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	nodesPath := filepath.Join(dir, nodesFile)
	if err := os.WriteFile(nodesPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write nodes file: %w", err)
	}
	l.Info().Int("count", len(lines)).Str("path", nodesPath).Msg("Saved high quality nodes.")

	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	reportPath := filepath.Join(dir, reportFile)
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	l.Info().Str("path", reportPath).Str("run_id", r.RunID).Msg("Saved quality report.")
	return nil
}

// Read 读取已生成的报告。
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
