// Package nodepool 串联整个筛选流程：读取 -> 去重 -> 解析 -> 分批探测 -> 评分 -> 截断 -> 风险检测 -> 输出。
package nodepool

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"nodesieve/internal/shared/logger"
	"nodesieve/internal/shared/types"
	"nodesieve/nodepool/model"
	"nodesieve/nodepool/parser"
	"nodesieve/nodepool/ranking"
	"nodesieve/nodepool/report"
	"nodesieve/nodepool/risk"
	"nodesieve/nodepool/scoring"
	"nodesieve/nodepool/source"
	"nodesieve/nodepool/storage"
	"nodesieve/nodepool/validator"
)

// ErrInputMissing 表示没有任何输入文件，也没有配置远程来源。此时不写任何输出。
var ErrInputMissing = errors.New("no input file found and no remote source configured")

// Notifier 在结果写出后接收通知。通知失败不影响运行结果。
type Notifier interface {
	Name() string
	Notify(ctx context.Context, nodesPath string, r *report.Report) error
}

// Result 是一次完整运行的产物。
type Result struct {
	Nodes  []*model.Node
	Lines  []string
	Report *report.Report
}

// Manager 是节点筛选流程的总控制器。
type Manager struct {
	cfg      *types.Config
	sources  []source.Source
	registry *parser.Registry
	prober   validator.Prober
	scorer   *scoring.Scorer
	provider risk.Provider
	cache    storage.VerdictStore
	clock    risk.Clock
	notifier []Notifier
}

// NewManager 按配置创建管理器及其全部组件。
func NewManager(cfg *types.Config) (*Manager, error) {
	l := logger.WithComponent("NodePool/Manager")

	prober, err := validator.NewProber(cfg.QualityFilterConf)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      cfg,
		sources:  source.New(cfg.InputConf),
		registry: parser.NewRegistry(),
		prober:   prober,
		scorer:   scoring.New(cfg.MaxLatency, cfg.PreferredProtocols),
	}

	if cfg.IPRiskConf.Enabled {
		m.provider = risk.NewProvider(cfg.IPRiskConf)
		cache, err := storage.New(cfg.IPRiskConf)
		if err != nil {
			// 缓存不可用只影响性能，不影响结果
			l.Warn().Err(err).Str("cache", cfg.IPRiskConf.Cache).Msg("Verdict cache unavailable, continuing without cache.")
		} else {
			m.cache = cache
		}
		l.Info().Str("provider", m.provider.Name()).Int("top", cfg.CheckTopNodes).Msg("IP risk check enabled.")
	}
	return m, nil
}

// SetSources 替换输入来源。
func (m *Manager) SetSources(sources ...source.Source) { m.sources = sources }

// SetProber 替换探测器。
func (m *Manager) SetProber(p validator.Prober) { m.prober = p }

// SetProvider 替换风险 provider，nil 表示关闭风险检测。
func (m *Manager) SetProvider(p risk.Provider) { m.provider = p }

// SetClock 设置风险检测节流器使用的时钟。
func (m *Manager) SetClock(c risk.Clock) { m.clock = c }

// AddNotifier 添加一个通知器。
func (m *Manager) AddNotifier(n Notifier) { m.notifier = append(m.notifier, n) }

// Close 释放缓存与 provider 持有的资源（例如 ip2location 数据库文件）。
func (m *Manager) Close() error {
	var err error
	switch p := m.provider.(type) {
	case interface{ Close() error }:
		err = p.Close()
	case interface{ Close() }:
		p.Close()
	}
	if m.cache != nil {
		err = errors.Join(err, m.cache.Close())
	}
	return err
}

// Run 执行一次完整的筛选流程并写出结果。
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	l := logger.WithComponent("NodePool/Manager")
	l.Info().Msg("Starting node quality filter...")

	// 1. 读取
	lines, err := source.Collect(ctx, m.sources)
	if err != nil {
		if errors.Is(err, source.ErrNoSource) {
			l.Error().
				Str("all_url_file", m.cfg.AllURLFile).
				Str("collected_file", m.cfg.CollectedFile).
				Msg("No input file found.")
			return nil, ErrInputMissing
		}
		return nil, err
	}
	totalInput := len(lines)

	// 2. 去重、解析
	raw := parser.DedupeRaw(lines)
	l.Info().Int("input", totalInput).Int("after_dedup", len(raw)).Int("removed", totalInput-len(raw)).Msg("Deduplicated raw nodes.")

	nodes := parser.DedupeNodes(m.registry.ParseAll(raw))
	l.Info().Int("parsed", len(nodes)).Msg("Parsed nodes.")
	logProtocolStats(nodes)

	// 3. 分批探测
	engine := validator.NewEngine(m.prober, validator.OptionsFromConfig(m.cfg.QualityFilterConf))
	outcome := engine.Run(ctx, nodes)

	// 4. 评分、排序、截断（先截断再做风险检测，节省 API 调用）
	available := outcome.Available
	m.scorer.ScoreAll(available)
	ranking.Sort(available)
	if len(available) > m.cfg.MaxOutputNodes && m.cfg.MaxOutputNodes > 0 {
		l.Info().Int("available", len(available)).Int("limit", m.cfg.MaxOutputNodes).Msg("Truncating output nodes before risk check.")
	}
	available = ranking.Truncate(available, m.cfg.MaxOutputNodes)

	// 5. 风险与地区检测，之后重新排序
	var enrichStats *report.EnrichmentStats
	if m.provider != nil {
		enricher := risk.NewEnricher(risk.Options{
			Provider: m.provider,
			Region:   risk.NewRegionPolicy(m.cfg.RegionLimitConf),
			Cache:    m.cache,
			Window:   m.cfg.CheckTopNodes,
			Clock:    m.clock,
		})
		var stats risk.Stats
		available, stats = enricher.Enrich(ctx, available)
		ranking.Sort(available)
		enrichStats = &report.EnrichmentStats{
			Provider:  m.provider.Name(),
			Checked:   stats.Checked,
			Lookups:   stats.Lookups,
			CacheHits: stats.CacheHits,
			Failures:  stats.Failures,
			Filtered:  stats.Filtered,
			Penalized: stats.Penalized,
		}
	}

	// 6. 输出
	out := make([]string, len(available))
	for i, n := range available {
		out[i] = n.URL
	}
	if m.cfg.RenameNodes {
		out = ranking.RelabelAll(available)
	}

	rep := report.Build(report.Input{
		TotalInput:    totalInput,
		AfterDedup:    len(raw),
		ParsedSuccess: len(nodes),
		Available:     available,
		Probing: report.ProbingStats{
			Candidates: outcome.Candidates,
			Probed:     outcome.Probed,
			Batches:    outcome.Batches,
			TooSlow:    outcome.TooSlow,
			StopReason: string(outcome.StopReason),
		},
		Enrichment: enrichStats,
	})
	if err := report.Write(m.cfg.OutputConf.Dir, m.cfg.NodesFile, m.cfg.ReportFile, out, rep); err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	report.LogSummary(rep)

	m.notify(ctx, rep)

	l.Info().Msg("Node quality filter finished.")
	return &Result{Nodes: available, Lines: out, Report: rep}, nil
}

func (m *Manager) notify(ctx context.Context, rep *report.Report) {
	l := logger.WithComponent("NodePool/Manager")
	nodesPath := filepath.Join(m.cfg.OutputConf.Dir, m.cfg.NodesFile)
	for _, n := range m.notifier {
		if err := n.Notify(ctx, nodesPath, rep); err != nil {
			l.Warn().Err(err).Str("notifier", n.Name()).Msg("Notification failed.")
			continue
		}
		l.Info().Str("notifier", n.Name()).Msg("Notification sent.")
	}
}

func logProtocolStats(nodes []*model.Node) {
	l := logger.WithComponent("NodePool/Manager")

	counts := make(map[model.Protocol]int)
	for _, n := range nodes {
		counts[n.Protocol]++
	}
	protocols := make([]model.Protocol, 0, len(counts))
	for p := range counts {
		protocols = append(protocols, p)
	}
	sort.Slice(protocols, func(i, j int) bool {
		if counts[protocols[i]] != counts[protocols[j]] {
			return counts[protocols[i]] > counts[protocols[j]]
		}
		return protocols[i] < protocols[j]
	})
	for _, p := range protocols {
		l.Info().Str("protocol", string(p)).Int("count", counts[p]).Msg("Protocol distribution.")
	}
}
