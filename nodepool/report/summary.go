package report

import "nodesieve/internal/shared/logger"

const loggedTopNodes = 5

// MaskHost 对主机名脱敏，防止 CI 日志泄露节点地址。
func MaskHost(host string) string {
	if len(host) <= 6 {
		return "***"
	}
	return host[:3] + "***" + host[len(host)-3:]
}

// LogSummary 打印报告摘要，前几名节点的主机名经过脱敏。
func LogSummary(r *Report) {
	l := logger.WithComponent("NodePool/Report")

	l.Info().
		Int("total_input", r.Summary.TotalInput).
		Int("after_dedup", r.Summary.AfterDedup).
		Int("parsed", r.Summary.ParsedSuccess).
		Int("available", r.Summary.AvailableNodes).
		Str("availability_rate", r.Summary.AvailabilityRate).
		Msg("Quality filter summary.")

	l.Info().
		Int("<100ms", r.LatencyDistribution.Under100).
		Int("100-200ms", r.LatencyDistribution.From100).
		Int("200-300ms", r.LatencyDistribution.From200).
		Int("300-500ms", r.LatencyDistribution.From300Up).
		Msg("Latency distribution.")

	for i, n := range r.TopNodes {
		if i >= loggedTopNodes {
			break
		}
		ev := l.Info().
			Int("rank", n.Rank).
			Str("protocol", n.Protocol).
			Str("host", MaskHost(n.Host)).
			Str("latency", n.Latency).
			Int("score", n.Score)
		if n.RiskScore != nil {
			ev = ev.Str("risk", n.RiskScore.String())
		}
		if n.Country != nil {
			ev = ev.Str("country", *n.Country)
		}
		ev.Msg("Top node.")
	}
}
