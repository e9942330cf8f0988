// Package scoring 计算节点综合得分：协议基础分 + 延迟档位 + 首选协议加分。
package scoring

import "nodesieve/nodepool/model"

// 延迟档位加减分，按顺序判断，只命中第一个。
const (
	bonusUnder100    = 5
	bonusUnder200    = 3
	bonusUnder300    = 1
	penaltyOverLimit = 5
	bonusPreferred   = 2
)

// Scorer 是纯函数式的评分器，只依赖节点字段与静态配置。
type Scorer struct {
	maxLatency float64
	preferred  map[model.Protocol]struct{}
}

// New 创建评分器。maxLatency 单位为毫秒。
func New(maxLatency float64, preferred []string) *Scorer {
	s := &Scorer{
		maxLatency: maxLatency,
		preferred:  make(map[model.Protocol]struct{}, len(preferred)),
	}
	for _, name := range preferred {
		if p, ok := model.ParseProtocol(name); ok {
			s.preferred[p] = struct{}{}
		}
	}
	return s
}

// Preferred 报告协议是否在首选列表中。
func (s *Scorer) Preferred(p model.Protocol) bool {
	_, ok := s.preferred[p]
	return ok
}

// Compute 返回节点的综合得分，不修改节点。
func (s *Scorer) Compute(n *model.Node) int {
	score := n.Protocol.BaseScore()

	if n.Online() {
		score += s.latencyAdjustment(n.LatencyMs)
	}
	if s.Preferred(n.Protocol) {
		score += bonusPreferred
	}
	return score
}

// Score 计算并写入 FinalScore。
func (s *Scorer) Score(n *model.Node) *model.Node {
	n.FinalScore = s.Compute(n)
	n.Stage = model.StageScored
	return n
}

// ScoreAll 对所有节点评分。
func (s *Scorer) ScoreAll(nodes []*model.Node) {
	for _, n := range nodes {
		s.Score(n)
	}
}

func (s *Scorer) latencyAdjustment(latency float64) int {
	switch {
	case latency < 100:
		return bonusUnder100
	case latency < 200:
		return bonusUnder200
	case latency < 300:
		return bonusUnder300
	case s.maxLatency > 0 && latency > s.maxLatency:
		return -penaltyOverLimit
	default:
		return 0
	}
}
