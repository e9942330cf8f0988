// Package ranking 负责节点排序、截断与输出标签。
package ranking

import (
	"cmp"
	"slices"

	"nodesieve/nodepool/model"
)

// Sort 按综合得分降序、延迟升序稳定排序，没有延迟的节点排在同分节点之后。
func Sort(nodes []*model.Node) {
	slices.SortStableFunc(nodes, compare)
}

func compare(a, b *model.Node) int {
	if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
		return c
	}
	switch {
	case a.Online() && b.Online():
		return cmp.Compare(a.LatencyMs, b.LatencyMs)
	case a.Online():
		return -1
	case b.Online():
		return 1
	default:
		return 0
	}
}

// Truncate 只保留前 limit 个节点。limit <= 0 表示不限制。
// 截断发生在风险检测之前，之后被剔除的空位不会回填。
func Truncate(nodes []*model.Node, limit int) []*model.Node {
	if limit <= 0 || len(nodes) <= limit {
		return nodes
	}
	return nodes[:limit]
}
