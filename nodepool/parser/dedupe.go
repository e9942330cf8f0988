package parser

import "nodesieve/nodepool/model"

// DedupeRaw 按原始文本去重，保留第一次出现的行并保持顺序。
func DedupeRaw(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, s := range lines {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// DedupeNodes 按身份键 protocol://host:port 去重，先出现者保留。
// 外观不同但指向同一端点的连接串在这里合并。
func DedupeNodes(nodes []*model.Node) []*model.Node {
	seen := make(map[string]struct{}, len(nodes))
	out := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		key := n.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}
