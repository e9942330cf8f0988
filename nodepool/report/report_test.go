package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodesieve/nodepool/model"
)

func availableNode(p model.Protocol, host string, latency float64, score int) *model.Node {
	return &model.Node{Protocol: p, Host: host, Port: 443, Status: model.StatusOnline, LatencyMs: latency, FinalScore: score}
}

func TestBuild_CountsAndDistribution(t *testing.T) {
	nodes := []*model.Node{
		availableNode(model.Hysteria2, "a.example", 50, 17),
		availableNode(model.VLESS, "b.example", 150.5, 13),
		availableNode(model.VLESS, "c.example", 250, 11),
		availableNode(model.Trojan, "d.example", 499.99, 9),
	}
	nodes[0].Stage = model.StageEnriched
	nodes[0].Enrichment = model.Enrichment{Risk: model.NumericRisk(0), Country: "US"}

	r := Build(Input{TotalInput: 10, AfterDedup: 8, ParsedSuccess: 6, Available: nodes})

	assert.Equal(t, Summary{TotalInput: 10, AfterDedup: 8, ParsedSuccess: 6, AvailableNodes: 4, AvailabilityRate: "66.67%"}, r.Summary)
	assert.Equal(t, map[string]int{"hysteria2": 1, "vless": 2, "trojan": 1}, r.ProtocolDistribution)
	assert.Equal(t, LatencyDistribution{Under100: 1, From100: 1, From200: 1, From300Up: 1}, r.LatencyDistribution)

	require.Len(t, r.TopNodes, 4)
	assert.Equal(t, 1, r.TopNodes[0].Rank)
	assert.Equal(t, "50ms", r.TopNodes[0].Latency)
	require.NotNil(t, r.TopNodes[0].RiskScore)
	assert.Equal(t, "0", r.TopNodes[0].RiskScore.String())
	assert.Equal(t, "US", *r.TopNodes[0].Country)
	assert.Equal(t, "150.5ms", r.TopNodes[1].Latency)
	assert.Nil(t, r.TopNodes[1].RiskScore)
	assert.Nil(t, r.TopNodes[1].Country)
	assert.NotEmpty(t, r.RunID)
}

func TestBuild_EmptyAndTopTen(t *testing.T) {
	r := Build(Input{})
	assert.Equal(t, "0%", r.Summary.AvailabilityRate)
	assert.Empty(t, r.TopNodes)

	var nodes []*model.Node
	for i := 0; i < 15; i++ {
		nodes = append(nodes, availableNode(model.SS, "h.example", 10, 5))
	}
	r = Build(Input{ParsedSuccess: 15, Available: nodes})
	assert.Len(t, r.TopNodes, 10)
	assert.Equal(t, "100.00%", r.Summary.AvailabilityRate)
	assert.Equal(t, 10, r.TopNodes[9].Rank)
}

func TestMarshal_KeysAndOmission(t *testing.T) {
	n := availableNode(model.Trojan, "x.example", 10, 12)
	n.Stage = model.StageEnriched
	n.Enrichment = model.Enrichment{Risk: model.LabelRisk("Residential"), Country: "JP"}

	data, err := Build(Input{ParsedSuccess: 2, Available: []*model.Node{n, availableNode(model.SS, "y.example", 20, 7)}}).Marshal()
	require.NoError(t, err)

	s := string(data)
	for _, key := range []string{`"summary"`, `"protocol_distribution"`, `"latency_distribution"`, `"<100ms"`, `"top_10_nodes"`, `"run_id"`, `"probing"`} {
		assert.Contains(t, s, key)
	}
	assert.True(t, strings.Index(s, `"<100ms"`) < strings.Index(s, `"300-500ms"`))
	assert.NotContains(t, s, `"enrichment"`)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	top := raw["top_10_nodes"].([]any)
	assert.Equal(t, "Residential", top[0].(map[string]any)["risk_score"])
	_, hasRisk := top[1].(map[string]any)["risk_score"]
	assert.False(t, hasRisk)
}

func TestWriteAndRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	r := Build(Input{ParsedSuccess: 1, Available: []*model.Node{availableNode(model.VLESS, "v.example", 42, 15)}})

	require.NoError(t, Write(dir, "nodes.txt", "report.json", []string{"vless://a@v.example:443#x", "trojan://b@t.example:443"}, r))

	data, err := os.ReadFile(filepath.Join(dir, "nodes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "vless://a@v.example:443#x\ntrojan://b@t.example:443\n", string(data))

	back, err := Read(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, r.RunID, back.RunID)
	assert.Equal(t, r.Summary, back.Summary)
}

func TestMaskHost(t *testing.T) {
	assert.Equal(t, "***", MaskHost("a.b"))
	assert.Equal(t, "***", MaskHost("abcdef"))
	assert.Equal(t, "exa***com", MaskHost("example.com"))
	assert.Equal(t, "192***.45", MaskHost("192.168.1.45"))
}
