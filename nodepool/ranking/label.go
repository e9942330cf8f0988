package ranking

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"nodesieve/nodepool/model"
)

const (
	unknownFlag    = "🌐"
	unknownCountry = "UNK"
)

// Label 生成节点展示名：<国旗> <国家代码> | <协议> | 🛡️<风险值>
func Label(n *model.Node) string {
	country := n.Country()
	code := unknownCountry
	if country != "" {
		code = strings.ToUpper(country)
	}
	risk := "N/A"
	if n.Enriched() {
		risk = n.Enrichment.Risk.String()
	}
	return Flag(country) + " " + code + " | " + n.Protocol.DisplayName() + " | 🛡️" + risk
}

// Flag 把两位国家代码转换为区域指示符组成的国旗 emoji。
func Flag(country string) string {
	if len(country) != 2 {
		return unknownFlag
	}
	var sb strings.Builder
	for _, c := range strings.ToUpper(country) {
		if c < 'A' || c > 'Z' {
			return unknownFlag
		}
		sb.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return sb.String()
}

// Relabel 把节点 URL 中的名称替换为 Label。
// vmess 改写 JSON 的 ps 字段，ssr 改写 remarks 参数，其余协议改写 #fragment。
// 改写失败时原样返回。
func Relabel(n *model.Node) string {
	label := Label(n)
	switch n.Protocol {
	case model.VMess:
		if out, ok := relabelVMess(n.URL, label); ok {
			return out
		}
		return n.URL
	case model.SSR:
		if out, ok := relabelSSR(n.URL, label); ok {
			return out
		}
		return n.URL
	default:
		return relabelFragment(n.URL, label)
	}
}

// RelabelAll 返回所有节点改名后的 URL。
func RelabelAll(nodes []*model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = Relabel(n)
	}
	return out
}

func relabelFragment(raw, label string) string {
	base, _, _ := strings.Cut(raw, "#")
	return base + "#" + url.PathEscape(label)
}

func relabelVMess(raw, label string) (string, bool) {
	_, payload, ok := strings.Cut(raw, "://")
	if !ok {
		return "", false
	}
	data, ok := decodeBase64(payload)
	if !ok {
		return "", false
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return "", false
	}
	obj["ps"] = label

	out, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(out), true
}

// relabelSSR 处理 ssr://base64(host:port:proto:method:obfs:pass/?params) 格式，改写 remarks。
// base64(method:pass@host:port) 形式没有 remarks 参数，改写 #fragment。
func relabelSSR(raw, label string) (string, bool) {
	_, payload, ok := strings.Cut(raw, "://")
	if !ok {
		return "", false
	}
	payload, _, _ = strings.Cut(payload, "#")
	data, ok := decodeBase64(payload)
	if !ok {
		return "", false
	}

	head, query, _ := strings.Cut(string(data), "/?")
	if !nativeSSR(head) {
		return relabelFragment(raw, label), true
	}
	params, err := url.ParseQuery(query)
	if err != nil {
		return "", false
	}
	params.Set("remarks", base64.RawURLEncoding.EncodeToString([]byte(label)))

	body := head + "/?" + params.Encode()
	return "ssr://" + base64.RawURLEncoding.EncodeToString([]byte(body)), true
}

// nativeSSR: 至少 6 段冒号分隔字段且不含 userinfo。
func nativeSSR(head string) bool {
	return !strings.Contains(head, "@") && strings.Count(head, ":") >= 5
}

func decodeBase64(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, true
	}
	return nil, false
}
