// Package parser 把各种协议的节点连接串解析成 model.Node。
//
// 每个协议的解码器返回 (endpoint, error)，失败原因是带类型的 ParseError；
// Registry.Parse 在边界处把失败折叠为 nil，调用方不需要关心失败原因。
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nodesieve/internal/shared/logger"
	"nodesieve/nodepool/model"
)

// DefaultPort 是 trojan/vless/hysteria 缺省端口。
const DefaultPort = 443

var (
	ErrNoScheme          = errors.New("missing scheme separator")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// ParseError 描述某个协议解码失败的原因。
type ParseError struct {
	Protocol model.Protocol
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Protocol, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Protocol, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

type endpoint struct {
	host string
	port int
}

// decoder 从完整连接串中提取 host/port。
type decoder func(raw string) (endpoint, error)

// Registry 是按协议索引的解码器表。
type Registry struct {
	decoders map[model.Protocol]decoder
}

// NewRegistry 创建注册了全部内置协议的 Registry。
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[model.Protocol]decoder)}
	r.register(model.VMess, decodeVMess)
	r.register(model.SS, decodeShadowsocks(model.SS))
	r.register(model.SSR, decodeShadowsocks(model.SSR))
	r.register(model.Trojan, decodeUserinfoURL(model.Trojan))
	r.register(model.VLESS, decodeUserinfoURL(model.VLESS))
	r.register(model.Hysteria, decodeHysteria(model.Hysteria))
	r.register(model.Hysteria2, decodeHysteria(model.Hysteria2))
	return r
}

func (r *Registry) register(p model.Protocol, d decoder) {
	r.decoders[p] = d
}

// Decode 解析一行连接串，返回节点或带原因的错误。
func (r *Registry) Decode(raw string) (*model.Node, error) {
	scheme, _, found := strings.Cut(raw, "://")
	if !found {
		return nil, ErrNoScheme
	}
	protocol, ok := model.ParseProtocol(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	dec, ok := r.decoders[protocol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}

	ep, err := dec(raw)
	if err != nil {
		return nil, err
	}
	if ep.host == "" {
		return nil, &ParseError{Protocol: protocol, Reason: "empty host"}
	}

	base := protocol.BaseScore()
	return &model.Node{
		URL:        raw,
		Protocol:   protocol,
		Host:       ep.host,
		Port:       ep.port,
		BaseScore:  base,
		FinalScore: base,
		Status:     model.StatusUnprobed,
		Stage:      model.StageParsed,
	}, nil
}

// Parse 解析一行连接串，任何失败都返回 nil。
func (r *Registry) Parse(raw string) *model.Node {
	n, err := r.Decode(raw)
	if err != nil {
		logger.Debug().Str("node", truncate(raw, 50)).Err(err).Msg("Node parse failed.")
		return nil
	}
	return n
}

// ParseAll 解析全部输入行，丢弃失败的行，保持输入顺序。
func (r *Registry) ParseAll(lines []string) []*model.Node {
	nodes := make([]*model.Node, 0, len(lines))
	for _, line := range lines {
		if n := r.Parse(line); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// parsePort 解析十进制端口并校验范围 1-65535。
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// normalizeHost 去掉 IPv6 字面量两侧的方括号。
func normalizeHost(h string) string {
	h = strings.TrimSpace(h)
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		return h[1 : len(h)-1]
	}
	return strings.Trim(h, "[]")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
