package parser

import (
	"regexp"
	"strings"

	"nodesieve/nodepool/model"
)

var atHostPortRe = regexp.MustCompile(`@([^:]+):(\d+)`)

// decodeShadowsocks 处理 ss/ssr。
// 先尝试 base64(method:password@host:port)，失败后在原串上直接查找 @host:port。
func decodeShadowsocks(protocol model.Protocol) decoder {
	return func(raw string) (endpoint, error) {
		parts := strings.Split(raw, "://")
		content, _, _ := strings.Cut(parts[1], "#")

		if ep, ok := decodeShadowsocksPayload(content); ok {
			return ep, nil
		}

		m := atHostPortRe.FindStringSubmatch(raw)
		if m == nil {
			return endpoint{}, &ParseError{Protocol: protocol, Reason: "no host:port found"}
		}
		port, err := parsePort(m[2])
		if err != nil {
			return endpoint{}, &ParseError{Protocol: protocol, Reason: "invalid port", Err: err}
		}
		return endpoint{host: normalizeHost(m[1]), port: port}, nil
	}
}

func decodeShadowsocksPayload(content string) (endpoint, bool) {
	decoded, err := decodeBase64Padded(content)
	if err != nil {
		return endpoint{}, false
	}
	segs := strings.Split(decoded, "@")
	if len(segs) != 2 {
		return endpoint{}, false
	}
	// host:port 从右侧切分，密码或 IPv6 地址中的冒号不受影响
	idx := strings.LastIndex(segs[1], ":")
	if idx < 0 {
		return endpoint{}, false
	}
	port, err := parsePort(segs[1][idx+1:])
	if err != nil {
		return endpoint{}, false
	}
	host := normalizeHost(segs[1][:idx])
	if host == "" {
		return endpoint{}, false
	}
	return endpoint{host: host, port: port}, true
}
