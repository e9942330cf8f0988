package parser

import (
	"regexp"
	"strings"

	"nodesieve/nodepool/model"
)

var (
	userinfoHostRe = regexp.MustCompile(`://[^@]+@([^:/?#]+):?(\d+)?`)
	atHostRe       = regexp.MustCompile(`@([^:/?#]+):?(\d+)?`)
	schemeHostRe   = regexp.MustCompile(`://([^:/?#]+):?(\d+)?`)
)

// decodeUserinfoURL 处理 trojan://password@host:port 与 vless://uuid@host:port。
func decodeUserinfoURL(protocol model.Protocol) decoder {
	return func(raw string) (endpoint, error) {
		return matchHostPort(protocol, userinfoHostRe, raw)
	}
}

// decodeHysteria 处理 hysteria://host:port 与 hysteria2://auth@host:port。
func decodeHysteria(protocol model.Protocol) decoder {
	return func(raw string) (endpoint, error) {
		if strings.Contains(raw, "@") {
			return matchHostPort(protocol, atHostRe, raw)
		}
		return matchHostPort(protocol, schemeHostRe, raw)
	}
}

func matchHostPort(protocol model.Protocol, re *regexp.Regexp, raw string) (endpoint, error) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return endpoint{}, &ParseError{Protocol: protocol, Reason: "no host found"}
	}
	port := DefaultPort
	if m[2] != "" {
		p, err := parsePort(m[2])
		if err != nil {
			return endpoint{}, &ParseError{Protocol: protocol, Reason: "invalid port", Err: err}
		}
		port = p
	}
	return endpoint{host: normalizeHost(m[1]), port: port}, nil
}
