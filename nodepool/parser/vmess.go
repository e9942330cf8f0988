package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"nodesieve/nodepool/model"
)

// decodeVMess 解析 vmess://base64(json)，读取 add/port 字段。
func decodeVMess(raw string) (endpoint, error) {
	_, payload, _ := strings.Cut(raw, "://")

	decoded, err := decodeBase64Padded(payload)
	if err != nil {
		return endpoint{}, &ParseError{Protocol: model.VMess, Reason: "invalid base64", Err: err}
	}

	cfg, err := decodeVMessJSON(decoded)
	if err != nil {
		return endpoint{}, &ParseError{Protocol: model.VMess, Reason: "invalid json", Err: err}
	}

	host, _ := cfg["add"].(string)
	host = strings.TrimSpace(host)
	if host == "" {
		return endpoint{}, &ParseError{Protocol: model.VMess, Reason: "missing add"}
	}

	port, err := jsonPort(cfg["port"])
	if err != nil {
		return endpoint{}, &ParseError{Protocol: model.VMess, Reason: "invalid port", Err: err}
	}
	return endpoint{host: normalizeHost(host), port: port}, nil
}

// decodeVMessJSON 用 UseNumber 保留数字原文。
func decodeVMessJSON(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var cfg map[string]any
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("not a json object")
	}
	return cfg, nil
}

// jsonPort 接受数字或字符串形式的端口。
func jsonPort(v any) (int, error) {
	switch p := v.(type) {
	case json.Number:
		if i, err := p.Int64(); err == nil {
			return parsePort(fmt.Sprint(i))
		}
		f, err := p.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("port %q is not an integer", p.String())
		}
		return parsePort(fmt.Sprint(int64(f)))
	case string:
		return parsePort(p)
	case nil:
		return 0, fmt.Errorf("missing port")
	default:
		return 0, fmt.Errorf("unexpected port type %T", v)
	}
}
