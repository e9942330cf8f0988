package parser

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodesieve/nodepool/model"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func rawB64(s string) string {
	return base64.RawStdEncoding.EncodeToString([]byte(s))
}

func TestParse_ValidURIs(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		name     string
		raw      string
		protocol model.Protocol
		host     string
		port     int
	}{
		{"vmess string port", "vmess://" + b64(`{"v":"2","ps":"a","add":"1.2.3.4","port":"443","id":"x"}`), model.VMess, "1.2.3.4", 443},
		{"vmess numeric port", "vmess://" + b64(`{"add":"v.example.com","port":8443}`), model.VMess, "v.example.com", 8443},
		{"vmess unpadded", "vmess://" + rawB64(`{"add":"10.0.0.1","port":"80"}`), model.VMess, "10.0.0.1", 80},
		{"vmess url-safe alphabet", "vmess://" + base64.URLEncoding.EncodeToString([]byte(`{"add":"u.example","port":"2096","ps":"??>>"}`)), model.VMess, "u.example", 2096},
		{"ss legacy base64", "ss://" + b64("aes-256-gcm:password@ss.example.com:8388") + "#tag", model.SS, "ss.example.com", 8388},
		{"ss password with colon", "ss://" + b64("chacha20-ietf-poly1305:pa:ss@1.1.1.1:443"), model.SS, "1.1.1.1", 443},
		{"ss ipv6", "ss://" + b64("aes-128-gcm:pw@[2001:db8::1]:8388"), model.SS, "2001:db8::1", 8388},
		{"ss sip002 falls back to regex", "ss://" + b64("aes-256-gcm:pass") + "@5.6.7.8:8388#name", model.SS, "5.6.7.8", 8388},
		{"ssr with userinfo", "ssr://" + b64("method:pw@9.9.9.9:1234"), model.SSR, "9.9.9.9", 1234},
		{"trojan", "trojan://pw@example.com:8443?sni=x#tag", model.Trojan, "example.com", 8443},
		{"trojan default port", "trojan://pw@example.com?security=tls", model.Trojan, "example.com", 443},
		{"vless with path", "vless://uuid@vl.example.org:2053/path?type=ws#n", model.VLESS, "vl.example.org", 2053},
		{"vless default port", "vless://uuid@vl.example.org#n", model.VLESS, "vl.example.org", 443},
		{"hysteria2 with auth", "hysteria2://auth@h2.example:4443/?insecure=1", model.Hysteria2, "h2.example", 4443},
		{"hysteria without auth", "hysteria://h.example:1234?protocol=udp", model.Hysteria, "h.example", 1234},
		{"hysteria default port", "hysteria://h.example?protocol=udp", model.Hysteria, "h.example", 443},
		{"uppercase scheme", "TROJAN://pw@up.example:444", model.Trojan, "up.example", 444},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := r.Parse(tc.raw)
			require.NotNil(t, n)
			assert.Equal(t, tc.protocol, n.Protocol)
			assert.Equal(t, tc.host, n.Host)
			assert.Equal(t, tc.port, n.Port)
			assert.Equal(t, tc.raw, n.URL)
			assert.Equal(t, tc.protocol.BaseScore(), n.BaseScore)
			assert.Equal(t, n.BaseScore, n.FinalScore)
			assert.Equal(t, model.StatusUnprobed, n.Status)
			assert.Equal(t, model.StageParsed, n.Stage)
		})
	}
}

func TestParse_InvalidReturnsNil(t *testing.T) {
	r := NewRegistry()

	cases := map[string]string{
		"empty":               "",
		"no scheme":           "1.2.3.4:443",
		"unsupported scheme":  "socks5://1.2.3.4:1080",
		"http url":            "https://example.com/sub",
		"vmess bad base64":    "vmess://@@@not-base64@@@",
		"vmess bad json":      "vmess://" + b64("not json"),
		"vmess json array":    "vmess://" + b64(`[1,2,3]`),
		"vmess missing add":   "vmess://" + b64(`{"port":"443"}`),
		"vmess port zero":     "vmess://" + b64(`{"add":"a.example","port":0}`),
		"vmess port text":     "vmess://" + b64(`{"add":"a.example","port":"abc"}`),
		"ss nothing usable":   "ss://" + b64("garbage-without-at"),
		"ssr native format":   "ssr://" + b64("1.2.3.4:443:origin:aes-256-cfb:plain:cGFzcw/?remarks=eA"),
		"trojan no userinfo":  "trojan://example.com:443",
		"trojan port too big": "trojan://pw@example.com:70000",
		"vless empty host":    "vless://uuid@:443",
		"hysteria no host":    "hysteria://",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, r.Parse(raw))
			})
		})
	}
}

func TestDecode_TypedErrors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Decode("plain text")
	assert.ErrorIs(t, err, ErrNoScheme)

	_, err = r.Decode("wireguard://key@1.2.3.4:51820")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = r.Decode("vmess://" + b64("not json"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, model.VMess, pe.Protocol)
	assert.Equal(t, "invalid json", pe.Reason)
}

func TestParseAll_SkipsFailures(t *testing.T) {
	r := NewRegistry()
	nodes := r.ParseAll([]string{
		"trojan://pw@a.example:443",
		"garbage",
		"hysteria2://x@b.example:8443",
	})
	require.Len(t, nodes, 2)
	assert.Equal(t, "a.example", nodes[0].Host)
	assert.Equal(t, "b.example", nodes[1].Host)
}
