package parser

import (
	"encoding/base64"
	"strings"
)

// decodeBase64Padded 把长度补齐到 4 的倍数后解码，标准字母表失败时再试 URL-safe 字母表。
func decodeBase64Padded(s string) (string, error) {
	if missing := len(s) % 4; missing != 0 {
		s += strings.Repeat("=", 4-missing)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var urlErr error
		b, urlErr = base64.URLEncoding.DecodeString(s)
		if urlErr != nil {
			return "", err
		}
	}
	return string(b), nil
}
