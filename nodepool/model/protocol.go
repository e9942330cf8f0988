package model

import "strings"

// Protocol 是受支持的节点协议，集合固定。
type Protocol string

const (
	Hysteria2 Protocol = "hysteria2"
	Hysteria  Protocol = "hysteria"
	VLESS     Protocol = "vless"
	Trojan    Protocol = "trojan"
	VMess     Protocol = "vmess"
	SS        Protocol = "ss"
	SSR       Protocol = "ssr"
)

// protocolScores 是协议优先级（分数越高越好）。只有相对顺序是约定，数值可调。
var protocolScores = map[Protocol]int{
	Hysteria2: 10,
	Hysteria:  9,
	VLESS:     8,
	Trojan:    7,
	VMess:     6,
	SS:        5,
	SSR:       4,
}

var displayNames = map[Protocol]string{
	Hysteria2: "Hysteria2",
	Hysteria:  "Hysteria",
	VLESS:     "VLESS",
	Trojan:    "Trojan",
	VMess:     "VMess",
	SS:        "SS",
	SSR:       "SSR",
}

// Protocols 按基础分从高到低返回全部协议。
func Protocols() []Protocol {
	return []Protocol{Hysteria2, Hysteria, VLESS, Trojan, VMess, SS, SSR}
}

// ParseProtocol 将 scheme（大小写不敏感）映射到协议。
func ParseProtocol(scheme string) (Protocol, bool) {
	p := Protocol(strings.ToLower(scheme))
	_, ok := protocolScores[p]
	return p, ok
}

// BaseScore 返回协议的基础分，未知协议返回 0。
func (p Protocol) BaseScore() int {
	return protocolScores[p]
}

// DisplayName 返回用于节点标签的协议名。
func (p Protocol) DisplayName() string {
	if name, ok := displayNames[p]; ok {
		return name
	}
	return strings.ToUpper(string(p))
}

// UDP 报告协议是否运行在 QUIC/UDP 之上。
func (p Protocol) UDP() bool {
	return p == Hysteria || p == Hysteria2
}
