package validator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"golang.org/x/net/proxy"

	"nodesieve/internal/shared/types"
	"nodesieve/nodepool/model"
)

// ProbeResult 是单个节点的探测结果，只由协调 goroutine 写回节点。
type ProbeResult struct {
	Status    model.Status
	LatencyMs float64
	IP        string
}

// Prober 定义了单节点可达性探测的行为。实现必须自己处理超时，不得 panic。
type Prober interface {
	Probe(ctx context.Context, n *model.Node) ProbeResult
}

// Resolver 是 DNS 解析接口，*net.Resolver 满足它。
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// TCPProber 解析主机并建立一次 TCP 连接，连接成功后立即关闭。
type TCPProber struct {
	timeout  time.Duration
	resolver Resolver
	dialer   proxy.ContextDialer
}

// NewTCPProber 创建 TCP 探测器。dialer 为 nil 时直连。
func NewTCPProber(timeout time.Duration, resolver Resolver, dialer proxy.ContextDialer) *TCPProber {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if dialer == nil {
		dialer = proxy.Direct
	}
	return &TCPProber{timeout: timeout, resolver: resolver, dialer: dialer}
}

func (p *TCPProber) Probe(ctx context.Context, n *model.Node) ProbeResult {
	ip, dnsMs, err := resolveHost(ctx, p.resolver, n.Host, p.timeout)
	if err != nil {
		return ProbeResult{Status: model.StatusDNSError}
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip, strconv.Itoa(n.Port)))
	if err != nil {
		return ProbeResult{Status: classifyDialError(err), IP: ip}
	}
	connectMs := elapsedMs(start)
	conn.Close()

	return ProbeResult{Status: model.StatusOnline, LatencyMs: roundMs(dnsMs + connectMs), IP: ip}
}

// QUICProber 对 UDP 协议节点做一次 QUIC 握手。
type QUICProber struct {
	timeout  time.Duration
	resolver Resolver
}

func NewQUICProber(timeout time.Duration, resolver Resolver) *QUICProber {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &QUICProber{timeout: timeout, resolver: resolver}
}

func (p *QUICProber) Probe(ctx context.Context, n *model.Node) ProbeResult {
	ip, dnsMs, err := resolveHost(ctx, p.resolver, n.Host, p.timeout)
	if err != nil {
		return ProbeResult{Status: model.StatusDNSError}
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	target := quicTargetOf(n)
	tlsConf := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         target.sni,
		NextProtos:         target.alpn,
	}
	start := time.Now()
	conn, err := quic.DialAddr(dialCtx, net.JoinHostPort(ip, strconv.Itoa(n.Port)), tlsConf, &quic.Config{
		HandshakeIdleTimeout: p.timeout,
	})
	if err != nil {
		return ProbeResult{Status: classifyDialError(err), IP: ip}
	}
	handshakeMs := elapsedMs(start)
	_ = conn.CloseWithError(0, "")

	return ProbeResult{Status: model.StatusOnline, LatencyMs: roundMs(dnsMs + handshakeMs), IP: ip}
}

// quicTarget 是从节点 URI 中读出的握手参数。
type quicTarget struct {
	sni        string
	alpn       []string
	obfuscated bool
}

// quicTargetOf 读取 sni（hysteria 旧写法为 peer）、alpn、obfs 参数。
// 未指定 alpn 时 hysteria2 用 h3，hysteria 用 hysteria。
func quicTargetOf(n *model.Node) quicTarget {
	t := quicTarget{sni: n.Host}
	if n.Protocol == model.Hysteria {
		t.alpn = []string{"hysteria"}
	} else {
		t.alpn = []string{"h3"}
	}

	u, err := url.Parse(n.URL)
	if err != nil {
		return t
	}
	q := u.Query()
	if sni := firstNonEmpty(q.Get("sni"), q.Get("peer")); sni != "" {
		t.sni = sni
	}
	var alpn []string
	for _, a := range strings.Split(q.Get("alpn"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			alpn = append(alpn, a)
		}
	}
	if len(alpn) > 0 {
		t.alpn = alpn
	}
	obfs := strings.ToLower(firstNonEmpty(q.Get("obfs"), q.Get("obfsParam"), q.Get("obfs-password")))
	t.obfuscated = obfs != "" && obfs != "none" && obfs != "plain"
	return t
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// protocolRouter 把 UDP 协议交给 QUIC 探测器，其余走 TCP。
// 混淆过的节点不会响应普通 QUIC 握手，同样走 TCP。
type protocolRouter struct {
	tcp  Prober
	quic Prober
}

func (r *protocolRouter) Probe(ctx context.Context, n *model.Node) ProbeResult {
	if n.Protocol.UDP() && !quicTargetOf(n).obfuscated {
		return r.quic.Probe(ctx, n)
	}
	return r.tcp.Probe(ctx, n)
}

// NewProber 按配置组装探测器：可选的 SOCKS5 上游与可选的 QUIC 探测。
func NewProber(cfg types.QualityFilterConf) (Prober, error) {
	timeout := time.Duration(cfg.ConnectTimeout * float64(time.Second))
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var dialer proxy.ContextDialer
	if cfg.ProbeProxy != "" {
		u, err := url.Parse(cfg.ProbeProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid probe_proxy %q: %w", cfg.ProbeProxy, err)
		}
		d, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create probe proxy dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("probe proxy %s does not support contexts", u.Scheme)
		}
		dialer = cd
	}

	tcp := NewTCPProber(timeout, nil, dialer)
	if !cfg.QUICProbe {
		return tcp, nil
	}
	return &protocolRouter{tcp: tcp, quic: NewQUICProber(timeout, nil)}, nil
}

// resolveHost 返回用于拨号的 IP 与解析耗时。字面量 IP 不做解析。
func resolveHost(ctx context.Context, r Resolver, host string, timeout time.Duration) (string, float64, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), 0, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	addrs, err := r.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return "", 0, err
	}
	if len(addrs) == 0 {
		return "", 0, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	dnsMs := elapsedMs(start)

	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), dnsMs, nil
		}
	}
	return addrs[0].IP.String(), dnsMs, nil
}

func classifyDialError(err error) model.Status {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, syscall.ETIMEDOUT):
		return model.StatusTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return model.StatusTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return model.StatusOffline
	default:
		return model.StatusError
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

func roundMs(ms float64) float64 {
	return math.Round(ms*100) / 100
}
