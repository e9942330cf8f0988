package risk

import (
	"context"
	"errors"
	"net"

	"nodesieve/internal/shared/logger"
	"nodesieve/nodepool/model"
	"nodesieve/nodepool/storage"
)

// HostResolver 是域名解析接口，*net.Resolver 满足它。
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Options 是 Enricher 的依赖。Cache、Clock、Resolver 可以为空。
type Options struct {
	Provider Provider
	Region   *RegionPolicy
	Cache    storage.VerdictStore
	Window   int // check_top_nodes
	Clock    Clock
	Resolver HostResolver
}

// Stats 是一次检测的统计。
type Stats struct {
	Checked   int `json:"checked"`
	Lookups   int `json:"lookups"`
	CacheHits int `json:"cache_hits"`
	Failures  int `json:"failures"`
	Filtered  int `json:"filtered"`
	Penalized int `json:"penalized"`
}

// Enricher 顺序检测排名前 Window 个节点，节流器归它所有。
type Enricher struct {
	provider Provider
	region   *RegionPolicy
	cache    storage.VerdictStore
	window   int
	pacer    *Pacer
	resolver HostResolver
}

func NewEnricher(opts Options) *Enricher {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Enricher{
		provider: opts.Provider,
		region:   opts.Region,
		cache:    opts.Cache,
		window:   opts.Window,
		pacer:    NewPacer(opts.Provider.Interval(), opts.Clock),
		resolver: resolver,
	}
}

// Enrich 检测已排序列表的前 Window 个节点，窗口外的节点原样保留。
// 返回的列表未重新排序；被 filter 策略剔除的节点不在其中。
func (e *Enricher) Enrich(ctx context.Context, nodes []*model.Node) ([]*model.Node, Stats) {
	l := logger.WithComponent("NodePool/Risk")

	var stats Stats
	window := min(max(e.window, 0), len(nodes))
	l.Info().Str("provider", e.provider.Name()).Int("top", window).Msg("Starting IP risk check...")

	out := make([]*model.Node, 0, len(nodes))
	for i := 0; i < window; i++ {
		n := nodes[i]
		if ctx.Err() != nil {
			out = append(out, nodes[i:window]...)
			break
		}
		stats.Checked++

		v, ok := e.verdictFor(ctx, n, &stats)
		if !ok {
			out = append(out, n)
			continue
		}

		n.FinalScore += e.provider.Delta(v)
		n.Enrichment = model.Enrichment{
			Risk:     v.Risk,
			Country:  v.Country,
			ISP:      v.ISP,
			Provider: v.Provider,
		}
		n.Stage = model.StageEnriched

		if !e.region.Compliant(v.Country) {
			if e.region.Mode() == PolicyFilter {
				stats.Filtered++
				l.Debug().Str("country", v.Country).Str("protocol", string(n.Protocol)).Msg("Node dropped by region policy.")
				continue
			}
			n.FinalScore -= e.region.Penalty()
			stats.Penalized++
		}
		out = append(out, n)
	}
	out = append(out, nodes[window:]...)

	l.Info().
		Int("checked", stats.Checked).
		Int("lookups", stats.Lookups).
		Int("cache_hits", stats.CacheHits).
		Int("failures", stats.Failures).
		Int("filtered", stats.Filtered).
		Int("penalized", stats.Penalized).
		Msg("IP risk check finished.")
	return out, stats
}

// verdictFor 优先读缓存；缓存未命中时调用 provider，调用后无论成败都等待节流器。
func (e *Enricher) verdictFor(ctx context.Context, n *model.Node, stats *Stats) (*model.Verdict, bool) {
	l := logger.WithComponent("NodePool/Risk")

	ip := e.ipFor(ctx, n)
	if ip == "" {
		stats.Failures++
		return nil, false
	}
	key := e.provider.Name() + ":" + ip

	if e.cache != nil {
		v, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			l.Warn().Err(err).Msg("Verdict cache read failed.")
		}
		if ok {
			stats.CacheHits++
			return v, true
		}
	}

	stats.Lookups++
	v, err := e.provider.Lookup(ctx, ip)
	e.pacer.Wait()
	if err != nil {
		stats.Failures++
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode != 0 {
			l.Warn().Err(err).Msg("Risk provider returned an error.")
		} else {
			l.Debug().Err(err).Msg("Risk lookup failed.")
		}
		return nil, false
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, key, v); err != nil {
			l.Warn().Err(err).Msg("Verdict cache write failed.")
		}
	}
	return v, true
}

// ipFor 依次使用探测时解析的 IP、字面量 IP、重新解析的结果。
func (e *Enricher) ipFor(ctx context.Context, n *model.Node) string {
	if n.IP != "" {
		return n.IP
	}
	if ip := net.ParseIP(n.Host); ip != nil {
		return ip.String()
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	addrs, err := e.resolver.LookupHost(ctx, n.Host)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return addrs[0]
}
