package risk

import (
	"strings"

	"nodesieve/internal/shared/types"
)

type Policy string

const (
	PolicyFilter   Policy = "filter"
	PolicyPenalize Policy = "penalize"

	defaultRegionPenalty = 20
)

// RegionPolicy 判断节点所在国家是否合规。运行期间只读。
type RegionPolicy struct {
	enabled bool
	allowed map[string]struct{}
	blocked map[string]struct{}
	mode    Policy
	penalty int
}

func NewRegionPolicy(cfg types.RegionLimitConf) *RegionPolicy {
	mode := Policy(strings.ToLower(strings.TrimSpace(cfg.Policy)))
	if mode != PolicyFilter {
		mode = PolicyPenalize
	}
	penalty := cfg.Penalty
	if penalty <= 0 {
		penalty = defaultRegionPenalty
	}
	return &RegionPolicy{
		enabled: cfg.Enabled,
		allowed: countrySet(cfg.AllowedCountries),
		blocked: countrySet(cfg.BlockedCountries),
		mode:    mode,
		penalty: penalty,
	}
}

func countrySet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Compliant 报告国家是否合规。未知国家视为合规。
func (r *RegionPolicy) Compliant(country string) bool {
	if r == nil || !r.enabled || country == "" {
		return true
	}
	country = strings.ToUpper(country)
	if len(r.allowed) > 0 {
		if _, ok := r.allowed[country]; !ok {
			return false
		}
	}
	_, blocked := r.blocked[country]
	return !blocked
}

func (r *RegionPolicy) Mode() Policy { return r.mode }
func (r *RegionPolicy) Penalty() int { return r.penalty }
