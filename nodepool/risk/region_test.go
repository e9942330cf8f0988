package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nodesieve/internal/shared/types"
)

func TestRegionPolicy_Compliant(t *testing.T) {
	blockOnly := NewRegionPolicy(types.RegionLimitConf{Enabled: true, BlockedCountries: []string{"cn", " RU "}})
	assert.False(t, blockOnly.Compliant("CN"))
	assert.False(t, blockOnly.Compliant("ru"))
	assert.True(t, blockOnly.Compliant("US"))
	assert.True(t, blockOnly.Compliant(""), "unknown country is compliant")

	allow := NewRegionPolicy(types.RegionLimitConf{Enabled: true, AllowedCountries: []string{"US", "JP"}, BlockedCountries: []string{"JP"}})
	assert.True(t, allow.Compliant("US"))
	assert.False(t, allow.Compliant("JP"), "block list wins")
	assert.False(t, allow.Compliant("DE"))

	disabled := NewRegionPolicy(types.RegionLimitConf{BlockedCountries: []string{"CN"}})
	assert.True(t, disabled.Compliant("CN"))

	var nilPolicy *RegionPolicy
	assert.True(t, nilPolicy.Compliant("CN"))
}

func TestRegionPolicy_Defaults(t *testing.T) {
	r := NewRegionPolicy(types.RegionLimitConf{Enabled: true})
	assert.Equal(t, PolicyPenalize, r.Mode())
	assert.Equal(t, 20, r.Penalty())

	r = NewRegionPolicy(types.RegionLimitConf{Enabled: true, Policy: "FILTER", Penalty: 5})
	assert.Equal(t, PolicyFilter, r.Mode())
	assert.Equal(t, 5, r.Penalty())
}

func TestPacer(t *testing.T) {
	assert.Nil(t, NewPacer(0, nil))
	var p *Pacer
	assert.NotPanics(t, p.Wait)

	clock := newFakeClock()
	p = NewPacer(1500*time.Millisecond, clock)
	p.Wait()
	p.Wait()
	p.Wait()
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond, 1500 * time.Millisecond}, clock.sleeps)
}
