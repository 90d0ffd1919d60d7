package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/catalog"
	"planguard/internal/rulepack"
)

// A warm resolution must evaluate exactly like a cold one, so the cached
// form has to carry the rule definition defaults a merge depends on.
func TestCachedResolutionKeepsRuleDefaults(t *testing.T) {
	days := 5
	pack := &rulepack.RulePack{
		ID: "pack-1",
		Rules: []rulepack.PackRule{{
			RuleKey:   "WRITTEN_NOTICE_DELIVERY",
			IsEnabled: true,
			DefaultConfig: catalog.RuleConfig{
				Days:      &days,
				Condition: `plan_type == "IEP"`,
			},
		}},
	}

	data, err := json.Marshal(cachedResolution{Pack: pack})
	require.NoError(t, err)

	var cached cachedResolution
	require.NoError(t, json.Unmarshal(data, &cached))
	require.Len(t, cached.Pack.Rules, 1)

	merged := cached.Pack.Rules[0].MergedConfig()
	got, ok := merged.DaysValue()
	require.True(t, ok)
	assert.Equal(t, days, got)
	assert.Equal(t, `plan_type == "IEP"`, merged.Condition)
}

func TestCachedResolutionKeepsNilPack(t *testing.T) {
	data, err := json.Marshal(cachedResolution{})
	require.NoError(t, err)

	var cached cachedResolution
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Nil(t, cached.Pack)
}
