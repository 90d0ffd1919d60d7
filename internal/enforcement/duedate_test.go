package enforcement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planguard/internal/catalog"
	"planguard/internal/rulepack"
)

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func timelineRule(key string, days int, businessDays bool) rulepack.PackRule {
	cfg := catalog.RuleConfig{Days: intPtr(days)}
	if businessDays {
		cfg.BusinessDaysOnly = boolPtr(true)
	}
	return rulepack.PackRule{
		RuleKey:   key,
		IsEnabled: true,
		Config:    cfg,
	}
}

func TestCalculateDueDates(t *testing.T) {
	scheduled := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		rules    []rulepack.PackRule
		expected map[string]time.Time
	}{
		{
			name:  "calendar days",
			rules: []rulepack.PackRule{timelineRule("DOC_DELIVERY", 5, false)},
			expected: map[string]time.Time{
				"DOC_DELIVERY": time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "business days skip the weekend",
			rules: []rulepack.PackRule{timelineRule("CONSENT_FOLLOWUP", 5, true)},
			expected: map[string]time.Time{
				// 2024-03-01 is a Friday; Sat 2 and Sun 3 do not count.
				"CONSENT_FOLLOWUP": time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "disabled rules carry no deadline",
			rules: []rulepack.PackRule{
				timelineRule("DOC_DELIVERY", 5, false),
				{
					RuleKey:   "DISABLED_RULE",
					IsEnabled: false,
					Config:    catalog.RuleConfig{Days: intPtr(3)},
				},
			},
			expected: map[string]time.Time{
				"DOC_DELIVERY": time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "rules without a day count are skipped",
			rules: []rulepack.PackRule{
				{RuleKey: "FLAG_ONLY", IsEnabled: true, Config: catalog.RuleConfig{DeliveryMethod: "EMAIL"}},
			},
			expected: map[string]time.Time{},
		},
		{
			name: "day count falls back to the definition default",
			rules: []rulepack.PackRule{
				{
					RuleKey:       "DEFAULTED",
					IsEnabled:     true,
					DefaultConfig: catalog.RuleConfig{Days: intPtr(10)},
				},
			},
			expected: map[string]time.Time{
				"DEFAULTED": time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "pack override wins over the default",
			rules: []rulepack.PackRule{
				{
					RuleKey:       "OVERRIDDEN",
					IsEnabled:     true,
					Config:        catalog.RuleConfig{Days: intPtr(2)},
					DefaultConfig: catalog.RuleConfig{Days: intPtr(10)},
				},
			},
			expected: map[string]time.Time{
				"OVERRIDDEN": time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pack := &rulepack.RulePack{Rules: tt.rules}
			dueDates := CalculateDueDates(scheduled, pack)

			require.Len(t, dueDates, len(tt.expected))
			for key, want := range tt.expected {
				assert.True(t, dueDates[key].Equal(want), "rule %s: got %v, want %v", key, dueDates[key], want)
			}
		})
	}
}

func TestCalculateDueDatesNilPack(t *testing.T) {
	dueDates := CalculateDueDates(time.Now(), nil)

	assert.NotNil(t, dueDates)
	assert.Empty(t, dueDates)
}

func TestAddBusinessDaysFromWeekend(t *testing.T) {
	// Saturday start: counting begins with the following Monday.
	saturday := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

	due := addBusinessDays(saturday, 1)

	assert.Equal(t, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), due)
}
