package enforcement

import (
	"time"

	"planguard/internal/rulepack"
)

// CalculateDueDates derives one due date per enabled timeline rule, keyed by
// rule key. Rules without a day count carry no deadline and are skipped.
func CalculateDueDates(scheduledAt time.Time, pack *rulepack.RulePack) map[string]time.Time {
	dueDates := make(map[string]time.Time)
	if pack == nil {
		return dueDates
	}

	for _, rule := range pack.Rules {
		if !rule.IsEnabled {
			continue
		}

		cfg := rule.MergedConfig()
		days, ok := cfg.DaysValue()
		if !ok {
			continue
		}

		if cfg.BusinessDays() {
			dueDates[rule.RuleKey] = addBusinessDays(scheduledAt, days)
		} else {
			dueDates[rule.RuleKey] = scheduledAt.AddDate(0, 0, days)
		}
	}

	return dueDates
}

// addBusinessDays advances day by day, counting only Monday through Friday.
func addBusinessDays(from time.Time, days int) time.Time {
	due := from
	for remaining := days; remaining > 0; {
		due = due.AddDate(0, 0, 1)
		if wd := due.Weekday(); wd != time.Saturday && wd != time.Sunday {
			remaining--
		}
	}
	return due
}
