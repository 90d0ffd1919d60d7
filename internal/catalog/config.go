package catalog

import "encoding/json"

const (
	configKeyDays             = "days"
	configKeyBusinessDaysOnly = "business_days_only"
	configKeyDeliveryMethod   = "delivery_method"
	configKeyCondition        = "condition"
)

// RuleConfig is the typed representation of a rule's configuration map.
// Known knobs get typed fields; anything else round-trips through Extra so
// configs written by a newer deployment are never dropped.
type RuleConfig struct {
	Days             *int
	BusinessDaysOnly *bool
	DeliveryMethod   string
	Condition        string
	Extra            map[string]interface{}
}

func (c RuleConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.toMap())
}

func (c *RuleConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = configFromMap(raw)
	return nil
}

func (c RuleConfig) toMap() map[string]interface{} {
	out := make(map[string]interface{}, len(c.Extra)+4)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Days != nil {
		out[configKeyDays] = *c.Days
	}
	if c.BusinessDaysOnly != nil {
		out[configKeyBusinessDaysOnly] = *c.BusinessDaysOnly
	}
	if c.DeliveryMethod != "" {
		out[configKeyDeliveryMethod] = c.DeliveryMethod
	}
	if c.Condition != "" {
		out[configKeyCondition] = c.Condition
	}
	return out
}

func configFromMap(raw map[string]interface{}) RuleConfig {
	var c RuleConfig
	for k, v := range raw {
		switch k {
		case configKeyDays:
			// Decoded JSON carries float64, merged maps carry the typed int
			if d, ok := daysValue(v); ok {
				c.Days = &d
				continue
			}
		case configKeyBusinessDaysOnly:
			if b, ok := v.(bool); ok {
				v := b
				c.BusinessDaysOnly = &v
				continue
			}
		case configKeyDeliveryMethod:
			if s, ok := v.(string); ok {
				c.DeliveryMethod = s
				continue
			}
		case configKeyCondition:
			if s, ok := v.(string); ok {
				c.Condition = s
				continue
			}
		}
		if c.Extra == nil {
			c.Extra = make(map[string]interface{})
		}
		c.Extra[k] = v
	}
	return c
}

func daysValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

// Merge applies overrides on top of defaults, key by key. An override key
// always wins, including typed knobs carried in Extra by older writers.
func Merge(defaults, overrides RuleConfig) RuleConfig {
	merged := defaults.toMap()
	for k, v := range overrides.toMap() {
		merged[k] = v
	}
	return configFromMap(merged)
}

// DaysValue returns the days knob and whether it is set.
func (c RuleConfig) DaysValue() (int, bool) {
	if c.Days == nil {
		return 0, false
	}
	return *c.Days, true
}

// BusinessDays reports whether due dates skip weekends.
func (c RuleConfig) BusinessDays() bool {
	return c.BusinessDaysOnly != nil && *c.BusinessDaysOnly
}

func (c RuleConfig) IsEmpty() bool {
	return c.Days == nil && c.BusinessDaysOnly == nil &&
		c.DeliveryMethod == "" && c.Condition == "" && len(c.Extra) == 0
}
