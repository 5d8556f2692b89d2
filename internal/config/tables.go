package config

import (
	"fmt"

	"CycleSentinel/internal/model"
)

// Spec is one indicator's static configuration entry.
type Spec struct {
	Lower  float64 `yaml:"lower"`
	Upper  float64 `yaml:"upper"`
	Weight float64 `yaml:"weight"`
}

// Tables maps indicator name to normalization bounds and weight, per side.
// Loaded once at startup and read-only thereafter.
type Tables struct {
	Bottom map[string]Spec `yaml:"bottom"`
	Top    map[string]Spec `yaml:"top"`
}

// DefaultTables returns the built-in bounds/weights for the full roster.
// A config file entry with the same name overrides the default.
func DefaultTables() *Tables {
	return &Tables{
		Bottom: map[string]Spec{
			"cvdd_terminal_relative": {Lower: 0, Upper: 1, Weight: 0.10},
			"m_timed_bottom_score":   {Lower: 0, Upper: 1, Weight: 0.08},
			"2d_volume_burst":        {Lower: 0, Upper: 4, Weight: 0.10},
			"cm_vix_fix":             {Lower: 5, Upper: 40, Weight: 0.10},
			"gaussian_channel":       {Lower: 0, Upper: 3, Weight: 0.10},
			"3d_mmd":                 {Lower: 0, Upper: 3, Weight: 0.08},
			"hash_ribbons":           {Lower: 0, Upper: 1, Weight: 0.10},
			"w_wavefront":            {Lower: 0, Upper: 1, Weight: 0.08},
			"supertrend":             {Lower: 0, Upper: 1, Weight: 0.09},
			"pi_cycle_low":           {Lower: 0, Upper: 1, Weight: 0.09},
			"puell_multiple":         {Lower: 0, Upper: 1, Weight: 0.08},
		},
		Top: map[string]Spec{
			"cvdd_terminal_relative": {Lower: 0, Upper: 1, Weight: 0.11},
			"nupl":                   {Lower: -32.67, Upper: 66.8, Weight: 0.12},
			"transaction_cost":       {Lower: 1, Upper: 60, Weight: 0.07},
			"funding_rates":          {Lower: -50, Upper: 150, Weight: 0.11},
			"bbwp":                   {Lower: 0, Upper: 100, Weight: 0.09},
			"wavetrend_oscillator":   {Lower: -100, Upper: 100, Weight: 0.10},
			"3d_volume":              {Lower: 0, Upper: 4, Weight: 0.09},
			"mmd":                    {Lower: 0, Upper: 30, Weight: 0.09},
			"pi_cycle":               {Lower: 0, Upper: 1, Weight: 0.11},
			"m_timed_top_score":      {Lower: 0, Upper: 1, Weight: 0.08},
		},
	}
}

func (t *Tables) side(side model.Side) map[string]Spec {
	switch side {
	case model.SideBottom:
		return t.Bottom
	case model.SideTop:
		return t.Top
	}
	return nil
}

// Lookup returns the full spec for an indicator. ok is false when the
// indicator has no configuration, which callers treat as misconfigured.
func (t *Tables) Lookup(side model.Side, name string) (Spec, bool) {
	m := t.side(side)
	if m == nil {
		return Spec{}, false
	}
	s, ok := m[name]
	return s, ok
}

// Bounds returns the normalization bounds for an indicator.
func (t *Tables) Bounds(side model.Side, name string) (model.Bounds, bool) {
	s, ok := t.Lookup(side, name)
	if !ok {
		return model.Bounds{}, false
	}
	return model.Bounds{Lower: s.Lower, Upper: s.Upper}, true
}

// Weight returns the composite weight for an indicator.
func (t *Tables) Weight(side model.Side, name string) (float64, bool) {
	s, ok := t.Lookup(side, name)
	if !ok {
		return 0, false
	}
	return s.Weight, true
}

// Validate checks every entry for sane bounds and weights.
func (t *Tables) Validate() error {
	for side, m := range map[model.Side]map[string]Spec{model.SideBottom: t.Bottom, model.SideTop: t.Top} {
		for name, s := range m {
			if s.Lower >= s.Upper {
				return fmt.Errorf("indicators.%s.%s: lower (%g) must be < upper (%g)", side, name, s.Lower, s.Upper)
			}
			if s.Weight < 0 {
				return fmt.Errorf("indicators.%s.%s: weight must be >= 0", side, name)
			}
		}
	}
	return nil
}

// fillDefaults merges built-in entries for any indicator the config file
// does not mention.
func (t *Tables) fillDefaults() {
	def := DefaultTables()
	if t.Bottom == nil {
		t.Bottom = def.Bottom
	} else {
		for name, s := range def.Bottom {
			if _, ok := t.Bottom[name]; !ok {
				t.Bottom[name] = s
			}
		}
	}
	if t.Top == nil {
		t.Top = def.Top
	} else {
		for name, s := range def.Top {
			if _, ok := t.Top[name]; !ok {
				t.Top[name] = s
			}
		}
	}
}

// Normalize rescales a raw value into [0,1] via the given bounds. Returns
// ok=false for degenerate bounds; it never divides by zero.
func Normalize(raw float64, b model.Bounds) (float64, bool) {
	if b.Degenerate() {
		return 0, false
	}
	n := (raw - b.Lower) / (b.Upper - b.Lower)
	if n < 0 {
		n = 0
	}
	if n > 1 {
		n = 1
	}
	return n, true
}
