package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Rounding modes for final whole-unit tax rounding.
const (
	RoundHalfUp   = "half-up"
	RoundHalfEven = "half-even"
)

// Bracket is one progressive tax bracket. UpTo is the inclusive upper bound
// of the bracket; a nil UpTo marks the open-ended top bracket.
type Bracket struct {
	UpTo *decimal.Decimal `yaml:"up_to"`
	Rate decimal.Decimal  `yaml:"rate"`
}

// Surcharge is a high-income surcharge rule: Rate applied to the excess of
// EWMA income over Threshold.
type Surcharge struct {
	Threshold decimal.Decimal `yaml:"threshold"`
	Rate      decimal.Decimal `yaml:"rate"`
}

// StandardDeduction is the configured schedule for the standard deduction:
// Base plus PerChild for each child, up to MaxChildren children.
type StandardDeduction struct {
	Base        decimal.Decimal `yaml:"base"`
	PerChild    decimal.Decimal `yaml:"per_child"`
	MaxChildren int             `yaml:"max_children"`
}

// Rules holds every numeric tax constant the computation core uses. The
// values are deliberately not hard-coded in the calculation packages; the
// defaults below mirror the reference rule set and a YAML file can override
// any of them.
type Rules struct {
	EwmaAlpha          decimal.Decimal   `yaml:"ewma_alpha"`
	Rounding           string            `yaml:"rounding"`
	StandardDeduction  StandardDeduction `yaml:"standard_deduction"`
	FederalBrackets    []Bracket         `yaml:"federal_brackets"`
	FederalSurcharge   Surcharge         `yaml:"federal_surcharge"`
	CaliforniaBrackets []Bracket         `yaml:"california_brackets"`
	CaliforniaSurcharge Surcharge        `yaml:"california_surcharge"`
}

// DefaultRules returns the reference rule set.
func DefaultRules() Rules {
	upTo := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	return Rules{
		EwmaAlpha: decimal.NewFromFloat(0.6),
		Rounding:  RoundHalfUp,
		StandardDeduction: StandardDeduction{
			Base:        decimal.NewFromInt(10000),
			PerChild:    decimal.NewFromInt(1500),
			MaxChildren: 10,
		},
		FederalBrackets: []Bracket{
			{UpTo: upTo(100000), Rate: decimal.NewFromFloat(0.05)},
			{UpTo: upTo(200000), Rate: decimal.NewFromFloat(0.10)},
			{UpTo: upTo(300000), Rate: decimal.NewFromFloat(0.15)},
			{Rate: decimal.NewFromFloat(0.20)},
		},
		FederalSurcharge: Surcharge{
			Threshold: decimal.NewFromInt(1000000),
			Rate:      decimal.NewFromFloat(0.02),
		},
		CaliforniaBrackets: []Bracket{
			{UpTo: upTo(90000), Rate: decimal.NewFromFloat(0.01)},
			{UpTo: upTo(200000), Rate: decimal.NewFromFloat(0.03)},
			{Rate: decimal.NewFromFloat(0.05)},
		},
		CaliforniaSurcharge: Surcharge{
			Threshold: decimal.NewFromInt(1000000),
			Rate:      decimal.NewFromFloat(0.01),
		},
	}
}

// LoadRules returns the default rules overridden by the YAML file at path.
// An empty path returns the defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate checks structural invariants on the rule set.
func (r Rules) Validate() error {
	one := decimal.NewFromInt(1)
	if r.EwmaAlpha.LessThanOrEqual(decimal.Zero) || r.EwmaAlpha.GreaterThan(one) {
		return fmt.Errorf("ewma_alpha must be in (0, 1], got %s", r.EwmaAlpha)
	}
	if r.Rounding != RoundHalfUp && r.Rounding != RoundHalfEven {
		return fmt.Errorf("rounding must be %q or %q, got %q", RoundHalfUp, RoundHalfEven, r.Rounding)
	}
	if err := validateBrackets("federal_brackets", r.FederalBrackets); err != nil {
		return err
	}
	return validateBrackets("california_brackets", r.CaliforniaBrackets)
}

func validateBrackets(name string, brackets []Bracket) error {
	if len(brackets) == 0 {
		return fmt.Errorf("%s must not be empty", name)
	}
	prev := decimal.Zero
	for i, b := range brackets {
		if b.UpTo == nil {
			if i != len(brackets)-1 {
				return fmt.Errorf("%s: only the last bracket may be open-ended", name)
			}
			continue
		}
		if b.UpTo.LessThanOrEqual(prev) {
			return fmt.Errorf("%s: bracket bounds must be strictly increasing", name)
		}
		prev = *b.UpTo
	}
	return nil
}
