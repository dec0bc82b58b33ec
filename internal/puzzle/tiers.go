package puzzle

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StrategyTier is one quality level for extension. Tiers are tried in order,
// strictest first; each successive tier relaxes the minimum length.
type StrategyTier struct {
	Label          string `yaml:"label"`
	MinPlies       int    `yaml:"min_plies"`
	MaxPlies       int    `yaml:"max_plies"`
	PerPlyBudgetMs int    `yaml:"per_ply_budget_ms"`
}

func (t StrategyTier) PerPlyBudget() time.Duration {
	return time.Duration(t.PerPlyBudgetMs) * time.Millisecond
}

// DefaultTiers is the standard cascade. The boundaries are empirically
// chosen defaults, overridable via a tiers file.
func DefaultTiers() []StrategyTier {
	return []StrategyTier{
		{Label: "long", MinPlies: 10, MaxPlies: 16, PerPlyBudgetMs: 800},
		{Label: "medium", MinPlies: 8, MaxPlies: 16, PerPlyBudgetMs: 600},
		{Label: "short", MinPlies: 6, MaxPlies: 12, PerPlyBudgetMs: 500},
		{Label: "tactical", MinPlies: 4, MaxPlies: 10, PerPlyBudgetMs: 400},
	}
}

type tiersFile struct {
	Tiers []StrategyTier `yaml:"tiers"`
}

// LoadTiers reads a tier cascade from a YAML file and validates it.
func LoadTiers(path string) ([]StrategyTier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}
	var f tiersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tiers file: %w", err)
	}
	if err := ValidateTiers(f.Tiers); err != nil {
		return nil, err
	}
	return f.Tiers, nil
}

// ValidateTiers enforces the cascade invariant: every tier well-formed and
// minimum lengths strictly decreasing.
func ValidateTiers(tiers []StrategyTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tiers: at least one tier required")
	}
	prevMin := 0
	for i, t := range tiers {
		if t.Label == "" {
			return fmt.Errorf("tiers[%d]: label required", i)
		}
		if t.MinPlies <= 0 {
			return fmt.Errorf("tier %q: min plies must be > 0", t.Label)
		}
		if t.MaxPlies < t.MinPlies {
			return fmt.Errorf("tier %q: max plies %d below min %d", t.Label, t.MaxPlies, t.MinPlies)
		}
		if t.PerPlyBudgetMs <= 0 {
			return fmt.Errorf("tier %q: per-ply budget must be > 0", t.Label)
		}
		if i > 0 && t.MinPlies >= prevMin {
			return fmt.Errorf("tier %q: min plies %d not below previous tier's %d", t.Label, t.MinPlies, prevMin)
		}
		prevMin = t.MinPlies
	}
	return nil
}
