package puzzle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTiersValid(t *testing.T) {
	if err := ValidateTiers(DefaultTiers()); err != nil {
		t.Fatalf("default tiers invalid: %v", err)
	}
}

func TestValidateTiersRejectsNonDecreasing(t *testing.T) {
	tiers := []StrategyTier{
		{Label: "a", MinPlies: 8, MaxPlies: 12, PerPlyBudgetMs: 500},
		{Label: "b", MinPlies: 8, MaxPlies: 12, PerPlyBudgetMs: 500},
	}
	if err := ValidateTiers(tiers); err == nil {
		t.Fatalf("expected error for equal min plies")
	}

	tiers[1].MinPlies = 10
	if err := ValidateTiers(tiers); err == nil {
		t.Fatalf("expected error for increasing min plies")
	}
}

func TestValidateTiersRejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		tiers []StrategyTier
	}{
		{"empty", nil},
		{"no label", []StrategyTier{{MinPlies: 4, MaxPlies: 8, PerPlyBudgetMs: 500}}},
		{"zero min", []StrategyTier{{Label: "x", MinPlies: 0, MaxPlies: 8, PerPlyBudgetMs: 500}}},
		{"max below min", []StrategyTier{{Label: "x", MinPlies: 8, MaxPlies: 6, PerPlyBudgetMs: 500}}},
		{"zero budget", []StrategyTier{{Label: "x", MinPlies: 4, MaxPlies: 8}}},
	}
	for _, tc := range cases {
		if err := ValidateTiers(tc.tiers); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestLoadTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	data := `tiers:
  - label: deep
    min_plies: 12
    max_plies: 18
    per_ply_budget_ms: 900
  - label: quick
    min_plies: 4
    max_plies: 8
    per_ply_budget_ms: 300
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write tiers file: %v", err)
	}

	tiers, err := LoadTiers(path)
	if err != nil {
		t.Fatalf("LoadTiers: %v", err)
	}
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}
	if tiers[0].Label != "deep" || tiers[0].MinPlies != 12 {
		t.Fatalf("unexpected first tier: %+v", tiers[0])
	}
	if tiers[1].PerPlyBudgetMs != 300 {
		t.Fatalf("unexpected budget: %d", tiers[1].PerPlyBudgetMs)
	}
}

func TestLoadTiersRejectsInvalidCascade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	data := `tiers:
  - label: a
    min_plies: 4
    max_plies: 8
    per_ply_budget_ms: 300
  - label: b
    min_plies: 6
    max_plies: 10
    per_ply_budget_ms: 300
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write tiers file: %v", err)
	}
	if _, err := LoadTiers(path); err == nil {
		t.Fatalf("expected cascade validation error")
	}
}
