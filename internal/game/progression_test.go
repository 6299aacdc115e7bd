package game

import "testing"

// TestAddExperienceMultiLevel verifies a single grant crossing two thresholds
func TestAddExperienceMultiLevel(t *testing.T) {
	pool := &ResourcePool{}
	ledger := NewProgressionLedger(DefaultAttributes(), pool)
	pool.Fill()
	pool.Damage(100)

	levels := ledger.AddExperience(250)
	p := ledger.Progression()

	if levels != 2 {
		t.Errorf("Expected 2 levels, got %d", levels)
	}
	if p.Level != 3 {
		t.Errorf("Expected level 3, got %d", p.Level)
	}
	if p.Experience != 30 {
		t.Errorf("Expected 30 experience carried over, got %v", p.Experience)
	}
	if p.ExperienceToNext != 144 {
		t.Errorf("Expected 144 to next, got %v", p.ExperienceToNext)
	}
	if p.UnspentStatPoints != 2*StatPointsPerLevel {
		t.Errorf("Expected %d stat points, got %d", 2*StatPointsPerLevel, p.UnspentStatPoints)
	}

	attrs := ledger.Attributes()
	if attrs.Strength != 12 || attrs.Agility != 12 {
		t.Errorf("Expected attributes raised to 12, got %+v", attrs)
	}

	if pool.Current(ResourceHealth) != pool.Max(ResourceHealth) {
		t.Errorf("Level up should restore health, got %v/%v",
			pool.Current(ResourceHealth), pool.Max(ResourceHealth))
	}
	if pool.Max(ResourceHealth) != 160 {
		t.Errorf("Expected max health 160 at stamina 12, got %v", pool.Max(ResourceHealth))
	}
}

// TestAddExperienceRejectsBadInput covers non-positive grants
func TestAddExperienceRejectsBadInput(t *testing.T) {
	ledger := NewProgressionLedger(DefaultAttributes(), nil)

	for _, amount := range []float64{0, -10} {
		if levels := ledger.AddExperience(amount); levels != 0 {
			t.Errorf("Expected no levels for %v, got %d", amount, levels)
		}
	}
	if ledger.Progression().Experience != 0 {
		t.Errorf("Expected no experience, got %v", ledger.Progression().Experience)
	}
}

// TestAllocateStatPoint verifies points are spent and derived stats refresh
func TestAllocateStatPoint(t *testing.T) {
	pool := &ResourcePool{}
	ledger := NewProgressionLedger(DefaultAttributes(), pool)
	pool.Fill()

	if ledger.AllocateStatPoint(AttrStamina) {
		t.Fatal("Allocation without points should fail")
	}

	ledger.AddExperience(100)
	before := ledger.Derived().MaxHealth

	if !ledger.AllocateStatPoint(AttrStamina) {
		t.Fatal("Allocation with points should succeed")
	}
	if ledger.Derived().MaxHealth != before+5 {
		t.Errorf("Expected max health %v, got %v", before+5, ledger.Derived().MaxHealth)
	}
	if ledger.Progression().UnspentStatPoints != StatPointsPerLevel-1 {
		t.Errorf("Expected %d points left, got %d", StatPointsPerLevel-1, ledger.Progression().UnspentStatPoints)
	}

	if ledger.AllocateStatPoint(AttrUnknown) {
		t.Error("Unknown attribute should be rejected")
	}
	if ledger.Progression().UnspentStatPoints != StatPointsPerLevel-1 {
		t.Error("Rejected allocation should not spend a point")
	}
}

// TestDerivedStats spot-checks the attribute formulas
func TestDerivedStats(t *testing.T) {
	d := RecalculateDerived(Attributes{Strength: 20, Defense: 100, Stamina: 10, Agility: 200})

	if d.AttackDamage != 50 {
		t.Errorf("Expected attack 50, got %v", d.AttackDamage)
	}
	if d.CritChance != MaxCritChance {
		t.Errorf("Expected crit capped at %v, got %v", MaxCritChance, d.CritChance)
	}
	if d.DodgeChance != MaxDodgeChance {
		t.Errorf("Expected dodge capped at %v, got %v", MaxDodgeChance, d.DodgeChance)
	}
	if d.DamageReduction != 0.5 {
		t.Errorf("Expected 50%% reduction at 100 defense, got %v", d.DamageReduction)
	}
	if d.CooldownMultiplier != MinCooldownFactor {
		t.Errorf("Expected cooldown floor, got %v", d.CooldownMultiplier)
	}
}
