package game

import (
	"math"
	"testing"
)

func newTestPool() *ResourcePool {
	return NewResourcePool(RecalculateDerived(DefaultAttributes()))
}

// TestResourcePoolDefaults verifies maximums derived from base attributes
func TestResourcePoolDefaults(t *testing.T) {
	pool := newTestPool()

	tests := []struct {
		kind ResourceKind
		want float64
	}{
		{ResourceHealth, 150},
		{ResourceStamina, 130},
		{ResourceMana, 120},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if pool.Max(tt.kind) != tt.want {
				t.Errorf("Expected max %v, got %v", tt.want, pool.Max(tt.kind))
			}
			if pool.Current(tt.kind) != tt.want {
				t.Errorf("Expected full pool %v, got %v", tt.want, pool.Current(tt.kind))
			}
			if pool.Percent(tt.kind) != 1 {
				t.Errorf("Expected percent 1, got %v", pool.Percent(tt.kind))
			}
		})
	}
}

// TestSpendAllIsAtomic verifies a failed multi-cost spend mutates nothing
func TestSpendAllIsAtomic(t *testing.T) {
	pool := newTestPool()
	pool.Spend(ResourceMana, 80) // 40 left

	costs := []Cost{
		{Kind: ResourceMana, Amount: 50},
		{Kind: ResourceStamina, Amount: 30},
	}

	if pool.CanAfford(costs) {
		t.Fatal("CanAfford should fail with 40 mana")
	}
	if pool.SpendAll(costs) {
		t.Fatal("SpendAll should fail with 40 mana")
	}
	if pool.Current(ResourceMana) != 40 {
		t.Errorf("Expected mana 40, got %v", pool.Current(ResourceMana))
	}
	if pool.Current(ResourceStamina) != 130 {
		t.Errorf("Expected stamina untouched at 130, got %v", pool.Current(ResourceStamina))
	}

	pool.Restore(ResourceMana, 100)
	if !pool.SpendAll(costs) {
		t.Fatal("SpendAll should succeed with full mana")
	}
	if pool.Current(ResourceMana) != 70 || pool.Current(ResourceStamina) != 100 {
		t.Errorf("Expected mana 70 stamina 100, got %v/%v",
			pool.Current(ResourceMana), pool.Current(ResourceStamina))
	}
}

// TestCanAffordSumsSameKind verifies duplicate kinds are checked together
func TestCanAffordSumsSameKind(t *testing.T) {
	pool := newTestPool()
	pool.Spend(ResourceMana, 100) // 20 left

	costs := []Cost{
		{Kind: ResourceMana, Amount: 15},
		{Kind: ResourceMana, Amount: 15},
	}
	if pool.CanAfford(costs) {
		t.Error("Two 15 mana costs should not fit in 20 mana")
	}
}

// TestResourceClamping covers spend, restore and damage bounds
func TestResourceClamping(t *testing.T) {
	pool := newTestPool()

	if pool.Spend(ResourceStamina, 200) {
		t.Error("Overspend should fail")
	}
	if pool.Spend(ResourceStamina, -5) {
		t.Error("Negative spend should fail")
	}

	applied := pool.Damage(1000)
	if applied != 150 {
		t.Errorf("Expected 150 damage applied, got %v", applied)
	}
	if pool.Current(ResourceHealth) != 0 {
		t.Errorf("Expected health floored at 0, got %v", pool.Current(ResourceHealth))
	}

	pool.Restore(ResourceHealth, 1000)
	if pool.Current(ResourceHealth) != 150 {
		t.Errorf("Expected health capped at 150, got %v", pool.Current(ResourceHealth))
	}

	pool.SetMax(ResourceHealth, 100)
	if pool.Current(ResourceHealth) != 100 {
		t.Errorf("Expected health clamped to new max 100, got %v", pool.Current(ResourceHealth))
	}
}

// TestRegenerationCombatGate verifies health regen pauses while in combat
func TestRegenerationCombatGate(t *testing.T) {
	attrs := DefaultAttributes()
	derived := RecalculateDerived(attrs)
	pool := NewResourcePool(derived)
	pool.Damage(50)
	pool.Spend(ResourceStamina, 100)

	pool.MarkCombat()
	pool.RegenerateAll(attrs, derived, 1)
	if pool.Current(ResourceHealth) != 100 {
		t.Errorf("Expected no health regen in combat, got %v", pool.Current(ResourceHealth))
	}
	if pool.Current(ResourceStamina) != 50 {
		t.Errorf("Expected stamina 30+20, got %v", pool.Current(ResourceStamina))
	}

	pool.TickCombat(CombatTimeout)
	if pool.InCombat() {
		t.Fatal("Combat flag should clear after timeout")
	}
	pool.RegenerateAll(attrs, derived, 1)
	want := 100 + HealthRegenPerSecond*derived.HealingBonus
	if math.Abs(pool.Current(ResourceHealth)-want) > 1e-9 {
		t.Errorf("Expected health %v, got %v", want, pool.Current(ResourceHealth))
	}
}
