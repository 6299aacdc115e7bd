package game

import "math"

// Progression constants
const (
	StartingExperienceToNext = 100
	ExperienceGrowth         = 1.2
	StatPointsPerLevel       = 3
	AttributesPerLevel       = 1.0
	XPPerDamage              = 0.5
	KillXP                   = 50.0
	maxLevelsPerGrant        = 1000
)

// Progression is the level state of a combatant
type Progression struct {
	Level             int     `json:"level"`
	Experience        float64 `json:"experience"`
	ExperienceToNext  float64 `json:"experienceToNext"`
	UnspentStatPoints int     `json:"unspentStatPoints"`
}

// NewProgression returns level 1 with no experience
func NewProgression() Progression {
	return Progression{
		Level:            1,
		ExperienceToNext: StartingExperienceToNext,
	}
}

// ProgressionLedger owns a combatant's experience, attributes and derived stats.
// Every attribute change goes through it so derived stats never go stale.
type ProgressionLedger struct {
	progress   Progression
	attributes Attributes
	derived    DerivedStats
	pool       *ResourcePool
}

// NewProgressionLedger creates a level 1 ledger bound to a resource pool
func NewProgressionLedger(attrs Attributes, pool *ResourcePool) *ProgressionLedger {
	l := &ProgressionLedger{
		progress:   NewProgression(),
		attributes: attrs,
		pool:       pool,
	}
	l.recalculate()
	return l
}

func (l *ProgressionLedger) Progression() Progression { return l.progress }
func (l *ProgressionLedger) Attributes() Attributes { return l.attributes }
func (l *ProgressionLedger) Derived() DerivedStats { return l.derived }

// recalculate refreshes derived stats and re-clamps the pool maximums
func (l *ProgressionLedger) recalculate() {
	l.derived = RecalculateDerived(l.attributes)
	if l.pool != nil {
		l.pool.ApplyMax(l.derived)
	}
}

// AddExperience accumulates experience and returns the number of levels gained.
// A single grant may cross several thresholds.
func (l *ProgressionLedger) AddExperience(amount float64) int {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	l.progress.Experience += amount

	levels := 0
	for l.progress.Experience >= l.progress.ExperienceToNext && levels < maxLevelsPerGrant {
		l.progress.Experience -= l.progress.ExperienceToNext
		l.levelUp()
		levels++
	}
	return levels
}

// levelUp grants attributes and stat points and restores vitals to the new max
func (l *ProgressionLedger) levelUp() {
	l.progress.Level++
	l.progress.UnspentStatPoints += StatPointsPerLevel
	l.progress.ExperienceToNext = math.Round(l.progress.ExperienceToNext * ExperienceGrowth)
	l.attributes.AddAll(AttributesPerLevel)
	l.recalculate()
	if l.pool != nil {
		l.pool.Fill()
	}
}

// AllocateStatPoint spends one unspent point on an attribute
func (l *ProgressionLedger) AllocateStatPoint(attr Attribute) bool {
	if l.progress.UnspentStatPoints <= 0 {
		return false
	}
	if !l.attributes.Add(attr, 1) {
		return false
	}
	l.progress.UnspentStatPoints--
	l.recalculate()
	return true
}

// ExperiencePercent returns progress toward the next level in [0,1]
func (l *ProgressionLedger) ExperiencePercent() float64 {
	if l.progress.ExperienceToNext <= 0 {
		return 0
	}
	return math.Min(1, l.progress.Experience/l.progress.ExperienceToNext)
}
