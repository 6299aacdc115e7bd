package game

import "sort"

// CombatRecord tracks an entity's lifetime combat statistics
type CombatRecord struct {
	Kills            int     `json:"kills"`
	Deaths           int     `json:"deaths"`
	DamageDealt      float64 `json:"damageDealt"`
	DamageTaken      float64 `json:"damageTaken"`
	ProjectilesFired int     `json:"projectilesFired"`
	ProjectilesHit   int     `json:"projectilesHit"`
}

// Accuracy returns hits per projectile fired, or 0 if none were fired
func (r CombatRecord) Accuracy() float64 {
	if r.ProjectilesFired == 0 {
		return 0
	}
	return float64(r.ProjectilesHit) / float64(r.ProjectilesFired)
}

// ScoreEntry is one row of the scoreboard
type ScoreEntry struct {
	Rank     int          `json:"rank"`
	Handle   EntityHandle `json:"handle"`
	Name     string       `json:"name"`
	Level    int          `json:"level"`
	Record   CombatRecord `json:"record"`
	Accuracy float64      `json:"accuracy"`
}

// RankEntities orders entities by kills, then damage dealt, then name.
// limit <= 0 returns every entry.
func RankEntities(entities []*Entity, limit int) []ScoreEntry {
	sorted := make([]*Entity, len(entities))
	copy(sorted, entities)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Record, sorted[j].Record
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		if a.DamageDealt != b.DamageDealt {
			return a.DamageDealt > b.DamageDealt
		}
		return sorted[i].Name < sorted[j].Name
	})

	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}

	entries := make([]ScoreEntry, 0, limit)
	for i := 0; i < limit; i++ {
		e := sorted[i]
		entries = append(entries, ScoreEntry{
			Rank:     i + 1,
			Handle:   e.Handle,
			Name:     e.Name,
			Level:    e.Progression().Level,
			Record:   e.Record,
			Accuracy: e.Record.Accuracy(),
		})
	}
	return entries
}
