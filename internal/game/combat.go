package game

import (
	"math"
)

// RandSource is the random source used for crit and dodge rolls.
// *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// LineOfSight reports whether from can see to
type LineOfSight func(from, to Vec3) bool

// AlwaysVisible is the default line-of-sight predicate
func AlwaysVisible(from, to Vec3) bool { return true }

// Combat constants
const (
	MuzzleOffset      = 0.6  // Projectiles spawn this far along the aim direction
	DefaultTargetCone = 30.0 // degrees
)

// DamageResult describes one damage application
type DamageResult struct {
	Raw          float64 `json:"raw"`
	Absorbed     float64 `json:"absorbed"`
	Final        float64 `json:"final"`   // after mitigation
	Applied      float64 `json:"applied"` // health actually removed
	Critical     bool    `json:"critical"`
	Dodged       bool    `json:"dodged"`
	Killed       bool    `json:"killed"`
	ShieldBroken bool    `json:"shieldBroken"`
}

// CombatEvent is emitted by the resolver for every notable outcome
type CombatEvent struct {
	Type    EventType
	Entity  EntityHandle
	Payload interface{}
}

// xpAward is experience queued for the progression phase
type xpAward struct {
	entity EntityHandle
	amount float64
}

// CombatResolver runs ability attempts and routes damage into pools,
// shields and progression. Gameplay failures are plain false returns.
type CombatResolver struct {
	entities    *Arena[*Entity]
	projectiles *ProjectileRegistry
	rng         RandSource
	los         LineOfSight
	sink        func(CombatEvent)

	pendingXP []xpAward
}

// NewCombatResolver creates a resolver over an entity arena and projectile registry
func NewCombatResolver(entities *Arena[*Entity], projectiles *ProjectileRegistry, rng RandSource) *CombatResolver {
	return &CombatResolver{
		entities:    entities,
		projectiles: projectiles,
		rng:         rng,
		los:         AlwaysVisible,
		pendingXP:   make([]xpAward, 0, 64),
	}
}

// SetLineOfSight replaces the line-of-sight predicate. nil restores the default.
func (c *CombatResolver) SetLineOfSight(fn LineOfSight) {
	if fn == nil {
		fn = AlwaysVisible
	}
	c.los = fn
}

// SetRand replaces the random source
func (c *CombatResolver) SetRand(rng RandSource) {
	c.rng = rng
}

// SetSink registers the combat event receiver
func (c *CombatResolver) SetSink(fn func(CombatEvent)) {
	c.sink = fn
}

func (c *CombatResolver) emit(t EventType, entity EntityHandle, payload interface{}) {
	if c.sink != nil {
		c.sink(CombatEvent{Type: t, Entity: entity, Payload: payload})
	}
}

func (c *CombatResolver) roll() float64 {
	if c.rng == nil {
		return 1
	}
	return c.rng.Float64()
}

// rollCrit scales damage by the crit multiplier on a successful roll
func (c *CombatResolver) rollCrit(attacker *Entity, damage float64) (float64, bool) {
	d := attacker.Derived()
	if c.roll() < d.CritChance {
		return damage * d.CritMultiplier, true
	}
	return damage, false
}

// rollDodge reports whether the target evades an incoming hit
func (c *CombatResolver) rollDodge(target *Entity) bool {
	return c.roll() < target.Derived().DodgeChance
}

// aim returns the spawn origin and direction for a ranged ability.
// A non-finite aim point or shooter position is rejected.
func aim(attacker *Entity, point *Vec3) (Vec3, Vec3, bool) {
	pos := attacker.Transform.Position
	dir := attacker.Transform.Forward
	if !pos.IsFinite() || (point != nil && !point.IsFinite()) {
		return Vec3{}, Vec3{}, false
	}
	if point != nil {
		if d := point.Sub(pos); !d.IsZero() {
			dir = d
		}
	}
	dir = dir.Normalize()
	if dir.IsZero() {
		dir = Vec3{X: 1}
	}
	return pos.Add(dir.Scale(MuzzleOffset)), dir, true
}

// fire spawns one projectile and counts it on the attacker's record.
// The ability table already holds the final damage and speed, so the
// category only supplies radius and color.
func (c *CombatResolver) fire(attacker *Entity, origin, dir Vec3, damage float64, spec AbilitySpec, crit bool) {
	h, ok := c.projectiles.spawn(origin, dir, damage, spec.Speed, spec.Lifetime, attacker.Handle, spec.Category)
	if !ok {
		return
	}
	if p, ok := c.projectiles.Get(h); ok {
		p.Critical = crit
		p.OwnerTeam = attacker.Team
	}
	attacker.Record.ProjectilesFired++
}

func (c *CombatResolver) abilityUsed(e *Entity, kind AbilityKind) {
	e.Pool.MarkCombat()
	c.emit(EventTypeAbility, e.Handle, AbilityPayload{Entity: e.Handle, Ability: kind})
}

// TryLaser fires a laser bolt at a point, or along the facing if point is nil
func (c *CombatResolver) TryLaser(attacker *Entity, point *Vec3) bool {
	spec := GetAbility(AbilityLaser)
	if !attacker.CanAttack() || c.projectiles.Capacity() < 1 {
		return false
	}
	origin, dir, ok := aim(attacker, point)
	if !ok {
		return false
	}
	if !attacker.Cooldowns.TryConsume(spec, attacker.cooldownMultiplier(), attacker.Pool) {
		return false
	}

	damage, crit := c.rollCrit(attacker, attacker.Derived().AttackDamage*spec.DamageMultiplier)
	c.fire(attacker, origin, dir, damage, spec, crit)
	c.abilityUsed(attacker, AbilityLaser)
	return true
}

// TryUltimate fires a fan of projectiles. All of them must fit in the registry.
func (c *CombatResolver) TryUltimate(attacker *Entity, point *Vec3) bool {
	spec := GetAbility(AbilityUltimate)
	if !attacker.CanAttack() || c.projectiles.Capacity() < spec.Count {
		return false
	}
	origin, dir, ok := aim(attacker, point)
	if !ok {
		return false
	}
	if !attacker.Cooldowns.TryConsume(spec, attacker.cooldownMultiplier(), attacker.Pool) {
		return false
	}

	damage, crit := c.rollCrit(attacker, attacker.Derived().AttackDamage*spec.DamageMultiplier)
	mid := float64(spec.Count-1) / 2
	for i := 0; i < spec.Count; i++ {
		d := dir.RotateY((float64(i) - mid) * spec.Spread)
		c.fire(attacker, origin, d, damage, spec, crit)
	}
	c.abilityUsed(attacker, AbilityUltimate)
	return true
}

// TryMelee strikes a target in range. A missing or stale target is a no-op.
func (c *CombatResolver) TryMelee(attacker *Entity, target EntityHandle) bool {
	if target.IsZero() || !attacker.CanAttack() {
		return false
	}
	victim, ok := c.entities.Get(target)
	if !ok || victim == attacker || !victim.IsAlive() {
		return false
	}

	spec := GetAbility(AbilityMelee)
	from, to := attacker.Position(), victim.Position()
	if from.Distance(to) > spec.Range || !c.los(from, to) {
		return false
	}
	if sameTeam(attacker.Team, victim.Team) {
		return false
	}
	if !attacker.Cooldowns.TryConsume(spec, attacker.cooldownMultiplier(), attacker.Pool) {
		return false
	}

	c.abilityUsed(attacker, AbilityMelee)
	victim.Pool.MarkCombat()
	if c.rollDodge(victim) {
		return true
	}
	damage, crit := c.rollCrit(attacker, attacker.Derived().AttackDamage*spec.DamageMultiplier)
	c.applyDamage(victim, damage, attacker.Handle, spec.Name, crit)
	return true
}

// SetShield raises or lowers the shield. Raising pays the activation cost.
func (c *CombatResolver) SetShield(e *Entity, on bool) bool {
	if !on {
		return e.Shield.Deactivate()
	}
	if !e.IsAlive() || !e.Shield.CanActivate(true) {
		return false
	}
	spec := GetAbility(AbilityShield)
	if !e.Cooldowns.TryConsume(spec, e.cooldownMultiplier(), e.Pool) {
		return false
	}
	e.Shield.Activate(true)
	c.abilityUsed(e, AbilityShield)
	return true
}

// TryTeleport relocates instantly toward target. Requests beyond range
// land at max range along the same direction. Non-finite targets are rejected.
func (c *CombatResolver) TryTeleport(e *Entity, target Vec3) bool {
	if !e.CanTeleport() || !target.IsFinite() {
		return false
	}
	from := e.Position()
	delta := target.Sub(from)
	dist := delta.Length()
	if !isFinite(dist) || dist < 1e-6 {
		return false
	}
	if maxRange := e.Derived().TeleportRange; dist > maxRange {
		delta = delta.Scale(maxRange / dist)
	}

	spec := GetAbility(AbilityTeleport)
	if !e.Cooldowns.TryConsume(spec, e.cooldownMultiplier(), e.Pool) {
		return false
	}
	e.consumeTeleportCharge()
	e.Transform.Position = from.Add(delta)

	c.abilityUsed(e, AbilityTeleport)
	c.emit(EventTypeTeleport, e.Handle, TeleportPayload{
		Entity:  e.Handle,
		From:    from,
		To:      e.Transform.Position,
		Charges: e.TeleportCharges(),
	})
	return true
}

// AllocateStatPoint spends an unspent point on the named attribute
func (c *CombatResolver) AllocateStatPoint(e *Entity, attribute string) bool {
	if !e.IsAlive() {
		return false
	}
	return e.Ledger.AllocateStatPoint(ParseAttribute(attribute))
}

// OnProjectileHit routes a projectile strike into damage
func (c *CombatResolver) OnProjectileHit(p *Projectile, target EntityHandle) {
	victim, ok := c.entities.Get(target)
	if !ok || !victim.IsAlive() {
		return
	}
	if owner, ok := c.entities.Get(p.Owner); ok {
		owner.Record.ProjectilesHit++
	}

	c.emit(EventTypeProjectileHit, p.Owner, ProjectileHitPayload{
		Projectile: p.Handle,
		Owner:      p.Owner,
		Victim:     target,
		Category:   p.Category,
	})

	victim.Pool.MarkCombat()
	if c.rollDodge(victim) {
		return
	}
	c.applyDamage(victim, p.Damage, p.Owner, p.Category.String(), p.Critical)
}

// ApplyDamage applies raw damage through shield and defense mitigation.
// attacker may be zero or stale; such damage grants no experience.
func (c *CombatResolver) ApplyDamage(target *Entity, raw float64, attacker EntityHandle) DamageResult {
	return c.applyDamage(target, raw, attacker, "direct", false)
}

func (c *CombatResolver) applyDamage(target *Entity, raw float64, attackerHandle EntityHandle, source string, crit bool) DamageResult {
	res := DamageResult{Raw: raw, Critical: crit}
	if !target.IsAlive() || raw <= 0 || math.IsNaN(raw) {
		return res
	}

	attacker, hasAttacker := c.entities.Get(attackerHandle)
	if hasAttacker && attacker == target {
		hasAttacker = false
	}

	target.Pool.MarkCombat()
	if hasAttacker {
		attacker.Pool.MarkCombat()
	}

	absorbed, broke := target.Shield.Absorb(raw)
	res.Absorbed = absorbed
	res.ShieldBroken = broke
	if broke {
		c.emit(EventTypeShieldBreak, target.Handle, ShieldBreakPayload{Entity: target.Handle, Attacker: attackerHandle})
	}

	remaining := raw - absorbed
	if remaining <= 0 {
		return res
	}

	res.Final = remaining * MitigationMultiplier(target.Attributes().Defense)
	res.Applied = target.Pool.Damage(res.Final)

	target.Record.DamageTaken += res.Applied
	if hasAttacker {
		attacker.Record.DamageDealt += res.Applied
		c.queueXP(attacker.Handle, res.Applied*XPPerDamage)
	}

	if target.Pool.Current(ResourceHealth) <= 0 {
		res.Killed = true
		target.die()
		if hasAttacker {
			attacker.Record.Kills++
			c.queueXP(attacker.Handle, KillXP)
		}
	}

	c.emit(EventTypeDamage, attackerHandle, DamagePayload{
		Attacker:     attackerHandle,
		Victim:       target.Handle,
		Source:       source,
		Raw:          raw,
		Absorbed:     absorbed,
		Final:        res.Final,
		VictimHealth: target.Pool.Current(ResourceHealth),
		Critical:     crit,
	})

	if res.Killed {
		payload := KillPayload{Killer: attackerHandle, Victim: target.Handle, VictimDeaths: target.Record.Deaths}
		if hasAttacker {
			payload.KillerKills = attacker.Record.Kills
		}
		c.emit(EventTypeKill, attackerHandle, payload)
	}

	return res
}

func (c *CombatResolver) queueXP(h EntityHandle, amount float64) {
	if amount > 0 {
		c.pendingXP = append(c.pendingXP, xpAward{entity: h, amount: amount})
	}
}

// ApplyProgression grants all queued experience. Entities removed since
// the award was queued are skipped.
func (c *CombatResolver) ApplyProgression() {
	for _, award := range c.pendingXP {
		e, ok := c.entities.Get(award.entity)
		if !ok {
			continue
		}
		levels := e.Ledger.AddExperience(award.amount)
		if levels == 0 {
			continue
		}
		p := e.Progression()
		c.emit(EventTypeLevelUp, e.Handle, LevelUpPayload{
			Entity:     e.Handle,
			Level:      p.Level,
			StatPoints: p.UnspentStatPoints,
		})
	}
	c.pendingXP = c.pendingXP[:0]
}

// PendingExperience returns the total experience queued for an entity
func (c *CombatResolver) PendingExperience(h EntityHandle) float64 {
	total := 0.0
	for _, award := range c.pendingXP {
		if award.entity == h {
			total += award.amount
		}
	}
	return total
}

func sameTeam(a, b string) bool {
	return a != "" && a == b
}

// FindNearestEnemy returns the closest alive non-teammate within maxRange
func (c *CombatResolver) FindNearestEnemy(from *Entity, maxRange float64) (EntityHandle, bool) {
	var best EntityHandle
	bestDist := math.Inf(1)
	c.entities.Each(func(h EntityHandle, e *Entity) bool {
		if e == from || !e.IsAlive() || sameTeam(from.Team, e.Team) {
			return true
		}
		d := from.Position().Distance(e.Position())
		if d <= maxRange && d < bestDist {
			best, bestDist = h, d
		}
		return true
	})
	return best, !best.IsZero()
}

// FindTargetInDirection returns the closest alive enemy inside a cone
// of coneDegrees (half-angle) around dir
func (c *CombatResolver) FindTargetInDirection(from *Entity, dir Vec3, maxRange, coneDegrees float64) (EntityHandle, bool) {
	dir = dir.Normalize()
	if dir.IsZero() {
		return EntityHandle{}, false
	}
	minCos := math.Cos(coneDegrees * math.Pi / 180)

	var best EntityHandle
	bestDist := math.Inf(1)
	c.entities.Each(func(h EntityHandle, e *Entity) bool {
		if e == from || !e.IsAlive() || sameTeam(from.Team, e.Team) {
			return true
		}
		to := e.Position().Sub(from.Position())
		d := to.Length()
		if d > maxRange || d < 1e-9 {
			return true
		}
		if to.Scale(1/d).Dot(dir) >= minCos && d < bestDist {
			best, bestDist = h, d
		}
		return true
	})
	return best, !best.IsZero()
}
