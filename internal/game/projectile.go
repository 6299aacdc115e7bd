package game

import "arena-sim/internal/game/spatial"

// ProjectileCategory tags a projectile variant in the category table
type ProjectileCategory int

const (
	CategoryLaser ProjectileCategory = iota
	CategoryMelee
	CategoryRocket
	CategoryEnergyBall
	CategoryUltimate
)

// CategorySpec holds the per-category projectile tunables
type CategorySpec struct {
	Name             string  `json:"name"`
	Radius           float64 `json:"radius"`
	SpeedMultiplier  float64 `json:"speedMultiplier"`
	DamageMultiplier float64 `json:"damageMultiplier"`
	Color            string  `json:"color"`
}

// ProjectileCategories is the category table
var ProjectileCategories = map[ProjectileCategory]CategorySpec{
	CategoryLaser:      {Name: "laser", Radius: 0.2, SpeedMultiplier: 1, DamageMultiplier: 1, Color: "#00ffff"},
	CategoryMelee:      {Name: "melee", Radius: 0.5, SpeedMultiplier: 1, DamageMultiplier: 1, Color: "#ffeb3b"},
	CategoryRocket:     {Name: "rocket", Radius: 0.3, SpeedMultiplier: 0.8, DamageMultiplier: 1.5, Color: "#ff9800"},
	CategoryEnergyBall: {Name: "energy_ball", Radius: 0.4, SpeedMultiplier: 1, DamageMultiplier: 1, Color: "#9c27b0"},
	CategoryUltimate:   {Name: "ultimate", Radius: 0.5, SpeedMultiplier: 1.2, DamageMultiplier: 2, Color: "#ff00ff"},
}

// GetCategory returns the spec for a category, defaults to the laser
func GetCategory(c ProjectileCategory) CategorySpec {
	if s, ok := ProjectileCategories[c]; ok {
		return s
	}
	return ProjectileCategories[CategoryLaser]
}

func (c ProjectileCategory) String() string {
	return GetCategory(c).Name
}

// MarshalText encodes the category by name
func (c ProjectileCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Projectile system constants
const (
	DefaultMaxProjectiles = 512
	EntityRadius          = 0.5 // Combatant hit radius
	GroundPlaneY          = 0.0
	broadPhaseCellSize    = 4.0
	broadPhaseHalfExtent  = 64.0
)

// Projectile is a travelling damage carrier.
// Owner is a non-owning handle and may go stale while the projectile flies.
type Projectile struct {
	Handle    ProjectileHandle
	Owner     EntityHandle
	OwnerTeam string
	Category  ProjectileCategory

	Position Vec3
	Velocity Vec3

	Damage   float64
	Lifetime float64 // seconds remaining
	Radius   float64
	Color    string
	Critical bool

	Active bool
}

// ProjectileView is an immutable copy of projectile state for rendering
type ProjectileView struct {
	Handle   ProjectileHandle   `json:"handle"`
	Owner    EntityHandle       `json:"owner"`
	Category ProjectileCategory `json:"category"`
	Position Vec3               `json:"position"`
	Radius   float64            `json:"radius"`
	Color    string             `json:"color"`
}

// ToView creates an immutable snapshot for rendering
func (p *Projectile) ToView() ProjectileView {
	return ProjectileView{
		Handle:   p.Handle,
		Owner:    p.Owner,
		Category: p.Category,
		Position: p.Position,
		Radius:   p.Radius,
		Color:    p.Color,
	}
}

// HitTarget is a combatant the registry may collide with this tick
type HitTarget struct {
	Handle   EntityHandle
	Team     string
	Position Vec3
	Alive    bool
}

// HitFunc is called once per projectile that strikes a target
type HitFunc func(p *Projectile, target EntityHandle)

// ProjectileRegistry owns every live projectile
type ProjectileRegistry struct {
	arena *Arena[*Projectile]
	live  []*Projectile
	max   int
	grid  *spatial.Grid // broad phase, rebuilt from targets each tick
}

// NewProjectileRegistry creates a registry capped at max live projectiles
func NewProjectileRegistry(max int) *ProjectileRegistry {
	if max <= 0 {
		max = DefaultMaxProjectiles
	}
	return &ProjectileRegistry{
		arena: NewArena[*Projectile](max),
		live:  make([]*Projectile, 0, max),
		max:   max,
		grid:  spatial.NewGrid(broadPhaseHalfExtent, broadPhaseCellSize, DefaultLimits.MaxEntities),
	}
}

// Capacity returns how many more projectiles can be spawned
func (r *ProjectileRegistry) Capacity() int {
	return r.max - len(r.live)
}

// Count returns the number of live projectiles
func (r *ProjectileRegistry) Count() int {
	return len(r.live)
}

// Spawn creates a projectile travelling along direction.
// Speed and damage are scaled by the category table. Fails when the registry
// is full or any input is non-finite.
func (r *ProjectileRegistry) Spawn(origin, direction Vec3, damage, speed, lifetime float64, owner EntityHandle, category ProjectileCategory) (ProjectileHandle, bool) {
	spec := GetCategory(category)
	return r.spawn(origin, direction, damage*spec.DamageMultiplier, speed*spec.SpeedMultiplier, lifetime, owner, category)
}

// spawn inserts a projectile with final damage and speed. The category
// supplies only radius and color.
func (r *ProjectileRegistry) spawn(origin, direction Vec3, damage, speed, lifetime float64, owner EntityHandle, category ProjectileCategory) (ProjectileHandle, bool) {
	if len(r.live) >= r.max || lifetime <= 0 {
		return ProjectileHandle{}, false
	}
	if !origin.IsFinite() || !direction.IsFinite() || !isFinite(damage) || !isFinite(speed) {
		return ProjectileHandle{}, false
	}

	spec := GetCategory(category)
	dir := direction.Normalize()
	if dir.IsZero() {
		dir = Vec3{X: 1}
	}

	p := &Projectile{
		Owner:    owner,
		Category: category,
		Position: origin,
		Velocity: dir.Scale(speed),
		Damage:   damage,
		Lifetime: lifetime,
		Radius:   spec.Radius,
		Color:    spec.Color,
		Active:   true,
	}
	p.Handle = r.arena.Insert(p)
	r.live = append(r.live, p)
	return p.Handle, true
}

// Get returns a live projectile by handle
func (r *ProjectileRegistry) Get(h ProjectileHandle) (*Projectile, bool) {
	return r.arena.Get(h)
}

// Tick moves projectiles, resolves hits, and retires spent ones.
// Removal happens in a single compaction pass at the end.
func (r *ProjectileRegistry) Tick(dt float64, targets []HitTarget, onHit HitFunc) (hits int) {
	if dt <= 0 {
		return 0
	}

	r.grid.Clear()
	for i, t := range targets {
		r.grid.Insert(uint32(i), t.Position.X, t.Position.Z)
	}

	for _, p := range r.live {
		if !p.Active {
			continue
		}

		p.Position = p.Position.Add(p.Velocity.Scale(dt))
		p.Lifetime -= dt

		if target, ok := r.findHit(p, targets); ok {
			if onHit != nil {
				onHit(p, target)
			}
			p.Active = false
			hits++
			continue
		}

		if p.Lifetime <= 0 || p.Position.Y < GroundPlaneY {
			p.Active = false
		}
	}

	r.compact()
	return hits
}

// findHit returns the alive non-owner target with the lowest index within reach.
// Targets may be updated by onHit between calls.
func (r *ProjectileRegistry) findHit(p *Projectile, targets []HitTarget) (EntityHandle, bool) {
	reach := p.Radius + EntityRadius
	best := -1
	for _, i := range r.grid.QueryRadius(p.Position.X, p.Position.Z, reach) {
		if best >= 0 && int(i) >= best {
			continue
		}
		t := targets[i]
		if !t.Alive || t.Handle == p.Owner || sameTeam(p.OwnerTeam, t.Team) {
			continue
		}
		if p.Position.Distance(t.Position) <= reach {
			best = int(i)
		}
	}
	if best < 0 {
		return EntityHandle{}, false
	}
	return targets[best].Handle, true
}

// compact drops inactive projectiles in place (zero-allocation filtering)
func (r *ProjectileRegistry) compact() {
	n := 0
	for _, p := range r.live {
		if p.Active {
			r.live[n] = p
			n++
			continue
		}
		r.arena.Remove(p.Handle)
	}
	for i := n; i < len(r.live); i++ {
		r.live[i] = nil
	}
	r.live = r.live[:n]
}

// Live returns views of all live projectiles
func (r *ProjectileRegistry) Live() []ProjectileView {
	views := make([]ProjectileView, 0, len(r.live))
	for _, p := range r.live {
		views = append(views, p.ToView())
	}
	return views
}

// AppendViews appends views to dst up to limit entries
func (r *ProjectileRegistry) AppendViews(dst []ProjectileView, limit int) []ProjectileView {
	for _, p := range r.live {
		if len(dst) >= limit {
			break
		}
		dst = append(dst, p.ToView())
	}
	return dst
}

// Clear retires every projectile
func (r *ProjectileRegistry) Clear() {
	for _, p := range r.live {
		p.Active = false
	}
	r.compact()
}
