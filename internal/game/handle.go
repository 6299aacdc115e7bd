package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidHandle is returned when a handle string cannot be parsed
var ErrInvalidHandle = errors.New("invalid handle")

// Handle is a generational index into an arena.
// Generation 0 is never issued, so the zero Handle is always invalid.
type Handle struct {
	Index      uint32
	Generation uint32
}

// EntityHandle identifies a combatant in the engine's entity arena
type EntityHandle = Handle

// ProjectileHandle identifies a projectile in the registry's arena
type ProjectileHandle = Handle

// IsZero reports whether the handle was never issued
func (h Handle) IsZero() bool {
	return h.Generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

// MarshalText encodes the handle as "index:generation"
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses "index:generation"
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHandle parses the "index:generation" text form
func ParseHandle(s string) (Handle, error) {
	idx, gen, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Handle{}, errors.Wrapf(ErrInvalidHandle, "%q", s)
	}
	i, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return Handle{}, errors.Wrapf(ErrInvalidHandle, "index %q", idx)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil || g == 0 {
		return Handle{}, errors.Wrapf(ErrInvalidHandle, "generation %q", gen)
	}
	return Handle{Index: uint32(i), Generation: uint32(g)}, nil
}

// arenaSlot holds one value plus its generation
type arenaSlot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena stores values addressed by generational handles.
// Freed slots are reused; reuse bumps the generation so stale handles miss.
type Arena[T any] struct {
	slots []arenaSlot[T]
	free  []uint32
	count int
}

// NewArena creates an arena with the given initial capacity
func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]arenaSlot[T], 0, capacity),
	}
}

// Insert stores a value and returns its handle
func (a *Arena[T]) Insert(value T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, arenaSlot[T]{})
	}

	slot := &a.slots[idx]
	slot.generation++
	slot.value = value
	slot.live = true
	a.count++

	return Handle{Index: idx, Generation: slot.generation}
}

// Get returns the value for a live handle
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Index) >= len(a.slots) {
		return zero, false
	}
	slot := &a.slots[h.Index]
	if !slot.live || slot.generation != h.Generation {
		return zero, false
	}
	return slot.value, true
}

// Contains reports whether the handle refers to a live value
func (a *Arena[T]) Contains(h Handle) bool {
	_, ok := a.Get(h)
	return ok
}

// Remove frees the slot behind a live handle
func (a *Arena[T]) Remove(h Handle) bool {
	if !a.Contains(h) {
		return false
	}
	slot := &a.slots[h.Index]
	var zero T
	slot.value = zero
	slot.live = false
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// Len returns the number of live values
func (a *Arena[T]) Len() int {
	return a.count
}

// Each visits live values in index order. Returning false stops iteration.
func (a *Arena[T]) Each(fn func(h Handle, value T) bool) {
	for i := range a.slots {
		slot := &a.slots[i]
		if !slot.live {
			continue
		}
		if !fn(Handle{Index: uint32(i), Generation: slot.generation}, slot.value) {
			return
		}
	}
}
