package game

import (
	"testing"

	"github.com/pkg/errors"
)

// TestArenaGenerations verifies stale handles miss after slot reuse
func TestArenaGenerations(t *testing.T) {
	arena := NewArena[string](4)

	a := arena.Insert("alpha")
	b := arena.Insert("beta")
	if arena.Len() != 2 {
		t.Fatalf("Expected 2 values, got %d", arena.Len())
	}

	if !arena.Remove(a) {
		t.Fatal("Remove of live handle should succeed")
	}
	if arena.Remove(a) {
		t.Error("Second Remove of same handle should fail")
	}

	c := arena.Insert("gamma")
	if c.Index != a.Index {
		t.Errorf("Expected slot %d to be reused, got %d", a.Index, c.Index)
	}
	if c.Generation == a.Generation {
		t.Error("Reused slot should bump generation")
	}

	if _, ok := arena.Get(a); ok {
		t.Error("Stale handle should not resolve")
	}
	if v, ok := arena.Get(c); !ok || v != "gamma" {
		t.Errorf("Expected gamma, got %q (ok=%v)", v, ok)
	}
	if v, ok := arena.Get(b); !ok || v != "beta" {
		t.Errorf("Expected beta, got %q (ok=%v)", v, ok)
	}
	if _, ok := arena.Get(Handle{}); ok {
		t.Error("Zero handle should never resolve")
	}
}

// TestArenaEachOrder verifies iteration follows slot order and can stop early
func TestArenaEachOrder(t *testing.T) {
	arena := NewArena[int](4)
	for i := 0; i < 4; i++ {
		arena.Insert(i)
	}

	var seen []int
	arena.Each(func(_ Handle, v int) bool {
		seen = append(seen, v)
		return v < 2
	})

	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("Expected [0 1 2], got %v", seen)
	}
}

// TestParseHandle covers the text form
func TestParseHandle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Handle
		wantErr bool
	}{
		{"simple", "3:7", Handle{Index: 3, Generation: 7}, false},
		{"whitespace", " 0:1 ", Handle{Index: 0, Generation: 1}, false},
		{"missing colon", "37", Handle{}, true},
		{"zero generation", "1:0", Handle{}, true},
		{"negative", "-1:2", Handle{}, true},
		{"garbage", "a:b", Handle{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHandle(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.input)
				}
				if errors.Cause(err) != ErrInvalidHandle {
					t.Errorf("Expected ErrInvalidHandle cause, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if got.String() != tt.want.String() {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
