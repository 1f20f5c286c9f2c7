// Package regfile provides the register file of the three-address machine: a fixed
// pool of temporary registers plus the dedicated return-value, flag and link registers.
package regfile

import (
	"errors"
	"fmt"
	"sort"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Register is a named storage location of the three-address machine.
type Register struct {
	id   int    // Index of the register within its class.
	typ  int    // Register class, one of Temporary, ReturnValue, Flag or Link.
	name string // Textual name used in listings.
}

// RegisterFile hands out the temporaries used while flattening expressions.
// Dedicated registers are never allocated and are named directly by EAX, FL and LR.
type RegisterFile interface {
	Acquire() (Register, error) // Returns the lexicographically smallest free temporary and marks it in use.
	Release(r Register)         // Marks temporary r as free. Non-temporaries and free registers are ignored.
}

// Pool is the RegisterFile implementation. A Pool is used by one generation pass at a time.
type Pool struct {
	temps []Register   // Temporaries sorted by name.
	used  map[int]bool // In-use flags indexed by temporary id.
	high  int          // Largest number of temporaries simultaneously in use.
}

// Mark is a snapshot of the temporaries in use, taken by Pool.Mark.
type Mark struct {
	used map[int]bool
}

// ---------------------
// ----- Constants -----
// ---------------------

// Register classes.
const (
	Temporary = iota
	ReturnValue
	Flag
	Link
)

// tempPrefix prefixes the names of temporary registers.
const tempPrefix = "_t"

// -------------------
// ----- Globals -----
// -------------------

// ErrExhausted is returned by Acquire when every temporary is in use.
var ErrExhausted = errors.New("temporary register pool exhausted")

// Dedicated registers.
var (
	EAX = Register{typ: ReturnValue, name: "EAX"}
	FL  = Register{typ: Flag, name: "FL"}
	LR  = Register{typ: Link, name: "LR"}
)

// ---------------------
// ----- Functions -----
// ---------------------

// Id returns the index of the register within its class.
func (r Register) Id() int {
	return r.id
}

// Type returns the register class.
func (r Register) Type() int {
	return r.typ
}

// String returns the listing name of the register.
func (r Register) String() string {
	return r.name
}

// IsTemporary returns true if r belongs to the temporary pool.
func (r Register) IsTemporary() bool {
	return r.typ == Temporary && len(r.name) > 0
}

// NewPool returns a Pool holding k temporaries named _t0 to _t{k-1}.
func NewPool(k int) *Pool {
	if k < 1 {
		k = 1
	}
	p := &Pool{
		temps: make([]Register, k),
		used:  make(map[int]bool, k),
	}
	for i1 := range p.temps {
		p.temps[i1] = Register{id: i1, typ: Temporary, name: fmt.Sprintf("%s%d", tempPrefix, i1)}
	}
	// Allocation order is lexicographic on the name, so _t10 comes before _t2.
	sort.Slice(p.temps, func(i, j int) bool {
		return p.temps[i].name < p.temps[j].name
	})
	return p
}

// Acquire returns the lexicographically smallest free temporary and marks it in use.
func (p *Pool) Acquire() (Register, error) {
	for _, e1 := range p.temps {
		if !p.used[e1.id] {
			p.used[e1.id] = true
			if n := len(p.used); n > p.high {
				p.high = n
			}
			return e1, nil
		}
	}
	return Register{}, fmt.Errorf("%w: all %d temporaries are live", ErrExhausted, len(p.temps))
}

// Release marks temporary r as free.
func (p *Pool) Release(r Register) {
	if !r.IsTemporary() {
		return
	}
	delete(p.used, r.id)
}

// InUse returns true if temporary r is currently allocated.
func (p *Pool) InUse(r Register) bool {
	return r.IsTemporary() && p.used[r.id]
}

// Temporaries returns every temporary in allocation order.
func (p *Pool) Temporaries() []Register {
	res := make([]Register, len(p.temps))
	copy(res, p.temps)
	return res
}

// Live returns the number of temporaries currently in use.
func (p *Pool) Live() int {
	return len(p.used)
}

// HighWater returns the largest number of temporaries simultaneously in use since the Pool was created.
func (p *Pool) HighWater() int {
	return p.high
}

// Mark records the temporaries currently in use.
func (p *Pool) Mark() Mark {
	m := Mark{used: make(map[int]bool, len(p.used))}
	for k := range p.used {
		m.used[k] = true
	}
	return m
}

// Reset releases every temporary that was not in use when m was taken.
// It is meant to be deferred right after Mark so that temporaries are
// returned on every exit path.
func (p *Pool) Reset(m Mark) {
	for k := range p.used {
		if !m.used[k] {
			delete(p.used, k)
		}
	}
}
