package selection

import (
	"sync"

	"chess-persona/persona"
)

// BlunderBudget counts down the mistakes each persona may still make in one
// game session. It belongs to a single session and is cleared with it.
type BlunderBudget struct {
	mu        sync.Mutex
	remaining map[string]int
	allowance func(name string) int
}

// NewBlunderBudget creates an empty budget using the default per-persona allowances.
func NewBlunderBudget() *BlunderBudget {
	return NewBlunderBudgetWith(persona.DefaultBlunderAllowance)
}

// NewBlunderBudgetWith creates an empty budget with a custom allowance table.
func NewBlunderBudgetWith(allowance func(name string) int) *BlunderBudget {
	return &BlunderBudget{
		remaining: make(map[string]int),
		allowance: allowance,
	}
}

// Ensure initialises the persona's counter on first use and returns it.
func (b *BlunderBudget) Ensure(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ensureLocked(persona.NormalizeName(name))
}

// Enforce reports whether the persona has no mistakes left.
func (b *BlunderBudget) Enforce(name string) bool {
	return b.Ensure(name) <= 0
}

// Consume spends one mistake, never going below zero.
func (b *BlunderBudget) Consume(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := persona.NormalizeName(name)
	if b.ensureLocked(key) > 0 {
		b.remaining[key]--
	}
}

// Remaining returns the current counter, if the persona has been seen.
func (b *BlunderBudget) Remaining(name string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.remaining[persona.NormalizeName(name)]
	return n, ok
}

// Snapshot copies all counters.
func (b *BlunderBudget) Snapshot() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.remaining))
	for k, v := range b.remaining {
		out[k] = v
	}
	return out
}

// Reset forgets every persona's counter.
func (b *BlunderBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = make(map[string]int)
}

func (b *BlunderBudget) ensureLocked(key string) int {
	n, ok := b.remaining[key]
	if !ok {
		n = b.allowance(key)
		if n < 0 {
			n = 0
		}
		b.remaining[key] = n
	}
	return n
}
