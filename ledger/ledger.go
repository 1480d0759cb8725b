// Package ledger keeps the running tally of distinct objects.
//
// Every class owns two identity sets: seen (the displayed total) and counted (gates first-time
// insertion). Both are always updated together; they are kept apart so that "ever seen" and
// "counted toward the total" can diverge later without changing callers.
package ledger

import (
	"sync"

	"github.com/LdDl/shapecount/shapes/class"
)

// Ledger is the per-class pair of identity sets. Zero value is not usable, see New.
type Ledger[ID comparable] struct {
	seen    map[ID]struct{}
	counted map[ID]struct{}
}

// New creates empty ledger
func New[ID comparable]() *Ledger[ID] {
	return &Ledger[ID]{
		seen:    make(map[ID]struct{}),
		counted: make(map[ID]struct{}),
	}
}

// RecordIfNew inserts identity into both sets when it was not counted yet and reports whether it was new
func (l *Ledger[ID]) RecordIfNew(id ID) bool {
	if _, ok := l.counted[id]; ok {
		return false
	}
	l.seen[id] = struct{}{}
	l.counted[id] = struct{}{}
	return true
}

// Seen returns the running total
func (l *Ledger[ID]) Seen() int {
	return len(l.seen)
}

// Counted returns number of identities counted toward the total
func (l *Ledger[ID]) Counted() int {
	return len(l.counted)
}

// Contains reports whether identity has been counted
func (l *Ledger[ID]) Contains(id ID) bool {
	_, ok := l.counted[id]
	return ok
}

// Tally holds one ledger per shape class.
// The frame loop is its only writer; totals may be read from other goroutines.
type Tally[ID comparable] struct {
	mu      sync.RWMutex
	ledgers map[class.Class]*Ledger[ID]
}

// NewTally creates ledgers for every known class
func NewTally[ID comparable]() *Tally[ID] {
	ledgers := make(map[class.Class]*Ledger[ID], len(class.All))
	for _, c := range class.All {
		ledgers[c] = New[ID]()
	}
	return &Tally[ID]{ledgers: ledgers}
}

func (t *Tally[ID]) ledger(c class.Class) *Ledger[ID] {
	l, ok := t.ledgers[c]
	if !ok {
		l = New[ID]()
		t.ledgers[c] = l
	}
	return l
}

// RecordIfNew records identity within its class. Identities of different classes never meet.
func (t *Tally[ID]) RecordIfNew(c class.Class, id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger(c).RecordIfNew(id)
}

// Contains reports whether identity is already counted within its class
func (t *Tally[ID]) Contains(c class.Class, id ID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.ledgers[c]
	if !ok {
		return false
	}
	return l.Contains(id)
}

// Count returns displayed total for the class
func (t *Tally[ID]) Count(c class.Class) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.ledgers[c]
	if !ok {
		return 0
	}
	return l.Seen()
}

// Counts is a point-in-time copy of the tally
type Counts struct {
	Squares int
	Circles int
}

// Snapshot returns current totals of every class
func (t *Tally[ID]) Snapshot() Counts {
	return Counts{
		Squares: t.Count(class.Square),
		Circles: t.Count(class.Circle),
	}
}
