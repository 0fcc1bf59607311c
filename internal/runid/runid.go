// Package runid generates identifiers that tie together the log lines and
// spans of one sync run.
package runid

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces run ids.
type Generator interface {
	Generate() string
}

// UUIDv7 generates time-sortable UUIDv7 run ids, so log lines from
// successive runs sort by start time.
//
// Safe for concurrent use.
type UUIDv7 struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequence returns predetermined run ids for deterministic tests.
//
// Safe for concurrent use.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	ids    []string
	next   int
}

// NewSequence returns a generator that hands out ids in order. Once they
// are exhausted it continues with "<prefix>-<n>".
//
//	gen := runid.NewSequence("run", "first")
//	gen.Generate() // "first"
//	gen.Generate() // "run-2"
func NewSequence(prefix string, ids ...string) *Sequence {
	if prefix == "" {
		prefix = "run"
	}
	return &Sequence{prefix: prefix, ids: ids}
}

// Generate returns the next id.
func (g *Sequence) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	if g.next <= len(g.ids) {
		return g.ids[g.next-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}
