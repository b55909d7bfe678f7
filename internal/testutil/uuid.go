package testutil

import (
	"sync"

	"github.com/google/uuid"
)

// namespace for NamedUUID. Changing it changes every scenario UUID.
var namespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// NamedUUID returns the name-based (SHA-1) UUID of name.
//
// Scenario files refer to concepts by name; NamedUUID gives each name the
// same UUID on every run.
func NamedUUID(name string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(name))
}

// SequentialUUIDs generates UUIDs 00000000-0000-0000-0000-000000000001,
// ...0002 and so on.
//
// Thread-safety: safe for concurrent use.
type SequentialUUIDs struct {
	mu   sync.Mutex
	next uint64
}

// NewSequentialUUIDs creates a generator whose first UUID ends in 1.
func NewSequentialUUIDs() *SequentialUUIDs {
	return &SequentialUUIDs{}
}

// Next returns the next UUID.
func (g *SequentialUUIDs) Next() uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++

	var id uuid.UUID
	n := g.next
	for i := len(id) - 1; i >= 8 && n > 0; i-- {
		id[i] = byte(n)
		n >>= 8
	}
	return id
}
