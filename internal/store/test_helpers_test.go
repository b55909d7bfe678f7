package store

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/isaac/internal/ir"
)

// createTestStore creates a new SQLite store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBadger creates a new in-memory Badger store.
func createTestBadger(t *testing.T) *Badger {
	t.Helper()
	s, err := OpenBadger(InMemoryBadgerConfig(), nil, nil)
	if err != nil {
		t.Fatalf("OpenBadger() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns one fresh instance of every DataStore implementation.
func backends(t *testing.T) map[string]DataStore {
	t.Helper()
	return map[string]DataStore{
		"memory": NewMemory(nil, nil),
		"sqlite": createTestStore(t),
		"badger": createTestBadger(t),
	}
}

// setChronicle is a Chronicle whose bytes are a newline-joined sorted set
// of items. Merging is set union, which is enough to observe the write
// discipline without the codec.
type setChronicle struct {
	mu         sync.Mutex
	nid        ir.Nid
	objectType ir.ObjectType
	assemblage ir.Nid
	component  ir.Nid
	seq        int32
	items      []string
}

func newConcept(nid, assemblage ir.Nid, items ...string) *setChronicle {
	return &setChronicle{nid: nid, objectType: ir.ObjectTypeConcept, assemblage: assemblage, items: items}
}

func newSemantic(nid, assemblage, component ir.Nid, items ...string) *setChronicle {
	c := newConcept(nid, assemblage, items...)
	c.objectType = ir.ObjectTypeSemantic
	c.component = component
	return c
}

func (c *setChronicle) Nid() ir.Nid                    { return c.nid }
func (c *setChronicle) ObjectType() ir.ObjectType      { return c.objectType }
func (c *setChronicle) AssemblageNid() ir.Nid          { return c.assemblage }
func (c *setChronicle) ReferencedComponentNid() ir.Nid { return c.component }

func (c *setChronicle) WriteSequence() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *setChronicle) SetWriteSequence(seq int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = seq
}

func (c *setChronicle) SerializeInternal() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes(), nil
}

func (c *setChronicle) MergeStampData(writeSequence int32, other []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range strings.Split(string(other), "\n") {
		if item != "" && !slices.Contains(c.items, item) {
			c.items = append(c.items, item)
		}
	}
	c.seq = writeSequence
	return c.bytes(), nil
}

func (c *setChronicle) bytes() []byte {
	items := slices.Clone(c.items)
	slices.Sort(items)
	return []byte(strings.Join(items, "\n"))
}
