package mem

import "sync"

// Memory is an arena of PD/PT table nodes addressed by fabricated physical
// addresses. Real PAE hardware resolves a frame field by dereferencing
// physical RAM directly; this package has no physical RAM to dereference
// (there is no MMU underneath a Go process), so it models "physical
// address" as an opaque, monotonically increasing token handed out by
// Alloc and resolved back to the Table it names by Lookup. Per-thread
// table storage need not live inside any particular object: an allocator
// may place PD/PT storage wherever it likes as long as it is 4KiB aligned
// and lifetime-bound to its tree.
type Memory struct {
	mu     sync.Mutex
	tables map[Pa_t]*Table
	next   Pa_t
	base   Pa_t
}

// NewMemory creates an arena whose fabricated addresses start at base,
// page aligned.
func NewMemory(base Pa_t) *Memory {
	if uint32(base)&PGOFFSET != 0 {
		panic("mem: unaligned arena base")
	}
	return &Memory{
		tables: make(map[Pa_t]*Table),
		next:   base,
		base:   base,
	}
}

// Alloc hands out a fresh, zeroed table-sized page and returns its
// fabricated physical address.
func (m *Memory) Alloc() (Pa_t, *Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pa := m.next
	m.next += Pa_t(PGSIZE)
	t := &Table{}
	m.tables[pa] = t
	return pa, t
}

// Lookup resolves a fabricated physical address to its Table. It panics if
// pa was never returned by Alloc on this arena: every PRESENT entry must
// reference a table within the pool or a thread's reserved table area
// (invariant 1).
func (m *Memory) Lookup(pa Pa_t) *Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[pa]
	if !ok {
		panic("mem: physical address does not name a table in this arena")
	}
	return t
}

// Count reports how many pages this arena has handed out.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables)
}
