package mem

import "sync"

// Pool is a fixed-capacity, monotonically consumed pool of 4KiB
// page-aligned frames used as storage for table nodes. Boot-time table
// materialization has a worst-case size computable from the region list;
// keeping allocation linear-and-failing makes paging bring-up deterministic
// and small enough to fit in an initialization image. There is no release:
// no table is ever freed (invariant 5).
type Pool struct {
	mem   *Memory
	mu    sync.Mutex
	cap   int
	taken int
}

// NewPool creates a pool of the given capacity in pages, drawing storage
// from mem.
func NewPool(mem *Memory, pages int) *Pool {
	if pages <= 0 {
		panic("mem: pool capacity must be positive")
	}
	return &Pool{mem: mem, cap: pages}
}

// Acquire hands out one fresh, zeroed page from the pool. It panics
// ("mem: page pool exhausted") if the pool is exhausted.
func (p *Pool) Acquire() (Pa_t, *Table) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.taken >= p.cap {
		panic("mem: page pool exhausted")
	}
	p.taken++
	return p.mem.Alloc()
}

// Remaining reports how many pages are still available.
func (p *Pool) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cap - p.taken
}

// Arena returns the backing Memory so callers can resolve addresses
// acquired from this pool.
func (p *Pool) Arena() *Memory { return p.mem }
