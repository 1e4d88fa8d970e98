package vm

import "paevm/mem"

// MaxPartitions bounds how many partitions a single MemDomain may hold at
// once, mirroring the fixed-size partition array backing a domain.
const MaxPartitions = 16

// MemPartition describes one memory-domain region: a page-aligned range and
// the permission/cacheability attributes it grants while active. A
// partition with Size 0 is a tombstone: a removed slot that MemDomain skips
// during iteration without compacting the array, so PartitionID values
// handed out earlier stay valid.
type MemPartition struct {
	Start mem.VA
	Size  uint32
	Attr  mem.Entry
}

func (p MemPartition) removed() bool { return p.Size == 0 }

// PartitionID indexes a slot in a MemDomain's partition array.
type PartitionID int

// MemDomain groups a set of partitions applied together to every user
// thread that joins it. Partitions live in a sparse, fixed-capacity array
// rather than a compacted slice so a PartitionID stays valid across adds
// and removes of other partitions; Cloner is what actually pushes a
// partition's permissions into a thread's tables (see cloner.go).
type MemDomain struct {
	partitions [MaxPartitions]MemPartition
	count      int // live (non-tombstone) partitions
	Threads    []*Thread
}

// freeSlot returns the index of the first tombstoned slot, or -1 if the
// domain is at MaxPartitions.
func (d *MemDomain) freeSlot() int {
	for i := range d.partitions {
		if d.partitions[i].removed() {
			return i
		}
	}
	return -1
}

// Partition returns the partition stored at id.
func (d *MemDomain) Partition(id PartitionID) MemPartition {
	return d.partitions[id]
}

// forEachLive calls fn with the id of every live partition, stopping once
// every live partition has been visited. It mirrors the source's
// pcount/num_partitions loop idiom for walking a sparse array whose true
// length is tracked separately from its live count.
func (d *MemDomain) forEachLive(fn func(PartitionID)) {
	examined := 0
	for i := range d.partitions {
		if examined == d.count {
			return
		}
		if d.partitions[i].removed() {
			continue
		}
		examined++
		fn(PartitionID(i))
	}
}

// Thread is a schedulable context with its own page-table tree (if it runs
// in user mode) and, once joined, a memory domain governing its extra
// mappings.
type Thread struct {
	Tree       *Tree
	IsUser     bool
	Domain     *MemDomain
	StackStart mem.VA
	StackSize  uint32
}
