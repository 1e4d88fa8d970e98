package vm

import "paevm/mem"

// PermMask is the set of bits a memory-domain partition is allowed to
// change: permission bits only, never PRESENT itself (Cloner widens the
// mask for that, see ApplyPartition).
const PermMask = mem.WRITE | mem.USER | mem.EXECUTE_DISABLE

// ActiveTree names the tree currently loaded into the running CPU's CR3 —
// the one a context switch last installed. A boot or thread-switch driver
// updates it; Clone asserts against it the same way vm.TLBFlush, vm.Fence
// and vm.EnablePaging are overridable package-level indirection points for
// the parts of this engine that depend on runtime state this package does
// not itself own.
var ActiveTree *Tree

// Cloner builds and maintains per-thread table trees from a user master
// template, and pushes memory-domain partitions into them. Its KPTI and
// SystemRAM fields must match the Installer used to build the master
// trees: a partition is only ever applied within system RAM, and under
// KPTI its PRESENT bit travels with its permission bits.
type Cloner struct {
	Pool      *mem.Pool
	KPTI      bool
	SystemRAM Range
}

// Clone builds a thread-private tree from master: every PD and PT already
// materialized in master is bit-copied into fresh pages drawn from arena
// (conventionally a small arena carved out of the thread's own stack
// object), and the thread-private PDPT/PDEs are redirected to point at the
// copies instead of master's. master must not be ActiveTree: this walks
// master's PDPT/PD/PT without any lock of its own, and a concurrent
// mutation of a live, running tree while Clone is reading it would shred
// whatever its walk is in the middle of.
func (c *Cloner) Clone(arena *mem.Memory, master *Tree) *Tree {
	if master == ActiveTree {
		Log.Error("clone: attempted to clone the active tree")
		panic("vm: attempted to clone the active tree")
	}

	dst := NewTree(arena)
	dst.PDPT = master.PDPT

	for i := range dst.PDPT {
		pdpte := &dst.PDPT[i]
		if !pdpte.Present() {
			continue
		}

		masterPD := master.mem.Lookup(pdpte.Addr())
		addr, destPD := arena.Alloc()
		*destPD = *masterPD
		*pdpte = pdpte.WithAddr(addr)

		for j := range destPD {
			pde := &destPD[j]
			if !pde.Present() || pde.Large() {
				continue
			}

			masterPT := master.mem.Lookup(pde.Addr())
			ptAddr, destPT := arena.Alloc()
			*destPT = *masterPT
			*pde = pde.WithAddr(ptAddr)
		}
	}

	return dst
}

// ApplyPartition pushes one partition's permissions into tree. Under KPTI,
// PRESENT rides along with the permission bits: the user master leaves
// non-user pages non-present, so the partition's pages are made present
// (with their identity-mapped frame restored) along with its permissions.
func (c *Cloner) ApplyPartition(tree *Tree, p MemPartition) {
	if !c.SystemRAM.ContainsRange(p.Start, p.Size) {
		Log.Error("applypartition: range outside system ram", "start", p.Start, "size", p.Size)
		panic("vm: memory-domain partition extends outside system ram")
	}

	attr := p.Attr &^ mem.RUNTIME_USER
	mask := PermMask
	if c.KPTI {
		attr |= mem.PRESENT
		mask |= mem.PRESENT
	}

	tree.SetFlags(p.Start, p.Size, attr, mask, false)
}

// ResetPartition copies the PTEs covering p's range from master back into
// tree, discarding whatever permissions a since-removed partition left
// behind. Unlike ApplyPartition this is a structural copy, not a flag
// merge: it restores tree to exactly what master says, including PRESENT.
func (c *Cloner) ResetPartition(tree, master *Tree, p MemPartition) {
	for off := uint32(0); off < p.Size; off += mem.PGSIZE {
		va := p.Start + mem.VA(off)

		threadPTE, ok := tree.PTE(va)
		if !ok {
			panic("vm: resetpartition on range with no thread PTE")
		}
		masterPTE, ok := master.PTE(va)
		if !ok {
			panic("vm: resetpartition on range with no master PTE")
		}
		*threadPTE = *masterPTE
	}
}

// ApplyDomain applies every live partition in d to tree, in slot order
// (a partition added into a reused slot comes before later slots).
func (c *Cloner) ApplyDomain(tree *Tree, d *MemDomain) {
	d.forEachLive(func(id PartitionID) {
		c.ApplyPartition(tree, d.Partition(id))
	})
}

// AddPartition installs p into d's first free slot and, for every user
// thread already in d, applies it immediately. It reports false if d is
// already at MaxPartitions.
func (c *Cloner) AddPartition(d *MemDomain, p MemPartition) (PartitionID, bool) {
	slot := d.freeSlot()
	if slot == -1 {
		return 0, false
	}
	d.partitions[slot] = p
	d.count++

	for _, th := range d.Threads {
		if th.IsUser {
			c.ApplyPartition(th.Tree, p)
		}
	}
	return PartitionID(slot), true
}

// RemovePartition tombstones the partition at id and resets every user
// thread in d back to master's defaults for that range.
func (c *Cloner) RemovePartition(d *MemDomain, id PartitionID, master *Tree) {
	p := d.partitions[id]
	if p.removed() {
		return
	}
	for _, th := range d.Threads {
		if th.IsUser {
			c.ResetPartition(th.Tree, master, p)
		}
	}
	d.partitions[id] = MemPartition{}
	d.count--
}

// DestroyDomain removes every live partition from d, resetting every
// member thread's mappings back to master's defaults.
func (c *Cloner) DestroyDomain(d *MemDomain, master *Tree) {
	for d.count > 0 {
		id := PartitionID(-1)
		d.forEachLive(func(pid PartitionID) {
			if id == -1 {
				id = pid
			}
		})
		c.RemovePartition(d, id, master)
	}
}

// ThreadAdd joins th to d and applies every live partition. Non-user
// threads are recorded as members but never touched: they run with the
// kernel's own tables and drop into a per-thread tree only if they later
// transition to user mode (see ThreadPtInit).
func (c *Cloner) ThreadAdd(th *Thread, d *MemDomain) {
	d.Threads = append(d.Threads, th)
	th.Domain = d
	if th.IsUser {
		c.ApplyDomain(th.Tree, d)
	}
}

// ThreadRemove resets th's mappings for every live partition in its domain
// back to master's defaults and drops it from the domain's membership.
func (c *Cloner) ThreadRemove(th *Thread, master *Tree) {
	d := th.Domain
	if d == nil {
		return
	}
	if th.IsUser {
		d.forEachLive(func(id PartitionID) {
			c.ResetPartition(th.Tree, master, d.Partition(id))
		})
	}
	for i, t := range d.Threads {
		if t == th {
			d.Threads = append(d.Threads[:i], d.Threads[i+1:]...)
			break
		}
	}
	th.Domain = nil
}

// ThreadPtInit builds th's per-thread tree from master (typically the user
// master, which under KPTI already leaves non-user pages non-present)
// and grants the thread access to its own stack, then applies its
// domain's partitions if it has joined one. This is the entry point used
// when a thread is created in user mode or drops to user mode at runtime.
func (c *Cloner) ThreadPtInit(th *Thread, arena *mem.Memory, master *Tree) {
	th.Tree = c.Clone(arena, master)

	stackFlags := mem.PRESENT | mem.WRITE | mem.USER
	stackMask := mem.PRESENT | PermMask
	th.Tree.SetFlags(th.StackStart, mem.Roundup(th.StackSize), stackFlags, stackMask, false)

	if th.Domain != nil {
		c.ApplyDomain(th.Tree, th.Domain)
	}
}
