package vm

import "paevm/mem"

// TLBFlush is called once per page touched by SetFlags when flush is
// requested. It defaults to a no-op: there is no TLB underneath a Go
// process, so the default exists only so tests can install a spy and
// assert it fired for the right addresses.
var TLBFlush = func(va mem.VA) {}

// SetFlags updates the permission and cacheability bits of every mapping
// in [base, base+size): each PTE has the bits in mask cleared and then
// flags OR-ed in (bits of flags outside mask are OR-ed in as well), and
// the PDPTE and PDE above it have their level's subset of flags OR-ed in.
// base and size must be page aligned (fatal assertion otherwise). Every
// page in the range must already have a present PDPTE and PDE and a
// materialized PT; the PTE itself may be non-present. SetFlags changes
// existing mappings, it never creates tables.
//
// Clearing the PRESENT bit of a PTE (mask includes PRESENT, flags doesn't)
// also clears its address field, an L1TF mitigation: a non-present entry
// with a stale address is speculatively dereferenceable by a malicious
// sibling hyperthread. Setting PRESENT restores the address from the
// virtual address itself, since this package always identity-maps.
func (t *Tree) SetFlags(base mem.VA, size uint32, flags, mask mem.Entry, flush bool) {
	if !mem.Aligned(uint32(base)) || !mem.Aligned(size) {
		Log.Error("setflags: unaligned range", "base", base, "size", size)
		panic("vm: unaligned address or size provided")
	}

	if mask&mem.PRESENT != 0 {
		mask |= mem.FrameMask
	}

	for off := uint32(0); off < size; off += mem.PGSIZE {
		va := base + mem.VA(off)
		t.setPageFlags(va, flags, mask)
		if flush {
			TLBFlush(va)
		}
	}
}

func (t *Tree) setPageFlags(va mem.VA, flags, mask mem.Entry) {
	pdpte := t.PDPTE(va)
	if !pdpte.Present() {
		panic("vm: setflags on non-present PDPTE")
	}
	*pdpte |= flags & mem.PDPTEMask

	pde, ok := t.PDE(va)
	if !ok || !pde.Present() {
		panic("vm: setflags on non-present PDE")
	}
	*pde |= flags & mem.PDEMask
	if flags&mem.EXECUTE_DISABLE == 0 {
		*pde &^= mem.EXECUTE_DISABLE
	}

	pte, ok := t.PTE(va)
	if !ok {
		panic("vm: setflags on non-present PTE")
	}

	cur := flags
	if mask&mem.PRESENT != 0 && flags&mem.PRESENT != 0 {
		cur |= mem.Entry(va)
	}
	*pte = (*pte &^ mask) | cur
}
