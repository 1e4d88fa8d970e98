package vm

import (
	"paevm/mem"
	"paevm/util"
)

// Fence is called once by Validate after the table walk completes and
// before the result is returned to the caller. It is the place for a
// speculative-execution barrier: without one, a CPU can speculatively use
// an out-of-bounds size to read past a buffer before the bounds check
// retires (a Spectre-v1 bounds-check-bypass gadget). The default is a
// no-op and issues no barrier; tests replace it with a spy to assert it
// ran exactly once per call.
var Fence = func() {}

// Validate reports whether [va, va+size) is entirely mapped, user
// accessible, and (if write is true) writable in t. It walks the PDPT, PD
// and PT levels, re-dispatching at each PD/PT boundary so a range spanning
// multiple tables is still checked in full. The walk clamps how much of
// the range it examines against each table's remaining span so it never
// reads past the end of a PD or PT entry array.
func (t *Tree) Validate(va mem.VA, size uint32, write bool) bool {
	pos, remaining := va, size
	for remaining > 0 {
		pdpte := t.PDPTE(pos)
		if !pdpte.Present() {
			Fence()
			return false
		}

		toExamine := tableMax(pos, remaining, mem.PDArea)
		if !t.validatePD(pos, toExamine, write) {
			Fence()
			return false
		}

		remaining -= toExamine
		pos += mem.VA(toExamine)
	}

	Fence()
	return true
}

func (t *Tree) validatePD(va mem.VA, size uint32, write bool) bool {
	pos, remaining := va, size
	for remaining > 0 {
		pde, ok := t.PDE(pos)
		if !ok || !pde.Present() || !pde.UserAccessible() || (write && !pde.Writable()) {
			return false
		}

		toExamine := tableMax(pos, remaining, mem.PTArea)

		if !pde.Large() {
			if !t.validatePT(pos, toExamine, write) {
				return false
			}
		}

		remaining -= toExamine
		pos += mem.VA(toExamine)
	}
	return true
}

func (t *Tree) validatePT(va mem.VA, size uint32, write bool) bool {
	end := uint64(va) + uint64(size)
	for pos := uint64(mem.Rounddown(uint32(va))); pos < end; pos += uint64(mem.PGSIZE) {
		pte, ok := t.PTE(mem.VA(pos))
		if !ok || !pte.Present() || !pte.UserAccessible() || (write && !pte.Writable()) {
			return false
		}
	}
	return true
}

// tableMax returns how much of [va, va+size) falls within the single
// table-sized span of length tableSize that contains va.
func tableMax(va mem.VA, size uint32, tableSize mem.VA) uint32 {
	offset := uint32(va) & (uint32(tableSize) - 1)
	remaining := uint32(tableSize) - offset
	return util.Min(size, remaining)
}
