package vm

import "paevm/mem"

// Region describes a declarative, page-aligned mapping to install: the
// boot-time equivalent of a linker-collected (address, size, flags)
// triple, or a host-side stand-in loaded via package config.
type Region struct {
	Base  mem.VA
	Size  uint32
	Flags mem.Entry
}

// Range is a half-open [Start, End) address range, used to describe the
// bounds of system RAM for KPTI filtering and memory-domain partitions.
type Range struct {
	Start, End mem.VA
}

// Contains reports whether va lies within r.
func (r Range) Contains(va mem.VA) bool {
	return va >= r.Start && va < r.End
}

// ContainsRange reports whether [va, va+size) lies entirely within r.
func (r Range) ContainsRange(va mem.VA, size uint32) bool {
	return va >= r.Start && uint32(va)+size <= uint32(r.End)
}

// Installer applies Region descriptors into table trees. It owns the page
// pool regions are materialized from and the KPTI policy (if any).
type Installer struct {
	Pool *mem.Pool

	// KPTI enables the Meltdown-mitigation user-tree carve-out: when
	// true, calls to Install with isUserTree set apply the carve-out
	// described on SystemRAM below.
	KPTI bool
	// SystemRAM bounds carve-out (b): a non-USER page inside it is
	// emitted into the user tree only if it is the trampoline. A non-USER
	// page outside it falls under carve-out (a) and is never emitted.
	// Both carve-outs materialize the PD/PT structure and only ever leave
	// the leaf PTE non-present.
	SystemRAM Range
	// Trampoline is the single statically designated shared page that
	// remains visible to user mode even though it is not USER-flagged.
	Trampoline mem.VA
}

// Install applies region page by page into tree, materializing PDs/PTs as
// needed, folding EXECUTE_DISABLE at the PDE level, and applying KPTI
// filtering when isUserTree is set. base and size must be page aligned and
// size must be positive (fatal assertion otherwise, matching the source's
// __ASSERT convention).
func (ins *Installer) Install(tree *Tree, region Region, isUserTree bool) {
	base, size := region.Base, region.Size
	if !mem.Aligned(uint32(base)) || !mem.Aligned(size) {
		Log.Error("install: unaligned region", "base", base, "size", size)
		panic("vm: unaligned address or size provided")
	}
	if size == 0 {
		panic("vm: zero-sized region")
	}

	// Augment with PRESENT and strip the runtime-only bit; it has no
	// meaning to the hardware-facing masks below.
	flags := (region.Flags &^ mem.RUNTIME_USER) | mem.PRESENT

	for off := uint32(0); off < size; off += mem.PGSIZE {
		ins.installPage(tree, base+mem.VA(off), flags, isUserTree)
	}
}

func (ins *Installer) installPage(tree *Tree, va mem.VA, flags mem.Entry, isUserTree bool) {
	notUser := flags&mem.USER == 0

	pte := tree.EnsurePT(ins.Pool, va)
	pdpte := tree.PDPTE(va)
	*pdpte |= flags & mem.PDPTEMask

	pde, _ := tree.PDE(va)
	*pde |= flags & mem.PDEMask

	// Execute-disable folding: XD at a PDE forbids execution of the whole
	// 2MiB region regardless of PTE bits. ANY_EXEC is a sticky marker that
	// records whether any page installed under this PDE so far asked for
	// execute permission; XD only persists at the PDE while every page
	// under it has asked for it.
	if flags&mem.EXECUTE_DISABLE == 0 {
		*pde |= mem.ANY_EXEC
		*pde &^= mem.EXECUTE_DISABLE
	} else if !pde.AnyExec() {
		*pde |= mem.EXECUTE_DISABLE
	}

	// KPTI carve-out (a): non-USER pages outside system RAM are left
	// non-present. The PD/PT structure above is already materialized
	// regardless, so the user tree's shape still matches the kernel
	// tree's; only the leaf write is skipped.
	if ins.KPTI && isUserTree && notUser && !ins.SystemRAM.Contains(va) {
		return
	}

	// KPTI carve-out (b): non-USER pages within system RAM are also left
	// non-present, except for the single shared trampoline page.
	if ins.KPTI && isUserTree && notUser && va != ins.Trampoline {
		return
	}

	*pte = mem.MkEntry(mem.Pa_t(va), flags&mem.PTEMask)
}
