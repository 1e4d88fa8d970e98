package vm

import "paevm/mem"

// EnablePaging is invoked once by Boot after every region has been
// installed into the kernel (and, under KPTI, user) master trees. The
// default is a no-op placeholder for the architecture-specific sequence
// that loads CR3 and sets CR0.PG; tests replace it with a spy to confirm
// Boot reaches the end of the region list.
var EnablePaging = func() {}

// Boot materializes kernel and, when ins.KPTI is set, user master trees
// from regions, then calls EnablePaging. It is the entry point a startup
// sequence calls once, before any other package in this module touches a
// tree built from it.
//
// kernel and user may be the same *Tree: without KPTI there is only one
// set of master tables, and the caller is expected to pass the same tree
// twice rather than this function aliasing anything implicitly.
func Boot(ins *Installer, kernel, user *Tree, regions []Region) {
	for _, r := range regions {
		Log.Info("installing region", "base", r.Base, "size", r.Size, "flags", r.Flags)
		ins.Install(kernel, r, false)
		if ins.KPTI {
			ins.Install(user, r, true)
		}
	}

	remaining := ins.Pool.Remaining()
	if remaining > 0 {
		Log.Info("page pool has unused capacity", "remaining", remaining)
	}

	EnablePaging()
}

// NewMasterTrees allocates a kernel master tree and, if kpti is true, a
// distinct user master tree; otherwise it returns the same tree for both,
// matching the non-KPTI configuration where USER_PTABLES aliases the
// kernel tables. Both trees draw their PD/PT storage from the same arena:
// a PDPTE/PDE installed by either tree is only resolvable by a Lookup
// against the arena its installing Pool was built on, and physical frames
// are a single namespace regardless of which tree's tables reference them.
func NewMasterTrees(kpti bool, arena *mem.Memory) (kernel, user *Tree) {
	kernel = NewTree(arena)
	if !kpti {
		return kernel, kernel
	}
	return kernel, NewTree(arena)
}
