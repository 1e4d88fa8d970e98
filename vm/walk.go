package vm

import "paevm/mem"

// PDPTE returns a pointer to the PDPT entry covering va. The PDPT always
// exists (it is the tree's root), so this never fails.
func (t *Tree) PDPTE(va mem.VA) *mem.Entry {
	return &t.PDPT[mem.PDPTEIndex(va)]
}

// PDE returns a pointer to the PD entry covering va, and false if the
// PDPTE is not present (no PD has been materialized for this range).
func (t *Tree) PDE(va mem.VA) (*mem.Entry, bool) {
	pd := t.pd(va)
	if pd == nil {
		return nil, false
	}
	return &pd[mem.PDEIndex(va)], true
}

// PTE returns a pointer to the PT entry covering va, and false if the PDE
// is not present or is a large-page leaf (no PT exists underneath it).
func (t *Tree) PTE(va mem.VA) (*mem.Entry, bool) {
	pd := t.pd(va)
	if pd == nil {
		return nil, false
	}
	pt := t.pt(pd, va)
	if pt == nil {
		return nil, false
	}
	return &pt[mem.PTEIndex(va)], true
}

// EnsurePD returns a pointer to the PD entry covering va, materializing a
// fresh PD from pool and wiring the PDPTE to it if one is not already
// present. The walker never inspects PAGE_SIZE here: this path is only
// used by the installer, which creates 4KiB mappings exclusively.
func (t *Tree) EnsurePD(pool *mem.Pool, va mem.VA) *mem.Entry {
	pdpte := t.PDPTE(va)
	if !pdpte.Present() {
		addr, _ := pool.Acquire()
		*pdpte = mem.MkEntry(addr, mem.PRESENT)
	}
	pd := t.mem.Lookup(pdpte.Addr())
	return &pd[mem.PDEIndex(va)]
}

// EnsurePT returns a pointer to the PT entry covering va, materializing a
// fresh PD and/or PT from pool as needed, wiring the PDPTE/PDE along the
// way. This is the "navigate-or-create" variant used by the installer.
func (t *Tree) EnsurePT(pool *mem.Pool, va mem.VA) *mem.Entry {
	pde := t.EnsurePD(pool, va)
	if !pde.Present() {
		addr, _ := pool.Acquire()
		*pde = mem.MkEntry(addr, mem.PRESENT)
	}
	pt := t.mem.Lookup(pde.Addr())
	return &pt[mem.PTEIndex(va)]
}
