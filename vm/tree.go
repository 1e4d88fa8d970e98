// Package vm implements the PAE page-table engine: region installation,
// flag mutation, user-buffer validation, and per-thread table cloning on
// top of the entry codec and page pool in package mem.
package vm

import (
	"log/slog"

	"paevm/mem"
)

// Log is the package-level structured logger. It defaults to slog.Default()
// and can be overridden by a caller (e.g. the boot driver or tests), the
// same way biscuit's vm package swaps _numtoapicid and gopheros's vmm
// package swaps activePDTFn/mapFn for testing.
var Log = slog.Default()

// Tree is a PAE table hierarchy rooted at a PDPT. Every tree has an
// identity: the kernel master, the user master (aliased to the kernel
// master unless KPTI is enabled), or a thread-private tree.
type Tree struct {
	PDPT mem.PDPT
	mem  *mem.Memory
}

// NewTree creates an empty tree whose PDs and PTs are drawn from arena.
// Master trees share one arena, the one their installing Pool draws from
// (see NewMasterTrees); thread-private trees draw from their own small
// arena representing the thread's reserved stack storage (see Clone).
func NewTree(arena *mem.Memory) *Tree {
	return &Tree{mem: arena}
}

// Arena returns the Memory this tree's PD/PT pages are resolved against.
func (t *Tree) Arena() *mem.Memory { return t.mem }

// pd returns the PD pointed to by the tree's PDPTE for va, or nil if not
// present.
func (t *Tree) pd(va mem.VA) *mem.Table {
	pdpte := t.PDPT[mem.PDPTEIndex(va)]
	if !pdpte.Present() {
		return nil
	}
	return t.mem.Lookup(pdpte.Addr())
}

// pt returns the PT pointed to by the PDE for va within pd, or nil if not
// present or the PDE is a large-page leaf.
func (t *Tree) pt(pd *mem.Table, va mem.VA) *mem.Table {
	pde := pd[mem.PDEIndex(va)]
	if !pde.Present() || pde.Large() {
		return nil
	}
	return t.mem.Lookup(pde.Addr())
}
