package vm

import (
	"testing"

	"paevm/mem"
)

func newInstaller(capacity int) (*Installer, *mem.Memory) {
	arena := mem.NewMemory(0x100000)
	pool := mem.NewPool(arena, capacity)
	return &Installer{Pool: pool}, arena
}

// scenario 1: text region read-execute.
func TestInstallReadExecuteRegion(t *testing.T) {
	ins, arena := newInstaller(64)
	tree := NewTree(arena)

	ins.Install(tree, Region{Base: 0x1000, Size: 0x2000, Flags: mem.USER}, false)

	pte, ok := tree.PTE(0x1000)
	if !ok {
		t.Fatal("expected a PTE at 0x1000")
	}
	if !pte.Present() || !pte.UserAccessible() {
		t.Fatal("expected PRESENT|USER")
	}
	if pte.Writable() {
		t.Fatal("expected WRITE clear")
	}
	if pte.ExecDisabled() {
		t.Fatal("expected EXECUTE_DISABLE clear (region requested execute)")
	}

	pde, ok := tree.PDE(0x1000)
	if !ok || pde.ExecDisabled() {
		t.Fatal("expected PDE XD clear")
	}

	if !tree.Validate(0x1000, 0x2000, false) {
		t.Fatal("validate(read) should succeed")
	}
	if tree.Validate(0x1000, 0x2000, true) {
		t.Fatal("validate(write) should fail: region is read-only")
	}
}

// scenario 2: mixed XD under one PD keeps ANY_EXEC sticky.
func TestInstallMixedXDUnderOnePD(t *testing.T) {
	ins, arena := newInstaller(64)
	tree := NewTree(arena)

	ins.Install(tree, Region{Base: 0x200000, Size: 0x1000, Flags: mem.USER | mem.EXECUTE_DISABLE}, false)
	ins.Install(tree, Region{Base: 0x201000, Size: 0x1000, Flags: mem.USER}, false)

	pde, ok := tree.PDE(0x200000)
	if !ok {
		t.Fatal("expected a PDE covering 0x200000")
	}
	if pde.ExecDisabled() {
		t.Fatal("PDE XD must be clear once any page under it allows execution")
	}
	if !pde.AnyExec() {
		t.Fatal("ANY_EXEC must be set")
	}

	pte1, _ := tree.PTE(0x200000)
	pte2, _ := tree.PTE(0x201000)
	if !pte1.ExecDisabled() {
		t.Fatal("first page's own PTE must still carry XD")
	}
	if pte2.ExecDisabled() {
		t.Fatal("second page's own PTE must not carry XD")
	}
}

// Property 1: installing the same region twice is idempotent, and
// non-overlapping installs OR their flags together.
func TestInstallIdempotentAndAdditive(t *testing.T) {
	ins, arena := newInstaller(64)
	tree := NewTree(arena)

	r := Region{Base: 0x3000, Size: 0x1000, Flags: mem.USER}
	ins.Install(tree, r, false)
	before, _ := tree.PTE(0x3000)
	beforeVal := *before

	ins.Install(tree, r, false)
	after, _ := tree.PTE(0x3000)
	if *after != beforeVal {
		t.Fatal("re-installing the same region must not change the PTE")
	}

	ins.Install(tree, Region{Base: 0x3000, Size: 0x1000, Flags: mem.USER | mem.WRITE}, false)
	widened, _ := tree.PTE(0x3000)
	if !widened.Writable() {
		t.Fatal("an additional install must OR in new permission bits")
	}
	if !widened.UserAccessible() {
		t.Fatal("previously granted permissions must not be lost")
	}
}

// Property 2: XD folding holds after an arbitrary sequence of installs.
func TestXDFoldingProperty(t *testing.T) {
	ins, arena := newInstaller(64)
	tree := NewTree(arena)

	regions := []Region{
		{Base: 0x400000, Size: 0x1000, Flags: mem.USER | mem.EXECUTE_DISABLE},
		{Base: 0x401000, Size: 0x1000, Flags: mem.USER | mem.EXECUTE_DISABLE},
		{Base: 0x402000, Size: 0x1000, Flags: mem.USER | mem.EXECUTE_DISABLE},
	}
	for _, r := range regions {
		ins.Install(tree, r, false)
	}

	pde, _ := tree.PDE(0x400000)
	if !pde.ExecDisabled() {
		t.Fatal("PDE XD must be set when every page under it requests XD")
	}

	ins.Install(tree, Region{Base: 0x403000, Size: 0x1000, Flags: mem.USER}, false)
	pde2, _ := tree.PDE(0x400000)
	if pde2.ExecDisabled() {
		t.Fatal("PDE XD must clear once any page under it allows execution")
	}
}

// scenario 4: KPTI filtering.
func TestKPTIFiltersNonUserPages(t *testing.T) {
	ins, arena := newInstaller(64)
	ins.KPTI = true
	ins.SystemRAM = Range{Start: 0x100000, End: 0x200000}
	ins.Trampoline = 0x150000

	kernel := NewTree(arena)
	user := NewTree(arena)

	region := Region{Base: 0x101000, Size: 0x1000, Flags: 0}

	ins.Install(kernel, region, false)
	ins.Install(user, region, true)

	kpte, ok := kernel.PTE(0x101000)
	if !ok || !kpte.Present() {
		t.Fatal("kernel tree must have the page present")
	}

	upte, ok := user.PTE(0x101000)
	if !ok {
		t.Fatal("user tree must still materialize the PT structurally")
	}
	if upte.Present() {
		t.Fatal("user tree must leave a non-trampoline kernel page non-present")
	}
}

func TestKPTITrampolineStaysPresent(t *testing.T) {
	ins, arena := newInstaller(64)
	ins.KPTI = true
	ins.SystemRAM = Range{Start: 0x100000, End: 0x200000}
	ins.Trampoline = 0x150000

	user := NewTree(arena)

	ins.Install(user, Region{Base: 0x150000, Size: 0x1000, Flags: 0}, true)

	pte, ok := user.PTE(0x150000)
	if !ok || !pte.Present() {
		t.Fatal("trampoline page must remain present in the user tree")
	}
}

func TestKPTILeavesStructureOutsideSystemRAMNonPresent(t *testing.T) {
	ins, arena := newInstaller(64)
	ins.KPTI = true
	ins.SystemRAM = Range{Start: 0x100000, End: 0x200000}

	user := NewTree(arena)

	ins.Install(user, Region{Base: 0x10000, Size: 0x1000, Flags: 0}, true)

	pte, ok := user.PTE(0x10000)
	if !ok {
		t.Fatal("a non-user page outside system ram must still get a materialized PT")
	}
	if pte.Present() {
		t.Fatal("a non-user page outside system ram must be left non-present")
	}
}

func TestInstallRejectsUnaligned(t *testing.T) {
	ins, arena := newInstaller(16)
	tree := NewTree(arena)

	defer func() {
		if recover() == nil {
			t.Fatal("unaligned base should panic")
		}
	}()
	ins.Install(tree, Region{Base: 0x1001, Size: 0x1000, Flags: mem.USER}, false)
}
