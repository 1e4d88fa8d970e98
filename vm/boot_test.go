package vm

import (
	"testing"

	"paevm/mem"
)

func TestNewMasterTreesWithoutKPTIAliases(t *testing.T) {
	arena := mem.NewMemory(0x100000)
	kernel, user := NewMasterTrees(false, arena)
	if kernel != user {
		t.Fatal("without KPTI, kernel and user master trees must be the same tree")
	}
}

func TestNewMasterTreesWithKPTIDistinct(t *testing.T) {
	arena := mem.NewMemory(0x100000)
	kernel, user := NewMasterTrees(true, arena)
	if kernel == user {
		t.Fatal("under KPTI, kernel and user master trees must be distinct")
	}
	if kernel.Arena() != user.Arena() {
		t.Fatal("kernel and user master trees must share the same backing arena")
	}
}

func TestBootInstallsRegionsAndEnablesPaging(t *testing.T) {
	arena := mem.NewMemory(0x100000)
	pool := mem.NewPool(arena, 64)
	ins := &Installer{Pool: pool}
	kernel := NewTree(arena)

	calls := 0
	old := EnablePaging
	EnablePaging = func() { calls++ }
	defer func() { EnablePaging = old }()

	regions := []Region{
		{Base: 0x1000, Size: 0x1000, Flags: mem.USER},
		{Base: 0x2000, Size: 0x1000, Flags: mem.USER | mem.WRITE},
	}
	Boot(ins, kernel, kernel, regions)

	if calls != 1 {
		t.Fatalf("EnablePaging called %d times, want 1", calls)
	}
	for _, r := range regions {
		pte, ok := kernel.PTE(r.Base)
		if !ok || !pte.Present() {
			t.Fatalf("region at %#x was not installed", r.Base)
		}
	}
}

func TestBootInstallsIntoBothTreesUnderKPTI(t *testing.T) {
	arena := mem.NewMemory(0x100000)
	pool := mem.NewPool(arena, 64)
	ins := &Installer{Pool: pool, KPTI: true, SystemRAM: Range{Start: 0, End: 0x100000}}

	kernel, user := NewMasterTrees(true, arena)

	old := EnablePaging
	EnablePaging = func() {}
	oldActive := ActiveTree
	defer func() { EnablePaging = old; ActiveTree = oldActive }()

	regions := []Region{{Base: 0x1000, Size: 0x1000, Flags: mem.USER | mem.WRITE}}
	Boot(ins, kernel, user, regions)

	kpte, ok := kernel.PTE(0x1000)
	if !ok || !kpte.Present() {
		t.Fatal("expected region present in kernel tree")
	}
	upte, ok := user.PTE(0x1000)
	if !ok || !upte.Present() {
		t.Fatal("expected USER region present in user tree too")
	}
}
