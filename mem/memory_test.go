package mem

import "testing"

func TestMemoryAllocLookup(t *testing.T) {
	m := NewMemory(0x1000)

	a1, t1 := m.Alloc()
	a2, t2 := m.Alloc()

	if a1 == a2 {
		t.Fatal("successive Alloc calls must return distinct addresses")
	}
	if !Aligned(uint32(a1)) || !Aligned(uint32(a2)) {
		t.Fatal("fabricated addresses must be page aligned")
	}

	if m.Lookup(a1) != t1 {
		t.Fatal("Lookup(a1) did not return the table handed out by Alloc")
	}
	if m.Lookup(a2) != t2 {
		t.Fatal("Lookup(a2) did not return the table handed out by Alloc")
	}
}

func TestMemoryLookupUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Lookup of an address never allocated should panic")
		}
	}()
	m := NewMemory(0x1000)
	m.Lookup(0x9999000)
}

func TestNewMemoryRejectsUnalignedBase(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewMemory with an unaligned base should panic")
		}
	}()
	NewMemory(0x1001)
}

func TestMemoryCount(t *testing.T) {
	m := NewMemory(0)
	if m.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", m.Count())
	}
	m.Alloc()
	m.Alloc()
	if m.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", m.Count())
	}
}
