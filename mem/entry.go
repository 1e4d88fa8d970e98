package mem

// Entry is a PAE page-table entry: a 64-bit value partitioned into flag
// bits and a frame-number field. The same type represents a PDPTE, a PDE,
// or a PTE; which fields are meaningful depends on the level at which the
// entry is found (see the walker and installer, which know the level).
type Entry uint64

// Hardware and software-ignored flag bits recognized by this package.
const (
	PRESENT         Entry = 1 << 0
	WRITE           Entry = 1 << 1
	USER            Entry = 1 << 2
	WRITE_THROUGH   Entry = 1 << 3
	CACHE_DISABLE   Entry = 1 << 4
	PAGE_SIZE       Entry = 1 << 7  // directory only: 1 = 2MiB leaf
	ANY_EXEC        Entry = 1 << 9  // software-ignored bit; PDE-only sticky marker
	RUNTIME_USER    Entry = 1 << 10 // software-ignored bit; meaningful only above this package
	EXECUTE_DISABLE Entry = 1 << 63 // top bit
)

// FrameMask extracts the physical-address bits of an entry (bits 12-51 in
// real PAE). Only bits 12-31 are ever set by this package: physical
// addresses are clamped to 32 bits (see Pa_t), so the high bits of the
// PAE frame field are simply never used. The mask is still the full PAE
// width so the codec stays bit-exact to the hardware format.
const FrameMask Entry = 0x000FFFFFFFFFF000

// PDPTEMask, PDEMask and PTEMask are the flag bits each entry kind honors
// when OR-ed in by the installer or mutator. ANY_EXEC deliberately never
// appears in any of these: it is a software-only marker and must never
// leak into a hardware-checked mask.
const (
	PDPTEMask = PRESENT
	PDEMask   = PRESENT | WRITE | USER
	PTEMask   = PDEMask | EXECUTE_DISABLE | WRITE_THROUGH | CACHE_DISABLE
)

// Present reports whether the entry's PRESENT bit is set.
func (e Entry) Present() bool { return e&PRESENT != 0 }

// Writable reports whether the entry's WRITE bit is set.
func (e Entry) Writable() bool { return e&WRITE != 0 }

// UserAccessible reports whether the entry's USER bit is set.
func (e Entry) UserAccessible() bool { return e&USER != 0 }

// WriteThrough reports whether the entry requests write-through caching.
func (e Entry) WriteThrough() bool { return e&WRITE_THROUGH != 0 }

// CacheDisabled reports whether the entry disables caching.
func (e Entry) CacheDisabled() bool { return e&CACHE_DISABLE != 0 }

// Large reports whether a PDE's PAGE_SIZE bit marks it as a 2MiB leaf.
func (e Entry) Large() bool { return e&PAGE_SIZE != 0 }

// ExecDisabled reports whether the entry's XD bit forbids execution.
func (e Entry) ExecDisabled() bool { return e&EXECUTE_DISABLE != 0 }

// AnyExec reports whether the PDE-only ANY_EXEC software marker is set.
func (e Entry) AnyExec() bool { return e&ANY_EXEC != 0 }

// Addr returns the physical address encoded in the entry's frame field.
// The field stores the address itself (its low 12 bits are always zero for
// a page-aligned frame, which is exactly the bit pattern a page number
// shifted left by 12 produces), clamped to 32 bits by Pa_t's width.
func (e Entry) Addr() Pa_t {
	return Pa_t(e & FrameMask)
}

// WithAddr returns a copy of e with its frame field replaced by addr,
// leaving all flag bits untouched. addr must be page aligned.
func (e Entry) WithAddr(addr Pa_t) Entry {
	return (e &^ FrameMask) | (Entry(addr) & FrameMask)
}

// MkEntry packs a physical address and a set of flags into a new entry.
// Flag bits that fall inside the frame field are dropped, so flags cannot
// corrupt the address. addr must be page aligned.
func MkEntry(addr Pa_t, flags Entry) Entry {
	return (Entry(addr) & FrameMask) | (flags &^ FrameMask)
}
