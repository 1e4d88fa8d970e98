package mem

// Table sizing. A PDPT has 4 entries covering 4x1GiB (the full 32-bit
// address space). A PD has 512 entries of 2MiB each. A PT has 512 entries
// of 4KiB each.
const (
	NumPDPTE = 4
	NumPDE   = 512
	NumPTE   = 512
)

// PDPT is the top-level, 4-entry page-directory-pointer table. Real PAE
// hardware requires it 32-byte aligned; this package never hands a PDPT's
// address to hardware, so only its in-memory shape matters here.
type PDPT [NumPDPTE]Entry

// Table is the common representation for both a PD and a PT: 512 entries,
// one 4KiB frame. PD and PT share this type because they are, bit for
// bit, the same shape - the source's infamous "copy sizeof(PD) into a PT
// slot" bug (see DESIGN.md) is harmless for exactly this reason, and with
// one type for both levels a copy is a plain Table assignment whose size
// is always right.
type Table [NumPDE]Entry

// PDPTEIndex extracts the PDPT index (bits 30-31) for a virtual address.
func PDPTEIndex(va VA) int { return int((va >> 30) & 0x3) }

// PDEIndex extracts the PD index (bits 21-29) for a virtual address.
func PDEIndex(va VA) int { return int((va >> 21) & 0x1FF) }

// PTEIndex extracts the PT index (bits 12-20) for a virtual address.
func PTEIndex(va VA) int { return int((va >> 12) & 0x1FF) }

// PDArea is the span of address space covered by a single PDPTE/PD (1GiB).
const PDArea VA = 1 << 30

// PTArea is the span of address space covered by a single PT (2MiB).
const PTArea VA = 1 << 21
