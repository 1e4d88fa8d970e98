package vm

import (
	"fmt"
	"strings"
	"unicode"

	"paevm/mem"
)

// entryCode renders one table entry as a single character describing its
// access rights: '.' non-present, 'r'/'x'/'w'/'a' for read-only,
// read-execute, read-write, or read-write-execute, uppercased when the
// entry is user accessible. It isn't trying to capture every flag, just
// the most interesting combinations a reader would want at a glance.
func entryCode(e mem.Entry) byte {
	if !e.Present() {
		return '.'
	}

	var c byte
	switch {
	case e.Writable() && e.ExecDisabled():
		c = 'w'
	case e.Writable():
		c = 'a'
	case e.ExecDisabled():
		c = 'r'
	default:
		c = 'x'
	}

	if e.UserAccessible() {
		c = byte(unicode.ToUpper(rune(c)))
	}
	return c
}

// Dump renders tree as a human-readable tree of entry codes: the PDPT's 4
// entries, then for each present PDPTE the 512 PDE codes of its PD, then
// for each present, non-large PDE the 512 PTE codes of its PT.
func Dump(tree *Tree) string {
	var b strings.Builder
	dumpPDPT(&b, tree)
	return b.String()
}

func dumpPDPT(b *strings.Builder, tree *Tree) {
	fmt.Fprintf(b, "PDPT for 0x00000000 - 0xFFFFFFFF\n")
	for i := range tree.PDPT {
		b.WriteByte(entryCode(tree.PDPT[i]))
	}
	b.WriteByte('\n')

	for i := range tree.PDPT {
		pdpte := tree.PDPT[i]
		if !pdpte.Present() {
			continue
		}
		base := mem.VA(i) * mem.PDArea
		pd := tree.mem.Lookup(pdpte.Addr())
		dumpPD(b, tree, pd, base, i)
	}
}

func dumpPD(b *strings.Builder, tree *Tree, pd *mem.Table, base mem.VA, index int) {
	fmt.Fprintf(b, "PD %d for 0x%08X - 0x%08X\n", index, base, base+mem.PDArea-1)
	writeRow(b, pd[:])

	for i := range pd {
		pde := pd[i]
		if !pde.Present() || pde.Large() {
			continue
		}
		ptBase := base + mem.VA(i)*mem.PTArea
		pt := tree.mem.Lookup(pde.Addr())
		dumpPT(b, pt, ptBase, i)
	}
}

func dumpPT(b *strings.Builder, pt *mem.Table, base mem.VA, index int) {
	fmt.Fprintf(b, "PT %d for 0x%08X - 0x%08X\n", index, base, base+mem.PTArea-1)
	writeRow(b, pt[:])
}

// writeRow writes one entry code per entry, wrapping every 64 columns the
// way a fixed-width terminal dump would.
func writeRow(b *strings.Builder, entries []mem.Entry) {
	for i, e := range entries {
		b.WriteByte(entryCode(e))
		if (i+1)%64 == 0 {
			b.WriteByte('\n')
		}
	}
	if len(entries)%64 != 0 {
		b.WriteByte('\n')
	}
}
