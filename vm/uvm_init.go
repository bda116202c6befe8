package vm

import (
	"rv6/defs"
	"rv6/mem"
	"rv6/riscv"
)

// ProcPagetable builds a fresh per-process page table containing only the
// trampoline and trapframe mappings (spec §4.8 alloc_proc). trapframePa is
// the physical frame backing this process's pinned trapframe.
func ProcPagetable(trampolinePa, trapframePa mem.Pa_t) (Pagetable_t, defs.Err_t) {
	pt, err := Mkpagetable()
	if err != 0 {
		return nil, err
	}
	if err := Mappages(pt, riscv.TRAMPOLINE, riscv.PGSIZE, trampolinePa, riscv.PTE_R|riscv.PTE_X); err != 0 {
		Freewalk(pt)
		return nil, err
	}
	if err := Mappages(pt, riscv.TRAPFRAME, riscv.PGSIZE, trapframePa, riscv.PTE_R|riscv.PTE_W); err != 0 {
		Unmap(pt, riscv.TRAMPOLINE, 1, false)
		Freewalk(pt)
		return nil, err
	}
	return pt, 0
}

// UvmUnmapTrapframe tears down a process's trampoline/trapframe mappings
// without freeing the (shared) trampoline frame or the trapframe frame,
// whose lifetime is owned by the caller (spec §4.8 freeproc).
func UvmUnmapTrapframe(pt Pagetable_t) {
	Unmap(pt, riscv.TRAMPOLINE, 1, false)
	Unmap(pt, riscv.TRAPFRAME, 1, false)
}

// FreeProcSpace tears down a process's entire address space: the
// trampoline/trapframe mappings ProcPagetable installed (left unfreed,
// since their frames outlive this call), then every other mapped frame
// below size plus the page-table frames themselves (spec §4.8 freeproc).
func FreeProcSpace(pt Pagetable_t, size int) {
	UvmUnmapTrapframe(pt)
	FreeUserSpace(pt, size)
}
