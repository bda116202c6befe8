package vm

import (
	"rv6/defs"
	"rv6/limits"
	"rv6/mem"
	"rv6/riscv"
)

// KvmMap installs a direct-map (VA==PA) translation for the kernel page
// table, identical to the per-process Mappages but panicking on failure:
// kernel mappings are laid out once at boot and must never collide.
func KvmMap(kpt Pagetable_t, va uintptr, pa mem.Pa_t, size int, perm uint64) {
	if err := Mappages(kpt, va, size, pa, perm); err != 0 {
		panic("kvmmap failed")
	}
}

// MkKernelPagetable builds the direct-mapped kernel page table: all of RAM
// identity-mapped RW, the trampoline page at the fixed high VA (no
// PTE_U), and a kernel stack (with a guard gap) for every process table
// slot, per spec §4.2's "every per-process page table additionally maps
// the trampoline... without the U flag" and the design note on
// proc_mapstacks.
//
// trampolinePa is supplied by the boot/trap glue (external per spec §1);
// mmio is a caller-supplied list of {va, pa, size} MMIO windows (UART,
// virtio, PLIC) to direct-map uncached.
func MkKernelPagetable(ramStart, ramEnd mem.Pa_t, trampolinePa mem.Pa_t, mmio []MMIOWindow) (Pagetable_t, defs.Err_t) {
	kpt, err := Mkpagetable()
	if err != 0 {
		return nil, err
	}
	KvmMap(kpt, uintptr(ramStart), ramStart, int(ramEnd-ramStart), riscv.PTE_R|riscv.PTE_W)
	for _, w := range mmio {
		KvmMap(kpt, w.VA, mem.Pa_t(w.PA), w.Size, riscv.PTE_R|riscv.PTE_W)
	}
	KvmMap(kpt, riscv.TRAMPOLINE, trampolinePa, riscv.PGSIZE, riscv.PTE_R|riscv.PTE_X)

	for i := 0; i < limits.NPROC; i++ {
		pa, ok := mem.Physmem.Alloc()
		if !ok {
			return nil, -defs.ENOMEM
		}
		KvmMap(kpt, riscv.Kstack(i), pa, riscv.PGSIZE, riscv.PTE_R|riscv.PTE_W)
	}
	return kpt, 0
}

/// MMIOWindow describes one memory-mapped-I/O region the kernel page table
/// must direct-map (UART, virtio-mmio, PLIC).
type MMIOWindow struct {
	VA, PA uintptr
	Size   int
}
