// Package vm implements the Sv39 three-level page table: walk/map/unmap,
// address-space lifecycle for fork/exec/growth, and the user<->kernel copy
// primitives syscalls use to cross the trust boundary (spec §4.2).
//
// Grounded on biscuit/src/vm/as.go's method-per-operation, Err_t-returning
// shape, rewritten against a non-COW Sv39 radix tree: spec Non-goals
// exclude copy-on-write and demand paging, so unlike the teacher there is
// no refcounted physical page underneath every PTE, and uvm_copy always
// performs a deep copy.
package vm

import (
	"unsafe"

	"rv6/defs"
	"rv6/mem"
	"rv6/riscv"
)

/// Pte_t is one Sv39 page-table entry.
type Pte_t uint64

/// Pagetable_t is a pointer to one level of the 512-entry radix tree.
type Pagetable_t *[512]Pte_t

func pte2pa(pte Pte_t) mem.Pa_t {
	return mem.Pa_t((pte >> 10) << 12)
}

func pa2pte(pa mem.Pa_t) Pte_t {
	return Pte_t((uint64(pa) >> 12) << 10)
}

func pt(pa mem.Pa_t) Pagetable_t {
	return Pagetable_t(unsafe.Pointer(uintptr(pa)))
}

/// Mkpagetable allocates and zeroes a fresh top-level page table page.
func Mkpagetable() (Pagetable_t, defs.Err_t) {
	pa, ok := mem.Physmem.Alloc()
	if !ok {
		return nil, -defs.ENOMEM
	}
	return pt(pa), 0
}

// Walk returns a pointer to the PTE for va within root's radix tree,
// allocating interior (level 2, level 1) page-table pages along the way
// when alloc is true. It never returns a pointer into an unallocated
// interior node (spec §4.2).
func Walk(root Pagetable_t, va uintptr, alloc bool) (*Pte_t, defs.Err_t) {
	if va >= riscv.MAXVA {
		panic("walk: va out of range")
	}
	pagetable := root
	for level := 2; level > 0; level-- {
		pte := &pagetable[riscv.Px(level, va)]
		if *pte&riscv.PTE_V != 0 {
			pagetable = pt(pte2pa(*pte))
		} else {
			if !alloc {
				return nil, -defs.ENOMEM
			}
			pa, ok := mem.Physmem.Alloc()
			if !ok {
				return nil, -defs.ENOMEM
			}
			pagetable = pt(pa)
			*pte = pa2pte(pa) | riscv.PTE_V
		}
	}
	return &pagetable[riscv.Px(0, va)], 0
}

// WalkAddr is the user-only lookup: it returns the physical address backing
// va iff the leaf PTE is valid AND carries PTE_U; otherwise 0.
func WalkAddr(root Pagetable_t, va uintptr) mem.Pa_t {
	if va >= riscv.MAXVA {
		return 0
	}
	pte, err := Walk(root, va, false)
	if err != 0 || pte == nil {
		return 0
	}
	if *pte&riscv.PTE_V == 0 || *pte&riscv.PTE_U == 0 {
		return 0
	}
	return pte2pa(*pte)
}

// Mappages installs leaf entries covering [va, va+size) mapped to the
// physical range starting at pa, with the given permission bits. va and
// size are page-aligned down/up by the caller's convention (spec rounds
// va down). Fails with EEXIST if any target leaf is already valid; on any
// failure it clears the leaves it already installed in this call
// (unmapPrefix) before returning. Interior page-table pages Walk
// allocated along the way are kept.
func Mappages(root Pagetable_t, va uintptr, size int, pa mem.Pa_t, perm uint64) defs.Err_t {
	if size == 0 {
		panic("mappages: zero size")
	}
	a := riscv.Pgrounddown(va)
	last := riscv.Pgrounddown(va + uintptr(size) - 1)
	done := []uintptr{}
	for {
		pte, err := Walk(root, a, true)
		if err != 0 {
			unmapPrefix(root, va, done)
			return err
		}
		if *pte&riscv.PTE_V != 0 {
			unmapPrefix(root, va, done)
			return -defs.EEXIST
		}
		*pte = pa2pte(pa) | Pte_t(perm) | riscv.PTE_V
		done = append(done, a)
		if a == last {
			break
		}
		a += riscv.PGSIZE
		pa += mem.Pa_t(riscv.PGSIZE)
	}
	return 0
}

func unmapPrefix(root Pagetable_t, firstva uintptr, committed []uintptr) {
	for _, a := range committed {
		pte, err := Walk(root, a, false)
		if err == 0 && pte != nil {
			*pte = 0
		}
	}
}

// Unmap removes npages leaves starting at the page-aligned va. Every page
// must currently be a valid leaf. Frees the underlying frames iff
// freePhysical is set.
func Unmap(root Pagetable_t, va uintptr, npages int, freePhysical bool) {
	if va%riscv.PGSIZE != 0 {
		panic("unmap: unaligned va")
	}
	for a := va; a < va+uintptr(npages)*riscv.PGSIZE; a += riscv.PGSIZE {
		pte, err := Walk(root, a, false)
		if err != 0 || pte == nil {
			panic("unmap: walk failed")
		}
		if *pte&riscv.PTE_V == 0 {
			panic("unmap: not mapped")
		}
		if *pte&(riscv.PTE_R|riscv.PTE_W|riscv.PTE_X) == 0 {
			panic("unmap: not a leaf")
		}
		if freePhysical {
			mem.Physmem.Free(pte2pa(*pte))
		}
		*pte = 0
	}
}

// Freewalk recursively frees every interior page-table frame under
// pagetable; all leaves must already be unmapped (spec §4.2
// free_user_space).
func Freewalk(pagetable Pagetable_t) {
	for i := 0; i < 512; i++ {
		pte := pagetable[i]
		if pte&riscv.PTE_V != 0 && pte&(riscv.PTE_R|riscv.PTE_W|riscv.PTE_X) == 0 {
			child := pt(pte2pa(pte))
			Freewalk(child)
			pagetable[i] = 0
		} else if pte&riscv.PTE_V != 0 {
			panic("freewalk: leaf still mapped")
		}
	}
	mem.Physmem.Free(mem.Pa_t(uintptr(unsafe.Pointer(pagetable))))
}

// FreeUserSpace unmaps [0, size) freeing frames, then recursively frees
// every interior table frame and the root itself.
func FreeUserSpace(root Pagetable_t, size int) {
	if size > 0 {
		Unmap(root, 0, int(riscv.Pgroundup(uintptr(size)))/riscv.PGSIZE, true)
	}
	Freewalk(root)
}

// UvmClearU clears PTE_U on the leaf at va, used to turn the page just
// below the user stack into an inaccessible guard page after exec() maps
// both.
func UvmClearU(root Pagetable_t, va uintptr) {
	pte, err := Walk(root, va, false)
	if err != 0 || pte == nil {
		panic("uvmclearu: walk failed")
	}
	*pte &^= riscv.PTE_U
}
