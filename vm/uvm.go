package vm

import (
	"rv6/defs"
	"rv6/mem"
	"rv6/riscv"
)

// UvmAlloc grows a user image page-by-page from oldSize to newSize,
// zeroing each new frame and mapping it PTE_R|PTE_U|extraPerm. Rolls back
// on failure (spec §4.2).
func UvmAlloc(root Pagetable_t, oldSize, newSize int, extraPerm uint64) (int, defs.Err_t) {
	if newSize <= oldSize {
		return oldSize, 0
	}
	oldSz := riscv.Pgroundup(uintptr(oldSize))
	a := oldSz
	for ; a < uintptr(newSize); a += riscv.PGSIZE {
		pa, ok := mem.Physmem.Alloc()
		if !ok {
			UvmDealloc(root, int(a), oldSize)
			return oldSize, -defs.ENOMEM
		}
		perm := uint64(riscv.PTE_R | riscv.PTE_U | riscv.PTE_V) | extraPerm
		if err := Mappages(root, a, riscv.PGSIZE, pa, perm); err != 0 {
			mem.Physmem.Free(pa)
			UvmDealloc(root, int(a), oldSize)
			return oldSize, err
		}
	}
	return newSize, 0
}

// UvmDealloc shrinks a user image from oldSize to newSize, unmapping and
// freeing the pages that fall out of range.
func UvmDealloc(root Pagetable_t, oldSize, newSize int) int {
	if newSize >= oldSize {
		return oldSize
	}
	oldSz := riscv.Pgroundup(uintptr(oldSize))
	newSz := riscv.Pgroundup(uintptr(newSize))
	if newSz < oldSz {
		npages := int(oldSz-newSz) / riscv.PGSIZE
		Unmap(root, newSz, npages, true)
	}
	return newSize
}

// UvmFirst maps a single page at virtual address 0 and copies init's
// bytes into it, for the very first process's image (spec §4.8
// userinit); init must fit in one page.
func UvmFirst(root Pagetable_t, init []byte) defs.Err_t {
	if len(init) > riscv.PGSIZE {
		panic("uvmfirst: init too big")
	}
	pa, ok := mem.Physmem.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	if err := Mappages(root, 0, riscv.PGSIZE, pa, riscv.PTE_R|riscv.PTE_W|riscv.PTE_X|riscv.PTE_U|riscv.PTE_V); err != 0 {
		mem.Physmem.Free(pa)
		return err
	}
	page := mem.Dmap(pa)
	copy(page[:], init)
	return 0
}

// UvmCopy deep-copies size bytes of user pages from src to dst (no
// sharing): spec Non-goals exclude copy-on-write, so every page gets its
// own frame and contents. Rolls back on failure.
func UvmCopy(src, dst Pagetable_t, size int) defs.Err_t {
	var mapped []uintptr
	rollback := func() {
		for _, a := range mapped {
			Unmap(dst, a, 1, true)
		}
	}
	for a := uintptr(0); a < uintptr(size); a += riscv.PGSIZE {
		pte, err := Walk(src, a, false)
		if err != 0 || pte == nil || *pte&riscv.PTE_V == 0 {
			rollback()
			return -defs.EFAULT
		}
		perm := uint64(*pte) & (riscv.PTE_R | riscv.PTE_W | riscv.PTE_X | riscv.PTE_U)
		srcPa := pte2pa(*pte)
		dstPa, ok := mem.Physmem.Alloc()
		if !ok {
			rollback()
			return -defs.ENOMEM
		}
		*mem.Dmap(dstPa) = *mem.Dmap(srcPa)
		if err := Mappages(dst, a, riscv.PGSIZE, dstPa, perm|riscv.PTE_V); err != 0 {
			mem.Physmem.Free(dstPa)
			rollback()
			return err
		}
		mapped = append(mapped, a)
	}
	return 0
}
