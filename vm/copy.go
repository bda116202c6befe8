package vm

import (
	"rv6/defs"
	"rv6/mem"
	"rv6/riscv"
	"rv6/ustr"
)

// Copyout copies n bytes from the kernel buffer src into user virtual
// memory starting at dstva, one physical page at a time via WalkAddr.
func Copyout(root Pagetable_t, dstva uintptr, src []uint8, n int) defs.Err_t {
	for n > 0 {
		va0 := riscv.Pgrounddown(dstva)
		pa0 := WalkAddr(root, va0)
		if pa0 == 0 {
			return -defs.EFAULT
		}
		off := dstva - va0
		cnt := riscv.PGSIZE - int(off)
		if cnt > n {
			cnt = n
		}
		page := mem.Dmap(pa0)
		copy(page[off:int(off)+cnt], src[:cnt])
		n -= cnt
		src = src[cnt:]
		dstva = va0 + riscv.PGSIZE
	}
	return 0
}

// Copyin copies n bytes from user virtual memory starting at srcva into
// the kernel buffer dst.
func Copyin(root Pagetable_t, dst []uint8, srcva uintptr, n int) defs.Err_t {
	for n > 0 {
		va0 := riscv.Pgrounddown(srcva)
		pa0 := WalkAddr(root, va0)
		if pa0 == 0 {
			return -defs.EFAULT
		}
		off := srcva - va0
		cnt := riscv.PGSIZE - int(off)
		if cnt > n {
			cnt = n
		}
		page := mem.Dmap(pa0)
		copy(dst[:cnt], page[off:int(off)+cnt])
		n -= cnt
		dst = dst[cnt:]
		srcva = va0 + riscv.PGSIZE
	}
	return 0
}

// Copyinstr copies a NUL-terminated string from user memory at srcva into
// dst, stopping at the first NUL or after max bytes (whichever comes
// first). It returns the number of bytes copied, including the NUL if one
// was found, or an error if srcva is never mapped or max is exhausted
// without finding a NUL.
func Copyinstr(root Pagetable_t, dst []uint8, srcva uintptr, max int) (int, defs.Err_t) {
	got := 0
	for got < max {
		va0 := riscv.Pgrounddown(srcva)
		pa0 := WalkAddr(root, va0)
		if pa0 == 0 {
			return 0, -defs.EFAULT
		}
		off := int(srcva - va0)
		page := mem.Dmap(pa0)
		for off < riscv.PGSIZE && got < max {
			c := page[off]
			dst[got] = c
			got++
			off++
			if c == 0 {
				return got, 0
			}
		}
		srcva = va0 + riscv.PGSIZE
	}
	return 0, -defs.ENAMETOOLONG
}

// CopyinUstr is a convenience wrapper returning the copied path as an
// ustr.Ustr (without the trailing NUL), used by the exec/open family of
// operations to pull a path string out of user space.
func CopyinUstr(root Pagetable_t, srcva uintptr, maxlen int) (ustr.Ustr, defs.Err_t) {
	buf := make([]uint8, maxlen+1)
	n, err := Copyinstr(root, buf, srcva, maxlen+1)
	if err != 0 {
		return nil, err
	}
	if n > 0 && buf[n-1] == 0 {
		n--
	}
	return ustr.Ustr(buf[:n]), 0
}
