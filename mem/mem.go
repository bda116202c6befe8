// Package mem implements the kernel's physical frame allocator: a single
// free list of fixed-size frames protected by one global lock (spec §4.1).
//
// Unlike the teacher's x86 allocator (biscuit/src/mem/mem.go), frames here
// carry no reference count: spec Non-goals exclude copy-on-write and
// demand paging, so a frame is simply mapped-by-one-pagetable-or-free.
package mem

import (
	"fmt"
	"sync"
	"unsafe"

	"rv6/riscv"
)

/// Pa_t is a physical address.
type Pa_t uintptr

/// Pg_t is the byte contents of one physical frame.
type Pg_t [riscv.PGSIZE]uint8

// run_t is a free frame; its first word doubles as the free-list's next
// pointer, exactly as xv6's kalloc.c embeds "struct run" in the page itself.
type run_t struct {
	next *run_t
}

/// Kalloc_t is the kernel's physical frame allocator.
type Kalloc_t struct {
	sync.Mutex
	freelist *run_t
	base     Pa_t /// lowest physical address ever handed to Free
	top      Pa_t /// highest physical address ever handed to Free
}

/// Physmem is the global physical frame allocator instance.
var Physmem = &Kalloc_t{}

// poison is written over a freed frame to help catch use-after-free; xv6
// does the same in kfree before relinking the page.
const poison = 0x69

/// Init seeds the free list with every page-aligned frame in [start, end).
func (k *Kalloc_t) Init(start, end Pa_t) {
	k.Lock()
	defer k.Unlock()
	start = Pa_t(riscv.Pgroundup(uintptr(start)))
	k.base, k.top = start, end
	for p := start; p+Pa_t(riscv.PGSIZE) <= end; p += Pa_t(riscv.PGSIZE) {
		k.freeLocked(p)
	}
}

/// Alloc removes and returns one frame from the free list, or ok=false if
/// none remain.
func (k *Kalloc_t) Alloc() (Pa_t, bool) {
	k.Lock()
	defer k.Unlock()
	r := k.freelist
	if r == nil {
		return 0, false
	}
	k.freelist = r.next
	pa := Pa_t(uintptr(unsafe.Pointer(r)))
	pg := (*Pg_t)(unsafe.Pointer(r))
	for i := range pg {
		pg[i] = 0
	}
	return pa, true
}

/// Free returns a frame to the free list, poisoning its contents first.
func (k *Kalloc_t) Free(pa Pa_t) {
	if pa%Pa_t(riscv.PGSIZE) != 0 || pa < k.base || pa >= k.top {
		panic("mem.Free: bad physical address")
	}
	k.Lock()
	defer k.Unlock()
	k.freeLocked(pa)
}

func (k *Kalloc_t) freeLocked(pa Pa_t) {
	pg := (*Pg_t)(unsafe.Pointer(uintptr(pa)))
	for i := range pg {
		pg[i] = poison
	}
	r := (*run_t)(unsafe.Pointer(pa))
	r.next = k.freelist
	k.freelist = r
}

/// Freecount reports how many frames currently sit on the free list
/// (diagnostic; reported by String).
func (k *Kalloc_t) Freecount() int {
	k.Lock()
	defer k.Unlock()
	n := 0
	for r := k.freelist; r != nil; r = r.next {
		n++
	}
	return n
}

/// Dmap returns a directly-addressable page for the physical frame at pa.
// On real hardware this would go through the kernel's identity-mapped
// direct region; hosted here as a straight pointer cast since the frame
// itself is just a Go-allocated byte array referenced by its own address.
func Dmap(pa Pa_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(uintptr(pa)))
}

/// String reports free-frame counts for debugging.
func (k *Kalloc_t) String() string {
	return fmt.Sprintf("mem: %d frames free", k.Freecount())
}
