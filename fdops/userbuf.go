package fdops

import "rv6/defs"

// AddrSpace is the minimal surface Userbuf_t needs from a process address
// space: copyout/copyin over its own page table. Implemented by vm's
// per-process root via thin wrapper methods in the proc package, so fdops
// does not need to import vm directly.
type AddrSpace interface {
	Copyout(dstva uintptr, src []uint8, n int) defs.Err_t
	Copyin(dst []uint8, srcva uintptr, n int) defs.Err_t
}

// Userbuf_t implements Userio_i over a user virtual address range,
// advancing its own cursor across repeated Uio_read/Uio_write calls.
// Grounded on biscuit/src/vm/userbuf.go's Userbuf_t shape.
type Userbuf_t struct {
	as     AddrSpace
	userva uintptr
	len    int
	off    int
}

/// Ub_init wires ub to cover [userva, userva+len) of address space as.
func (ub *Userbuf_t) Ub_init(as AddrSpace, userva, length int) {
	ub.as = as
	ub.userva = uintptr(userva)
	ub.len = length
	ub.off = 0
}

/// Uio_read copies from src into the user range, advancing the cursor.
func (ub *Userbuf_t) Uio_read(src []uint8) (int, defs.Err_t) {
	n := len(src)
	if n > ub.Remain() {
		n = ub.Remain()
	}
	if n == 0 {
		return 0, 0
	}
	if err := ub.as.Copyout(ub.userva+uintptr(ub.off), src, n); err != 0 {
		return 0, err
	}
	ub.off += n
	return n, 0
}

/// Uio_write copies from the user range into dst, advancing the cursor.
func (ub *Userbuf_t) Uio_write(dst []uint8) (int, defs.Err_t) {
	n := len(dst)
	if n > ub.Remain() {
		n = ub.Remain()
	}
	if n == 0 {
		return 0, 0
	}
	if err := ub.as.Copyin(dst[:n], ub.userva+uintptr(ub.off), n); err != 0 {
		return 0, err
	}
	ub.off += n
	return n, 0
}

/// Remain reports how many bytes are left uncopied.
func (ub *Userbuf_t) Remain() int { return ub.len - ub.off }

/// Totalsz reports the full length this buffer was initialized with.
func (ub *Userbuf_t) Totalsz() int { return ub.len }

// Fakeubuf_t implements Userio_i directly over a plain kernel-memory byte
// slice, used by mkfs and tests that need to drive file-system operations
// without a real user address space. Grounded on
// biscuit/src/vm/userbuf.go's Fakeubuf_t.
type Fakeubuf_t struct {
	data []uint8
	off  int
}

/// Fake_init wires ub to read from / write into data starting at offset 0.
func (ub *Fakeubuf_t) Fake_init(data []uint8) {
	ub.data = data
	ub.off = 0
}

/// Uio_read copies from src into the backing slice, advancing the cursor.
func (ub *Fakeubuf_t) Uio_read(src []uint8) (int, defs.Err_t) {
	n := copy(ub.data[ub.off:], src)
	ub.off += n
	return n, 0
}

/// Uio_write copies from the backing slice into dst, advancing the cursor.
func (ub *Fakeubuf_t) Uio_write(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, ub.data[ub.off:])
	ub.off += n
	return n, 0
}

/// Remain reports how many bytes are left uncopied.
func (ub *Fakeubuf_t) Remain() int { return len(ub.data) - ub.off }

/// Totalsz reports the full length of the backing slice.
func (ub *Fakeubuf_t) Totalsz() int { return len(ub.data) }
