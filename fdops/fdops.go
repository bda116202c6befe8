// Package fdops defines the interfaces every open file-descriptor backend
// (pipe, inode, device) implements, and the variant user/kernel buffer
// type those operations read and write through.
package fdops

import "rv6/defs"
import "rv6/stat"

// Userio_i abstracts a destination/source buffer that may live in user or
// kernel memory, so a single Read/Write implementation serves syscalls and
// purely kernel-internal callers (e.g. mkfs) alike. Grounded on the
// kernel/user pointer polymorphism design note (spec §9).
type Userio_i interface {
	Uio_read(src []uint8) (int, defs.Err_t)
	Uio_write(dst []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

/// Ready_t is a bitmask of poll-readiness conditions.
type Ready_t uint8

const (
	R_READ  Ready_t = 1 << 0
	R_WRITE Ready_t = 1 << 1
	R_ERROR Ready_t = 1 << 2
)

/// Pollmsg_t carries a poll request's wanted readiness bits.
type Pollmsg_t struct {
	Events Ready_t
}

// Fdops_i is implemented by every open-file variant (pipe end, inode
// handle, device handle). Close/Reopen model the shared-refcount lifetime
// a dup()'d descriptor has; Lseek/Read/Write/Stat serve the corresponding
// syscalls.
type Fdops_i interface {
	Close() defs.Err_t
	Fstat(*stat.Stat_t) defs.Err_t
	Lseek(off int, whence int) (int, defs.Err_t)
	Read(dst Userio_i) (int, defs.Err_t)
	Write(src Userio_i) (int, defs.Err_t)
	Reopen() defs.Err_t
}
