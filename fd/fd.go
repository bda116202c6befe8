// Package fd implements the open file-descriptor table entry and the
// per-process current-working-directory handle.
package fd

import (
	"sync"

	"rv6/defs"
	"rv6/fdops"
	"rv6/ustr"
)

// File descriptor permission bits.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

/// Fd_t represents one open file descriptor.
type Fd_t struct {
	// Fops is a pointer-receiver interface, thus a reference, not a value.
	Fops  fdops.Fdops_i
	Perms int
}

/// Copyfd duplicates an open file descriptor by reopening its backing
/// operations (bumps the shared refcount rather than copying state).
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	if err := nfd.Fops.Reopen(); err != 0 {
		return nil, err
	}
	return nfd, 0
}

/// Close_panic closes the descriptor and panics if Close reports an error,
/// for call sites (e.g. process exit) where a close failure is a kernel bug.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("fd: close must succeed")
	}
}

/// Cwd_t tracks a process's current working directory. The mutex
/// serializes concurrent chdir() calls against readers of Path.
type Cwd_t struct {
	sync.Mutex
	Fd   *Fd_t
	Path ustr.Ustr
}

/// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	full := append(append(ustr.Ustr{}, cwd.Path...), '/')
	return append(full, p...)
}

/// MkRootCwd constructs a Cwd_t rooted at "/" backed by fd.
func MkRootCwd(fd *Fd_t) *Cwd_t {
	return &Cwd_t{Fd: fd, Path: ustr.MkUstrRoot()}
}
