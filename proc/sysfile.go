package proc

import (
	"rv6/defs"
	"rv6/fd"
	"rv6/fdops"
	"rv6/fs"
	"rv6/limits"
	"rv6/pipe"
	"rv6/spinlock"
	"rv6/stat"
	"rv6/ustr"
	"rv6/vm"
)

// Copyout/Copyin let p itself satisfy fdops.AddrSpace, so fdops.Userbuf_t
// can drive a real read()/write() against this process's address space
// without fdops importing vm (spec §9's kernel/user pointer polymorphism).
func (p *Proc_t) Copyout(dstva uintptr, src []uint8, n int) defs.Err_t {
	return vm.Copyout(p.pagetable, dstva, src, n)
}

func (p *Proc_t) Copyin(dst []uint8, srcva uintptr, n int) defs.Err_t {
	return vm.Copyin(p.pagetable, dst, srcva, n)
}

var _ fdops.AddrSpace = (*Proc_t)(nil)

// fdalloc installs f in p's lowest free descriptor slot (spec §4.10's
// "open-file table (size NOFILE)").
func fdalloc(p *Proc_t, f *fd.Fd_t) (int, defs.Err_t) {
	for i, cur := range p.ofile {
		if cur == nil {
			p.ofile[i] = f
			return i, 0
		}
	}
	return -1, -defs.EMFILE
}

func getfd(p *Proc_t, fdn int) (*fd.Fd_t, defs.Err_t) {
	if fdn < 0 || fdn >= limits.NOFILE || p.ofile[fdn] == nil {
		return nil, -defs.EINVAL
	}
	return p.ofile[fdn], 0
}

// Open resolves path against p's cwd through fsys and installs the result
// as a new descriptor on p (spec §4.10 open).
func Open(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, path ustr.Ustr, flags defs.Err_t, mode int) (int, defs.Err_t) {
	ofd, err := fsys.Fs_open(h, path, flags, mode, p.cwd, 0, 0)
	if err != 0 {
		return -1, err
	}
	fdn, ferr := fdalloc(p, ofd)
	if ferr != 0 {
		fd.Close_panic(ofd)
		return -1, ferr
	}
	return fdn, 0
}

// Close releases p's descriptor fdn.
func Close(p *Proc_t, fdn int) defs.Err_t {
	ofd, err := getfd(p, fdn)
	if err != 0 {
		return err
	}
	p.ofile[fdn] = nil
	return ofd.Fops.Close()
}

// Read copies from descriptor fdn into dst, advancing the descriptor's
// offset through the underlying Fdops_i.
func Read(h *spinlock.HartState, p *Proc_t, fdn int, dst fdops.Userio_i) (int, defs.Err_t) {
	ofd, err := getfd(p, fdn)
	if err != 0 {
		return -1, err
	}
	BindCaller(h, p)
	defer UnbindCaller()
	return ofd.Fops.Read(dst)
}

// Write copies from src into descriptor fdn.
func Write(h *spinlock.HartState, p *Proc_t, fdn int, src fdops.Userio_i) (int, defs.Err_t) {
	ofd, err := getfd(p, fdn)
	if err != 0 {
		return -1, err
	}
	BindCaller(h, p)
	defer UnbindCaller()
	return ofd.Fops.Write(src)
}

// Dup installs a second reference to fdn's open file in the lowest free
// slot, bumping the shared refcount rather than copying any state.
func Dup(p *Proc_t, fdn int) (int, defs.Err_t) {
	ofd, err := getfd(p, fdn)
	if err != 0 {
		return -1, err
	}
	nfd, derr := fd.Copyfd(ofd)
	if derr != 0 {
		return -1, derr
	}
	n, aerr := fdalloc(p, nfd)
	if aerr != 0 {
		fd.Close_panic(nfd)
		return -1, aerr
	}
	return n, 0
}

// Pipe allocates a new pipe and installs its read/write ends as two new
// descriptors on p, returning (readfd, writefd).
func Pipe(p *Proc_t) (int, int, defs.Err_t) {
	rd, wr, err := pipe.Pipealloc()
	if err != 0 {
		return -1, -1, err
	}
	rdfd := &fd.Fd_t{Fops: rd, Perms: fd.FD_READ}
	wrfd := &fd.Fd_t{Fops: wr, Perms: fd.FD_WRITE}

	rfd, rerr := fdalloc(p, rdfd)
	if rerr != 0 {
		fd.Close_panic(rdfd)
		fd.Close_panic(wrfd)
		return -1, -1, rerr
	}
	wfd, werr := fdalloc(p, wrfd)
	if werr != 0 {
		p.ofile[rfd] = nil
		fd.Close_panic(rdfd)
		fd.Close_panic(wrfd)
		return -1, -1, werr
	}
	return rfd, wfd, 0
}

// Link creates newp as another name for the inode oldp already names.
func Link(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, oldp, newp ustr.Ustr) defs.Err_t {
	return fsys.Fs_link(h, oldp, newp, p.cwd)
}

// Unlink removes path's directory entry, freeing the inode once its link
// count and open-reference count both reach zero. A directory is removed
// only when it is empty.
func Unlink(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, path ustr.Ustr) defs.Err_t {
	var st stat.Stat_t
	dir := fsys.Fs_stat(h, path, &st, p.cwd) == 0 && st.Type() == uint(defs.T_DIR)
	return fsys.Fs_unlink(h, path, p.cwd, dir)
}

// Mkdir creates path as a new, empty directory.
func Mkdir(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, path ustr.Ustr, mode int) defs.Err_t {
	return fsys.Fs_mkdir(h, path, mode, p.cwd)
}

// Mknod creates path as a device special file with the given major/minor.
func Mknod(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, path ustr.Ustr, major, minor int) defs.Err_t {
	return fsys.Fs_mknod(h, path, major, minor, p.cwd)
}

// Fstat fills st with descriptor fdn's metadata.
func Fstat(p *Proc_t, fdn int, st *stat.Stat_t) defs.Err_t {
	ofd, err := getfd(p, fdn)
	if err != 0 {
		return err
	}
	return ofd.Fops.Fstat(st)
}

// Chdir replaces p's working directory with path, resolved against the
// old one; the old cwd's descriptor is closed only once it is safely
// swapped in for the new one (spec §4.10 chdir).
func Chdir(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, path ustr.Ustr) defs.Err_t {
	full := p.cwd.Fullpath(path)
	ip, err := fsys.Namei(h, full)
	if err != 0 {
		return err
	}
	fsys.Ilock(h, ip)
	if ip.Type() != defs.T_DIR {
		fsys.Iunlockput(h, ip)
		return -defs.ENOTDIR
	}
	fsys.Iunlock(h, ip)

	nf := fsys.MkFile(ip, true, false)
	old := p.cwd
	p.cwd = &fd.Cwd_t{Fd: &fd.Fd_t{Fops: nf}, Path: full}
	if old != nil && old.Fd != nil {
		fd.Close_panic(old.Fd)
	}
	return 0
}

// Sbrk grows or shrinks p's heap by n bytes, returning the pre-growth
// break the way xv6's sys_sbrk reports it to user space.
func Sbrk(h *spinlock.HartState, p *Proc_t, n int) (int, defs.Err_t) {
	old := p.sz
	if err := Growproc(h, p, n); err != 0 {
		return -1, err
	}
	return old, 0
}

// Getpid returns p's process ID.
func Getpid(p *Proc_t) int { return p.Pid() }
