package fs

import (
	"sync"

	"rv6/dev"
	"rv6/defs"
	"rv6/fdops"
	"rv6/spinlock"
	"rv6/stat"
)

// File_t is the open-file variant backing a regular file, a directory
// opened for fstat/readdir-by-hand, or a device special file (spec §6's
// "File handle" kind ∈ {INODE, DEVICE}; PIPE lives in its own package).
// refcount tracks dup()'d descriptors sharing this one offset.
type File_t struct {
	mu       sync.Mutex
	fs       *Fs_t
	readable bool
	writable bool
	refcount int
	off      int
	ip       *Inode_t
	isdev    bool
	major    int
}

var _ fdops.Fdops_i = (*File_t)(nil)

/// MkFile wraps an already-referenced inode ip as an open file handle.
func (fs *Fs_t) MkFile(ip *Inode_t, readable, writable bool) *File_t {
	return &File_t{fs: fs, ip: ip, readable: readable, writable: writable, refcount: 1}
}

/// MkDevFile wraps a device special inode ip as an open file handle
/// dispatching through the device-switch table.
func (fs *Fs_t) MkDevFile(ip *Inode_t, major int, readable, writable bool) *File_t {
	return &File_t{fs: fs, ip: ip, isdev: true, major: major, readable: readable, writable: writable, refcount: 1}
}

// hart resolves the calling goroutine's hart state via the proc
// package's installed hook (spinlock.SetCurHartHook), since Fdops_i's
// fixed method set leaves no room for an explicit *HartState parameter.
func (f *File_t) hart() *spinlock.HartState { return spinlock.CurHart() }

/// Close drops a reference, releasing the backing inode once the last
/// descriptor sharing it closes.
func (f *File_t) Close() defs.Err_t {
	f.mu.Lock()
	f.refcount--
	last := f.refcount == 0
	f.mu.Unlock()
	if !last {
		return 0
	}
	h := f.hart()
	f.fs.log.Begin_op(h)
	f.fs.Iput(h, f.ip)
	f.fs.log.End_op(h)
	return 0
}

/// Reopen bumps the reference count for a dup()'d descriptor.
func (f *File_t) Reopen() defs.Err_t {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
	return 0
}

/// Fstat copies the backing inode's metadata into st.
func (f *File_t) Fstat(st *stat.Stat_t) defs.Err_t {
	h := f.hart()
	f.fs.Ilock(h, f.ip)
	f.fs.Stati(f.ip, st)
	f.fs.Iunlock(h, f.ip)
	return 0
}

/// Lseek repositions this descriptor's cursor.
func (f *File_t) Lseek(off int, whence int) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch whence {
	case defs.SEEK_SET:
		f.off = off
	case defs.SEEK_CUR:
		f.off += off
	case defs.SEEK_END:
		h := f.hart()
		f.fs.Ilock(h, f.ip)
		f.off = int(f.ip.size) + off
		f.fs.Iunlock(h, f.ip)
	default:
		return 0, -defs.EINVAL
	}
	if f.off < 0 {
		f.off = 0
		return 0, -defs.EINVAL
	}
	return f.off, 0
}

/// Read copies from the current offset into dst, advancing the cursor.
func (f *File_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if !f.readable {
		return 0, -defs.EINVAL
	}
	if f.isdev {
		d, ok := dev.Lookup(f.major)
		if !ok {
			return 0, -defs.EINVAL
		}
		return d.Read(dst)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.hart()
	f.fs.Ilock(h, f.ip)
	n, err := f.fs.Readi(h, f.ip, dst, f.off, dst.Remain())
	f.fs.Iunlock(h, f.ip)
	if err != 0 {
		return n, err
	}
	f.off += n
	return n, 0
}

/// Write copies src into the file at the current offset, advancing the
/// cursor, inside its own transaction.
func (f *File_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if !f.writable {
		return 0, -defs.EINVAL
	}
	if f.isdev {
		d, ok := dev.Lookup(f.major)
		if !ok {
			return 0, -defs.EINVAL
		}
		return d.Write(src)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.hart()
	f.fs.log.Begin_op(h)
	f.fs.Ilock(h, f.ip)
	wrote, err := f.fs.Writei(h, f.ip, src, f.off, src.Remain())
	f.fs.Iunlock(h, f.ip)
	f.fs.log.End_op(h)
	if err != 0 {
		return wrote, err
	}
	f.off += wrote
	return wrote, 0
}
