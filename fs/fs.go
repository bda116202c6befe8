package fs

import (
	"rv6/defs"
	"rv6/fd"
	"rv6/fdops"
	"rv6/spinlock"
	"rv6/stat"
	"rv6/ustr"
)

// Fs_t ties the buffer cache, write-ahead log, superblock, and in-memory
// inode table together into the facade the rest of the kernel calls
// (spec §4.6, §4.7). Naming follows the teacher's Fs_xxx convention for
// the syscall-shaped operations, matching biscuit/src/ufs.Ufs_t's calling
// surface over its own fs.Fs_t.
type Fs_t struct {
	bc   *Bcache_t
	log  *Log_t
	sb   *Superblock_t
	dev  int
	itab itable_t
	nc   *namecache_t
}

// StartFS mounts disk as dev, validating its superblock, replaying any
// uncommitted log transaction, and sweeping orphaned inodes left behind
// by a crash between unlink and last close (SPEC_FULL §12).
func StartFS(h *spinlock.HartState, disk Disk_i, dev int) (*Fs_t, defs.Err_t) {
	bc := MkBcache(disk)
	bp, err := bc.Bread(h, dev, 1)
	if err != 0 {
		return nil, err
	}
	var sbdata [BSIZE]byte
	sbdata = bp.Data
	bc.Brelse(h, bp)
	sb := &Superblock_t{Data: &sbdata}
	if sb.Magic() != FSMAGIC {
		return nil, -defs.EINVAL
	}

	lg := MkLog(h, bc, dev, sb)

	fs := &Fs_t{bc: bc, log: lg, sb: sb, dev: dev, nc: mkNamecache()}
	fs.sweepOrphans(h)
	return fs, 0
}

/// StopFS releases nothing the process exit path doesn't already release;
/// kept for symmetry with StartFS and for callers that want to be explicit
/// about the filesystem's shutdown point.
func (fs *Fs_t) StopFS() {
}

/// Sizes reports how many inodes and data blocks this filesystem has.
func (fs *Fs_t) Sizes() (int, int) {
	return fs.sb.Ninodes(), fs.sb.Nblocks()
}

/// Fs_sync commits the current transaction, flushing all buffered writes.
func (fs *Fs_t) Fs_sync(h *spinlock.HartState) defs.Err_t {
	fs.log.Begin_op(h)
	fs.log.End_op(h)
	return 0
}

// orphan-inode bitmap: a second bitmap, parallel to the free-block one,
// at the superblock's Iorphanblock. Iput sets an inode's bit before
// truncating and freeing it and clears the bit afterwards, both inside
// the same log transaction; the mount-time sweep frees any inode whose bit
// is still set. Every helper below does nothing when Iorphanlen is 0,
// which is what Mkfs writes (SPEC_FULL §12).
func (fs *Fs_t) orphanBlock(inum int) int {
	return fs.sb.Iorphanblock() + inum/(BSIZE*8)
}

func (fs *Fs_t) orphanSet(h *spinlock.HartState, inum int) {
	if fs.sb.Iorphanlen() == 0 {
		return
	}
	bp, err := fs.bc.Bread(h, fs.dev, fs.orphanBlock(inum))
	if err != 0 {
		panic("fs: orphanSet: disk error")
	}
	bi := inum % (BSIZE * 8)
	bp.Data[bi/8] |= 1 << (bi % 8)
	fs.log.Log_write(h, bp)
	fs.bc.Brelse(h, bp)
}

func (fs *Fs_t) orphanClear(h *spinlock.HartState, inum int) {
	if fs.sb.Iorphanlen() == 0 {
		return
	}
	bp, err := fs.bc.Bread(h, fs.dev, fs.orphanBlock(inum))
	if err != 0 {
		panic("fs: orphanClear: disk error")
	}
	bi := inum % (BSIZE * 8)
	bp.Data[bi/8] &^= 1 << (bi % 8)
	fs.log.Log_write(h, bp)
	fs.bc.Brelse(h, bp)
}

// sweepOrphans truncates and frees every inode the orphan bitmap still
// marks from before the last clean shutdown.
func (fs *Fs_t) sweepOrphans(h *spinlock.HartState) {
	if fs.sb.Iorphanlen() == 0 {
		return
	}
	fs.log.Begin_op(h)
	defer fs.log.End_op(h)
	for inum := 1; inum < fs.sb.Ninodes(); inum++ {
		bp, err := fs.bc.Bread(h, fs.dev, fs.orphanBlock(inum))
		if err != 0 {
			panic("fs: sweepOrphans: disk error")
		}
		bi := inum % (BSIZE * 8)
		set := bp.Data[bi/8]&(1<<(bi%8)) != 0
		fs.bc.Brelse(h, bp)
		if !set {
			continue
		}
		ip := fs.iget(h, fs.dev, inum)
		fs.Ilock(h, ip)
		fs.itrunc(h, ip)
		ip.typ = 0
		fs.Iupdate(h, ip)
		fs.Iunlock(h, ip)
		fs.orphanClear(h, inum)
		fs.Iput(h, ip)
	}
}

// create resolves path's parent directory and either returns an existing
// file (open()'s O_CREAT-on-an-existing-file case) or allocates a fresh
// inode of typ and links it into the parent, mirroring sysfile.c's
// static create().
func (fs *Fs_t) create(h *spinlock.HartState, path ustr.Ustr, typ int16, major, minor int) (*Inode_t, defs.Err_t) {
	dp, name, err := fs.Nameiparent(h, path)
	if err != 0 {
		return nil, err
	}
	fs.Ilock(h, dp)

	if existing, _, eerr := fs.Dirlookup(h, dp, name); eerr == 0 {
		fs.Iunlockput(h, dp)
		fs.Ilock(h, existing)
		if typ == defs.T_FILE && (existing.typ == defs.T_FILE || existing.typ == defs.T_DEVICE) {
			return existing, 0
		}
		fs.Iunlockput(h, existing)
		return nil, -defs.EEXIST
	}

	ip, err := fs.ialloc(h, typ)
	if err != 0 {
		fs.Iunlockput(h, dp)
		return nil, err
	}
	fs.Ilock(h, ip)
	ip.major = int16(major)
	ip.minor = int16(minor)
	ip.nlink = 1
	fs.Iupdate(h, ip)

	if typ == defs.T_DIR {
		if fs.Dirlink(h, ip, ustr.MkUstrDot(), ip.inum) != 0 || fs.Dirlink(h, ip, ustr.DotDot, dp.inum) != 0 {
			ip.nlink = 0
			fs.Iupdate(h, ip)
			fs.Iunlockput(h, ip)
			fs.Iunlockput(h, dp)
			return nil, -defs.EINVAL
		}
	}

	if fs.Dirlink(h, dp, name, ip.inum) != 0 {
		ip.nlink = 0
		fs.Iupdate(h, ip)
		fs.Iunlockput(h, ip)
		fs.Iunlockput(h, dp)
		return nil, -defs.ENOSPC
	}

	if typ == defs.T_DIR {
		dp.nlink++
		fs.Iupdate(h, dp)
	}
	fs.nc.invalidate(path)
	fs.Iunlockput(h, dp)
	return ip, 0
}

// Fs_open implements open(): resolves path (creating it if O_CREAT is
// set), refuses writable opens of directories, and wraps the inode in a
// fd.Fd_t routed through a device file if the inode is a device special
// file.
func (fs *Fs_t) Fs_open(h *spinlock.HartState, path ustr.Ustr, flags defs.Err_t, mode int, cwd *fd.Cwd_t, major, minor int) (*fd.Fd_t, defs.Err_t) {
	full := cwd.Fullpath(path)

	fs.log.Begin_op(h)
	var ip *Inode_t
	var err defs.Err_t
	if flags&defs.O_CREAT != 0 {
		ip, err = fs.create(h, full, defs.T_FILE, major, minor)
		if err != 0 {
			fs.log.End_op(h)
			return nil, err
		}
	} else {
		ip, err = fs.Namei(h, full)
		if err != 0 {
			fs.log.End_op(h)
			return nil, -defs.ENOENT
		}
		fs.Ilock(h, ip)
		if ip.typ == defs.T_DIR && flags != defs.O_RDONLY {
			fs.Iunlockput(h, ip)
			fs.log.End_op(h)
			return nil, -defs.EISDIR
		}
	}

	if ip.typ == defs.T_DEVICE && (ip.major < 0 || int(ip.major) >= int(defs.D_LAST+1)) {
		fs.Iunlockput(h, ip)
		fs.log.End_op(h)
		return nil, -defs.EINVAL
	}

	readable := flags&defs.O_WRONLY == 0
	writable := flags&defs.O_WRONLY != 0 || flags&defs.O_RDWR != 0

	var fops fdops.Fdops_i
	if ip.typ == defs.T_DEVICE {
		fops = fs.MkDevFile(ip, int(ip.major), readable, writable)
	} else {
		if flags&defs.O_TRUNC != 0 && ip.typ == defs.T_FILE {
			fs.itrunc(h, ip)
		}
		fops = fs.MkFile(ip, readable, writable)
	}
	fs.Iunlock(h, ip)
	fs.log.End_op(h)

	return &fd.Fd_t{Fops: fops, Perms: permsFromFlags(flags)}, 0
}

func permsFromFlags(flags defs.Err_t) int {
	p := 0
	if flags&defs.O_WRONLY == 0 {
		p |= fd.FD_READ
	}
	if flags&defs.O_WRONLY != 0 || flags&defs.O_RDWR != 0 {
		p |= fd.FD_WRITE
	}
	return p
}

/// Fs_mkdir implements mkdir(): creates an empty directory at path.
func (fs *Fs_t) Fs_mkdir(h *spinlock.HartState, path ustr.Ustr, mode int, cwd *fd.Cwd_t) defs.Err_t {
	full := cwd.Fullpath(path)
	fs.log.Begin_op(h)
	ip, err := fs.create(h, full, defs.T_DIR, 0, 0)
	if err != 0 {
		fs.log.End_op(h)
		return err
	}
	fs.Iunlockput(h, ip)
	fs.log.End_op(h)
	return 0
}

/// Fs_mknod implements mknod(): creates a device special file at path
/// bound to (major, minor).
func (fs *Fs_t) Fs_mknod(h *spinlock.HartState, path ustr.Ustr, major, minor int, cwd *fd.Cwd_t) defs.Err_t {
	full := cwd.Fullpath(path)
	fs.log.Begin_op(h)
	ip, err := fs.create(h, full, defs.T_DEVICE, major, minor)
	if err != 0 {
		fs.log.End_op(h)
		return err
	}
	fs.Iunlockput(h, ip)
	fs.log.End_op(h)
	return 0
}

/// Fs_link implements link(): makes newp a second name for the inode oldp
/// already names. Refuses to link a directory or cross a device.
func (fs *Fs_t) Fs_link(h *spinlock.HartState, oldp, newp ustr.Ustr, cwd *fd.Cwd_t) defs.Err_t {
	oldfull := cwd.Fullpath(oldp)
	newfull := cwd.Fullpath(newp)

	fs.log.Begin_op(h)
	ip, err := fs.Namei(h, oldfull)
	if err != 0 {
		fs.log.End_op(h)
		return -defs.ENOENT
	}
	fs.Ilock(h, ip)
	if ip.typ == defs.T_DIR {
		fs.Iunlockput(h, ip)
		fs.log.End_op(h)
		return -defs.EISDIR
	}
	ip.nlink++
	fs.Iupdate(h, ip)
	fs.Iunlock(h, ip)

	dp, name, err := fs.Nameiparent(h, newfull)
	if err != 0 {
		goto bad
	}
	fs.Ilock(h, dp)
	if dp.dev != ip.dev || fs.Dirlink(h, dp, name, ip.inum) != 0 {
		fs.Iunlockput(h, dp)
		goto bad
	}
	fs.nc.invalidate(newfull)
	fs.Iunlockput(h, dp)
	fs.Iput(h, ip)
	fs.log.End_op(h)
	return 0

bad:
	fs.Ilock(h, ip)
	ip.nlink--
	fs.Iupdate(h, ip)
	fs.Iunlockput(h, ip)
	fs.log.End_op(h)
	return -defs.EEXIST
}

/// Fs_unlink implements unlink()/rmdir(): removes path's directory entry
/// and drops a link from its inode, refusing "." / ".." and non-empty
/// directories (dir must be true to remove a directory at all).
func (fs *Fs_t) Fs_unlink(h *spinlock.HartState, path ustr.Ustr, cwd *fd.Cwd_t, dir bool) defs.Err_t {
	full := cwd.Fullpath(path)
	fs.log.Begin_op(h)

	dp, name, err := fs.Nameiparent(h, full)
	if err != 0 {
		fs.log.End_op(h)
		return err
	}
	fs.Ilock(h, dp)

	if name.Isdot() || name.Isdotdot() {
		fs.Iunlockput(h, dp)
		fs.log.End_op(h)
		return -defs.EINVAL
	}

	ip, off, err := fs.Dirlookup(h, dp, name)
	if err != 0 {
		fs.Iunlockput(h, dp)
		fs.log.End_op(h)
		return -defs.ENOENT
	}
	fs.Ilock(h, ip)

	if ip.nlink < 1 {
		panic("fs: Fs_unlink: nlink < 1")
	}
	if ip.typ == defs.T_DIR {
		if !dir {
			fs.Iunlockput(h, ip)
			fs.Iunlockput(h, dp)
			fs.log.End_op(h)
			return -defs.EISDIR
		}
		if !fs.Dirempty(h, ip) {
			fs.Iunlockput(h, ip)
			fs.Iunlockput(h, dp)
			fs.log.End_op(h)
			return -defs.ENOTEMPTY
		}
	} else if dir {
		fs.Iunlockput(h, ip)
		fs.Iunlockput(h, dp)
		fs.log.End_op(h)
		return -defs.ENOTDIR
	}

	var blank dirent_t
	wb := mkKbuf(direntSize)
	blank.encode(wb.data)
	if n, werr := fs.Writei(h, dp, wb, off, direntSize); werr != 0 || n != direntSize {
		panic("fs: Fs_unlink: writei")
	}
	if ip.typ == defs.T_DIR {
		dp.nlink--
		fs.Iupdate(h, dp)
	}
	fs.nc.invalidate(full)
	fs.Iunlockput(h, dp)

	ip.nlink--
	fs.Iupdate(h, ip)
	fs.Iunlockput(h, ip)

	fs.log.End_op(h)
	return 0
}

/// Fs_rename implements rename(): links newp to oldp's inode and unlinks
/// oldp, so a crash between the two leaves the file reachable from
/// whichever name's dirent made it to disk.
func (fs *Fs_t) Fs_rename(h *spinlock.HartState, oldp, newp ustr.Ustr, cwd *fd.Cwd_t) defs.Err_t {
	if err := fs.Fs_link(h, oldp, newp, cwd); err != 0 {
		return err
	}
	oldfull := cwd.Fullpath(oldp)
	fs.log.Begin_op(h)
	ip, err := fs.Namei(h, oldfull)
	dir := false
	if err == 0 {
		fs.Ilock(h, ip)
		dir = ip.typ == defs.T_DIR
		fs.Iunlockput(h, ip)
	}
	fs.log.End_op(h)
	return fs.Fs_unlink(h, oldp, cwd, dir)
}

/// Fs_stat implements fstat()-by-path: resolves path and copies its
/// inode's metadata into st.
func (fs *Fs_t) Fs_stat(h *spinlock.HartState, path ustr.Ustr, st *stat.Stat_t, cwd *fd.Cwd_t) defs.Err_t {
	full := cwd.Fullpath(path)
	fs.log.Begin_op(h)
	ip, err := fs.Namei(h, full)
	if err != 0 {
		fs.log.End_op(h)
		return err
	}
	fs.Ilock(h, ip)
	fs.Stati(ip, st)
	fs.Iunlockput(h, ip)
	fs.log.End_op(h)
	return 0
}

/// Fs_evict drops the itable_t's references to unreferenced inodes' cached
/// contents; since inodes are fixed-size table slots rather than a
/// growable cache here, eviction is a no-op kept for the teacher's calling
/// convention.
func (fs *Fs_t) Fs_evict() {
}

/// MkRootCwd opens the root directory and wraps it as the initial working
/// directory for a freshly-booted process.
func (fs *Fs_t) MkRootCwd(h *spinlock.HartState) *fd.Cwd_t {
	fs.log.Begin_op(h)
	ip := fs.iget(h, fs.dev, ROOTINO)
	fs.Ilock(h, ip)
	f := fs.MkFile(ip, true, true)
	fs.Iunlock(h, ip)
	fs.log.End_op(h)
	return fd.MkRootCwd(&fd.Fd_t{Fops: f, Perms: fd.FD_READ | fd.FD_WRITE})
}
