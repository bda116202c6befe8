package fs

import (
	"rv6/defs"
	"rv6/fdops"
	"rv6/limits"
	"rv6/spinlock"
	"rv6/stat"
)

// Inode_t is the in-memory representation of one on-disk inode. ref
// counts in-memory holders (iget/iput) and is protected by the inode
// table's spinlock; everything else is protected by the inode's own
// sleep lock and only meaningful once valid is true (spec §4.6, §4.7
// mirroring fs.c's itable/struct inode split).
type Inode_t struct {
	lock  spinlock.Sleeplock_t
	ref   int
	dev   int
	inum  int
	valid bool

	typ   int16
	major int16
	minor int16
	nlink int16
	size  uint32
	addrs [limits.NDIRECT + 1]uint32
}

/// Type reports ip's on-disk file type (defs.T_DIR/T_FILE/T_DEVICE). The
/// caller must hold ip locked (Ilock) so valid is guaranteed true.
func (ip *Inode_t) Type() int16 { return ip.typ }

// NINODE bounds the in-memory inode table; the spec does not name this
// constant directly (it only bounds on-disk inode count via the
// superblock), so it is sized like xv6's fs.h default relative to NFILE.
const NINODE = 50

// itable_t is the fixed-size cache of in-memory inodes: an inode's
// presence here (ref>0) is what lets concurrent syscalls on the same
// file rendezvous on one lock instead of racing the disk.
type itable_t struct {
	mu    spinlock.Spinlock_t
	inode [NINODE]Inode_t
}

/// iget finds or creates an in-memory table entry for (dev, inum),
/// bumping its reference count. Does not read the inode from disk or
/// lock it — callers needing the on-disk contents call Ilock next.
func (fs *Fs_t) iget(h *spinlock.HartState, dev, inum int) *Inode_t {
	fs.itab.mu.Lock(h)
	defer fs.itab.mu.Unlock(h)

	var empty *Inode_t
	for i := range fs.itab.inode {
		ip := &fs.itab.inode[i]
		if ip.ref > 0 && ip.dev == dev && ip.inum == inum {
			ip.ref++
			return ip
		}
		if empty == nil && ip.ref == 0 {
			empty = ip
		}
	}
	if empty == nil {
		panic("fs: iget: inode table full")
	}
	empty.dev = dev
	empty.inum = inum
	empty.ref = 1
	empty.valid = false
	return empty
}

/// Idup bumps ip's reference count, for the idiom ip2 = fs.Idup(h, ip1).
func (fs *Fs_t) Idup(h *spinlock.HartState, ip *Inode_t) *Inode_t {
	fs.itab.mu.Lock(h)
	ip.ref++
	fs.itab.mu.Unlock(h)
	return ip
}

/// Ilock locks ip, reading it from disk on first use.
func (fs *Fs_t) Ilock(h *spinlock.HartState, ip *Inode_t) {
	if ip.ref < 1 {
		panic("fs: Ilock: unreferenced inode")
	}
	ip.lock.Acquire(h)
	if !ip.valid {
		bp, err := fs.bc.Bread(h, ip.dev, fs.sb.IBLOCK(ip.inum))
		if err != 0 {
			panic("fs: Ilock: disk error")
		}
		var di dinode_t
		di.decode(dinodeAt(bp, ip.inum))
		ip.typ, ip.major, ip.minor, ip.nlink, ip.size, ip.addrs = di.typ, di.major, di.minor, di.nlink, di.size, di.addrs
		fs.bc.Brelse(h, bp)
		ip.valid = true
		if ip.typ == 0 {
			panic("fs: Ilock: no type")
		}
	}
}

/// Iunlock releases ip's sleep lock.
func (fs *Fs_t) Iunlock(h *spinlock.HartState, ip *Inode_t) {
	if !ip.lock.Holding(h) || ip.ref < 1 {
		panic("fs: Iunlock: not held")
	}
	ip.lock.Release(h)
}

// Iupdate writes ip's in-memory fields back to its on-disk dinode. Must
// be called after any change to a field the disk copy mirrors, and must
// run inside a transaction.
func (fs *Fs_t) Iupdate(h *spinlock.HartState, ip *Inode_t) {
	bp, err := fs.bc.Bread(h, ip.dev, fs.sb.IBLOCK(ip.inum))
	if err != 0 {
		panic("fs: Iupdate: disk error")
	}
	di := dinode_t{ip.typ, ip.major, ip.minor, ip.nlink, ip.size, ip.addrs}
	di.encode(dinodeAt(bp, ip.inum))
	fs.log.Log_write(h, bp)
	fs.bc.Brelse(h, bp)
}

// Iput drops a reference to ip. If this was the last reference and the
// inode has no on-disk links, its content is truncated and the slot is
// marked free on disk — all inside the caller's transaction, mirroring
// fs.c's iput().
func (fs *Fs_t) Iput(h *spinlock.HartState, ip *Inode_t) {
	fs.itab.mu.Lock(h)
	if ip.ref == 1 && ip.valid && ip.nlink == 0 {
		fs.itab.mu.Unlock(h)

		ip.lock.Acquire(h)
		fs.orphanSet(h, ip.inum)
		fs.itrunc(h, ip)
		ip.typ = 0
		fs.Iupdate(h, ip)
		fs.orphanClear(h, ip.inum)
		ip.valid = false
		ip.lock.Release(h)

		fs.itab.mu.Lock(h)
	}
	ip.ref--
	fs.itab.mu.Unlock(h)
}

/// Iunlockput is the common idiom: unlock, then put.
func (fs *Fs_t) Iunlockput(h *spinlock.HartState, ip *Inode_t) {
	fs.Iunlock(h, ip)
	fs.Iput(h, ip)
}

// bmap returns the disk block address of the bn'th block of ip's
// content, allocating it (and, for indirect blocks, the indirect block
// itself) if it does not yet exist.
func (fs *Fs_t) bmap(h *spinlock.HartState, ip *Inode_t, bn uint32) (int, defs.Err_t) {
	if bn < limits.NDIRECT {
		if ip.addrs[bn] == 0 {
			a, err := fs.balloc(h)
			if err != 0 {
				return 0, err
			}
			ip.addrs[bn] = uint32(a)
		}
		return int(ip.addrs[bn]), 0
	}
	bn -= limits.NDIRECT
	if bn >= limits.NINDIRECT {
		panic("fs: bmap: out of range")
	}
	if ip.addrs[limits.NDIRECT] == 0 {
		a, err := fs.balloc(h)
		if err != 0 {
			return 0, err
		}
		ip.addrs[limits.NDIRECT] = uint32(a)
	}
	bp, err := fs.bc.Bread(h, ip.dev, int(ip.addrs[limits.NDIRECT]))
	if err != 0 {
		return 0, err
	}
	addr := le32(bp.Data[bn*4:])
	if addr == 0 {
		a, err := fs.balloc(h)
		if err != 0 {
			fs.bc.Brelse(h, bp)
			return 0, err
		}
		addr = uint32(a)
		putle32(bp.Data[bn*4:], addr)
		fs.log.Log_write(h, bp)
	}
	fs.bc.Brelse(h, bp)
	return int(addr), 0
}

// itrunc discards ip's content: every direct block, the indirect
// block's own contents, then the indirect block itself.
func (fs *Fs_t) itrunc(h *spinlock.HartState, ip *Inode_t) {
	for i := 0; i < limits.NDIRECT; i++ {
		if ip.addrs[i] != 0 {
			fs.bfree(h, int(ip.addrs[i]))
			ip.addrs[i] = 0
		}
	}
	if ip.addrs[limits.NDIRECT] != 0 {
		bp, err := fs.bc.Bread(h, ip.dev, int(ip.addrs[limits.NDIRECT]))
		if err != 0 {
			panic("fs: itrunc: disk error")
		}
		for j := 0; j < limits.NINDIRECT; j++ {
			a := le32(bp.Data[j*4:])
			if a != 0 {
				fs.bfree(h, int(a))
			}
		}
		fs.bc.Brelse(h, bp)
		fs.bfree(h, int(ip.addrs[limits.NDIRECT]))
		ip.addrs[limits.NDIRECT] = 0
	}
	ip.size = 0
	fs.Iupdate(h, ip)
}

/// Stati copies ip's metadata into st. Caller must hold ip's lock.
func (fs *Fs_t) Stati(ip *Inode_t, st *stat.Stat_t) {
	st.Wdev(uint(ip.dev))
	st.Wino(uint(ip.inum))
	st.Wtype(uint(ip.typ))
	st.Wnlink(uint(ip.nlink))
	st.Wsize(uint(ip.size))
	if ip.typ == defs.T_DEVICE {
		st.Wrdev(defs.Mkdev(int(ip.major), int(ip.minor)))
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Readi copies up to n bytes starting at off from ip's content into dst,
// returning the number of bytes actually copied. Caller must hold ip's
// lock.
func (fs *Fs_t) Readi(h *spinlock.HartState, ip *Inode_t, dst fdops.Userio_i, off, n int) (int, defs.Err_t) {
	if off < 0 || uint32(off) > ip.size || off+n < off {
		return 0, 0
	}
	if off+n > int(ip.size) {
		n = int(ip.size) - off
	}
	tot := 0
	for tot < n {
		addr, err := fs.bmap(h, ip, uint32((off+tot)/BSIZE))
		if err != 0 || addr == 0 {
			break
		}
		bp, err := fs.bc.Bread(h, ip.dev, addr)
		if err != 0 {
			break
		}
		boff := (off + tot) % BSIZE
		m := minInt(n-tot, BSIZE-boff)
		if _, werr := dst.Uio_read(bp.Data[boff : boff+m]); werr != 0 {
			fs.bc.Brelse(h, bp)
			return tot, werr
		}
		fs.bc.Brelse(h, bp)
		tot += m
	}
	return tot, 0
}

// Writei copies up to n bytes from src into ip's content starting at
// off, growing the file as needed (bounded by MAXFILE), and always
// updates the on-disk inode since bmap may have grown ip.addrs even if
// size itself did not change. Caller must hold ip's lock and a
// transaction.
func (fs *Fs_t) Writei(h *spinlock.HartState, ip *Inode_t, src fdops.Userio_i, off, n int) (int, defs.Err_t) {
	if off < 0 || uint32(off) > ip.size || off+n < off {
		return 0, -defs.EINVAL
	}
	if off+n > limits.MAXFILE*BSIZE {
		return 0, -defs.EFBIG
	}
	tot := 0
	for tot < n {
		addr, err := fs.bmap(h, ip, uint32((off+tot)/BSIZE))
		if err != 0 {
			break
		}
		if addr == 0 {
			break
		}
		bp, err := fs.bc.Bread(h, ip.dev, addr)
		if err != 0 {
			break
		}
		boff := (off + tot) % BSIZE
		m := minInt(n-tot, BSIZE-boff)
		if _, rerr := src.Uio_write(bp.Data[boff : boff+m]); rerr != 0 {
			fs.bc.Brelse(h, bp)
			break
		}
		fs.log.Log_write(h, bp)
		fs.bc.Brelse(h, bp)
		tot += m
	}
	if off+tot > int(ip.size) {
		ip.size = uint32(off + tot)
	}
	fs.Iupdate(h, ip)
	return tot, 0
}
