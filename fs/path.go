package fs

import (
	"rv6/defs"
	"rv6/spinlock"
	"rv6/ustr"
)

// ROOTINO is the inode number of the root directory (spec §6).
const ROOTINO = 1

// namex walks path one element at a time from the root, locking each
// directory just long enough to look up the next element (spec §4.7's
// namex/skipelem). Every caller of fd.Cwd_t.Fullpath hands namex an
// already-root-relative path, so namex never needs a separate notion of
// "current directory inode" the way fs.c's does — the string-level
// canonicalization in fd.Cwd_t.Fullpath does that job instead.
func (fs *Fs_t) namex(h *spinlock.HartState, path ustr.Ustr, nameiparent bool) (*Inode_t, ustr.Ustr, defs.Err_t) {
	ip := fs.iget(h, fs.dev, ROOTINO)

	rest := path
	var elem ustr.Ustr
	var ok bool
	for rest, elem, ok = ustr.Skipelem(rest); ok; rest, elem, ok = ustr.Skipelem(rest) {
		fs.Ilock(h, ip)
		if ip.typ != defs.T_DIR {
			fs.Iunlockput(h, ip)
			return nil, nil, -defs.ENOTDIR
		}
		if nameiparent && len(rest) == 0 {
			fs.Iunlock(h, ip)
			return ip, elem, 0
		}
		next, _, err := fs.Dirlookup(h, ip, elem)
		if err != 0 {
			fs.Iunlockput(h, ip)
			return nil, nil, -defs.ENOENT
		}
		fs.Iunlockput(h, ip)
		ip = next
	}
	if nameiparent {
		fs.Iput(h, ip)
		return nil, nil, -defs.ENOENT
	}
	return ip, nil, 0
}

/// Namei resolves path to its inode, referenced but unlocked. A hit in
/// the path name cache skips the directory walk entirely.
func (fs *Fs_t) Namei(h *spinlock.HartState, path ustr.Ustr) (*Inode_t, defs.Err_t) {
	if inum, ok := fs.nc.lookup(path); ok {
		return fs.iget(h, fs.dev, inum), 0
	}
	ip, _, err := fs.namex(h, path, false)
	if err == 0 {
		fs.nc.insert(path, ip.inum)
	}
	return ip, err
}

/// Nameiparent resolves path's parent directory, referenced but
/// unlocked, and returns the final path element's name.
func (fs *Fs_t) Nameiparent(h *spinlock.HartState, path ustr.Ustr) (*Inode_t, ustr.Ustr, defs.Err_t) {
	return fs.namex(h, path, true)
}
