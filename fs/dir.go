package fs

import (
	"rv6/defs"
	"rv6/fdops"
	"rv6/limits"
	"rv6/spinlock"
	"rv6/ustr"
)

// dirent byte layout (spec §6): { inum:u16, name:[u8; DIRSIZ] }.
const direntSize = 2 + limits.DIRSIZ

type dirent_t struct {
	inum uint16
	name [limits.DIRSIZ]byte
}

func (de *dirent_t) decode(b []byte) {
	de.inum = uint16(b[0]) | uint16(b[1])<<8
	copy(de.name[:], b[2:2+limits.DIRSIZ])
}

func (de *dirent_t) encode(b []byte) {
	b[0] = byte(de.inum)
	b[1] = byte(de.inum >> 8)
	copy(b[2:2+limits.DIRSIZ], de.name[:])
}

func (de *dirent_t) setName(name ustr.Ustr) {
	for i := range de.name {
		de.name[i] = 0
	}
	copy(de.name[:], name)
}

func (de *dirent_t) nameEq(name ustr.Ustr) bool {
	n := de.name[:]
	for i := 0; i < limits.DIRSIZ; i++ {
		var want byte
		if i < len(name) {
			want = name[i]
		}
		if n[i] != want {
			return false
		}
		if want == 0 {
			break
		}
	}
	return true
}

// kbuf_t wraps a fixed kernel-memory slice as a
// fdops.Userio_i so dirlookup/dirlink can call Readi/Writei without
// involving a real user address space, mirroring Fakeubuf_t's role.
type kbuf_t struct {
	data []byte
	off  int
}

func (k *kbuf_t) Uio_read(src []uint8) (int, defs.Err_t) {
	n := copy(k.data[k.off:], src)
	k.off += n
	return n, 0
}
func (k *kbuf_t) Uio_write(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, k.data[k.off:])
	k.off += n
	return n, 0
}
func (k *kbuf_t) Remain() int  { return len(k.data) - k.off }
func (k *kbuf_t) Totalsz() int { return len(k.data) }

var _ fdops.Userio_i = (*kbuf_t)(nil)

func mkKbuf(n int) *kbuf_t { return &kbuf_t{data: make([]byte, n)} }

// Dirlookup scans dp's entries for name, returning a referenced
// in-memory inode for the match and the byte offset of the matching
// entry. Caller must hold dp's lock.
func (fs *Fs_t) Dirlookup(h *spinlock.HartState, dp *Inode_t, name ustr.Ustr) (*Inode_t, int, defs.Err_t) {
	if dp.typ != defs.T_DIR {
		panic("fs: Dirlookup: not a directory")
	}
	kb := mkKbuf(direntSize)
	for off := 0; off < int(dp.size); off += direntSize {
		kb.off = 0
		n, err := fs.Readi(h, dp, kb, off, direntSize)
		if err != 0 || n != direntSize {
			panic("fs: Dirlookup: short read")
		}
		var de dirent_t
		de.decode(kb.data)
		if de.inum == 0 {
			continue
		}
		if de.nameEq(name) {
			return fs.iget(h, dp.dev, int(de.inum)), off, 0
		}
	}
	return nil, 0, -defs.ENOENT
}

// Dirlink writes a new (name, inum) entry into directory dp: refuses a
// duplicate name, otherwise reuses the first inum==0 hole or appends.
func (fs *Fs_t) Dirlink(h *spinlock.HartState, dp *Inode_t, name ustr.Ustr, inum int) defs.Err_t {
	if existing, _, err := fs.Dirlookup(h, dp, name); err == 0 {
		fs.Iput(h, existing)
		return -defs.EEXIST
	}

	kb := mkKbuf(direntSize)
	off := 0
	for ; off < int(dp.size); off += direntSize {
		kb.off = 0
		n, err := fs.Readi(h, dp, kb, off, direntSize)
		if err != 0 || n != direntSize {
			panic("fs: Dirlink: short read")
		}
		var de dirent_t
		de.decode(kb.data)
		if de.inum == 0 {
			break
		}
	}

	var de dirent_t
	de.inum = uint16(inum)
	de.setName(name)
	wb := mkKbuf(direntSize)
	de.encode(wb.data)
	n, err := fs.Writei(h, dp, wb, off, direntSize)
	if err != 0 || n != direntSize {
		return -defs.ENOSPC
	}
	return 0
}

/// Dirempty reports whether directory dp contains only "." and "..".
func (fs *Fs_t) Dirempty(h *spinlock.HartState, dp *Inode_t) bool {
	kb := mkKbuf(direntSize)
	for off := 2 * direntSize; off < int(dp.size); off += direntSize {
		kb.off = 0
		n, err := fs.Readi(h, dp, kb, off, direntSize)
		if err != 0 || n != direntSize {
			panic("fs: Dirempty: short read")
		}
		var de dirent_t
		de.decode(kb.data)
		if de.inum != 0 {
			return false
		}
	}
	return true
}
