package fs

import (
	"rv6/defs"
	"rv6/limits"
	"rv6/spinlock"
)

// dinode_t is the on-disk inode layout (spec §6): a 2-byte type tag (0 =
// free), device major/minor for T_DEVICE inodes, a link count, a byte
// size, and NDIRECT+1 block pointers — the last an indirect block of
// NINDIRECT further pointers. Max file size is (NDIRECT+NINDIRECT)*BSIZE.
type dinode_t struct {
	typ   int16
	major int16
	minor int16
	nlink int16
	size  uint32
	addrs [limits.NDIRECT + 1]uint32
}

const dinodeSize = 2 + 2 + 2 + 2 + 4 + 4*(limits.NDIRECT+1)

func (d *dinode_t) decode(b []byte) {
	d.typ = int16(le16(b[0:]))
	d.major = int16(le16(b[2:]))
	d.minor = int16(le16(b[4:]))
	d.nlink = int16(le16(b[6:]))
	d.size = le32(b[8:])
	for i := range d.addrs {
		d.addrs[i] = le32(b[12+i*4:])
	}
}

func (d *dinode_t) encode(b []byte) {
	putle16(b[0:], uint16(d.typ))
	putle16(b[2:], uint16(d.major))
	putle16(b[4:], uint16(d.minor))
	putle16(b[6:], uint16(d.nlink))
	putle32(b[8:], d.size)
	for i, a := range d.addrs {
		putle32(b[12+i*4:], a)
	}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func putle16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putle32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// dinodeAt returns the byte slice of the dinode for inum within a loaded
// inode-block buffer.
func dinodeAt(b *Buf_t, inum int) []byte {
	off := (inum % limits.IPB) * dinodeSize
	return b.Data[off : off+dinodeSize]
}

// balloc finds the first free data block (via the bitmap) and returns it
// zeroed, within the current transaction. Grounded on fs.c's balloc: scan
// bitmap blocks in BSIZE*8-bit chunks, set the first clear bit.
func (fs *Fs_t) balloc(h *spinlock.HartState) (int, defs.Err_t) {
	bpb := BSIZE * 8
	for base := 0; base < fs.sb.Nblocks(); base += bpb {
		bp, err := fs.bc.Bread(h, fs.dev, fs.sb.BBLOCK(base))
		if err != 0 {
			return 0, err
		}
		for bi := 0; bi < bpb && base+bi < fs.sb.Nblocks(); bi++ {
			m := byte(1 << (bi % 8))
			if bp.Data[bi/8]&m == 0 {
				bp.Data[bi/8] |= m
				fs.log.Log_write(h, bp)
				fs.bc.Brelse(h, bp)
				fs.bzero(h, base+bi)
				return base + bi, 0
			}
		}
		fs.bc.Brelse(h, bp)
	}
	return 0, -defs.ENOSPC
}

// bfree clears block b's bitmap bit, panicking if it was already free —
// a double free is a kernel bug, not a recoverable condition.
func (fs *Fs_t) bfree(h *spinlock.HartState, b int) {
	bp, err := fs.bc.Bread(h, fs.dev, fs.sb.BBLOCK(b))
	if err != 0 {
		panic("fs: bfree: disk error")
	}
	bi := b % (BSIZE * 8)
	m := byte(1 << (bi % 8))
	if bp.Data[bi/8]&m == 0 {
		panic("fs: bfree: freeing free block")
	}
	bp.Data[bi/8] &^= m
	fs.log.Log_write(h, bp)
	fs.bc.Brelse(h, bp)
}

func (fs *Fs_t) bzero(h *spinlock.HartState, bn int) {
	bp, err := fs.bc.Bread(h, fs.dev, bn)
	if err != 0 {
		panic("fs: bzero: disk error")
	}
	for i := range bp.Data {
		bp.Data[i] = 0
	}
	fs.log.Log_write(h, bp)
	fs.bc.Brelse(h, bp)
}

// ialloc scans the inode table on disk for a free (type==0) slot, marks
// it allocated with the given type, and returns an in-memory reference
// via iget (unlocked, not yet read from disk).
func (fs *Fs_t) ialloc(h *spinlock.HartState, typ int16) (*Inode_t, defs.Err_t) {
	for inum := 1; inum < fs.sb.Ninodes(); inum++ {
		bp, err := fs.bc.Bread(h, fs.dev, fs.sb.IBLOCK(inum))
		if err != 0 {
			return nil, err
		}
		db := dinodeAt(bp, inum)
		var di dinode_t
		di.decode(db)
		if di.typ == 0 {
			di = dinode_t{typ: typ}
			di.encode(db)
			fs.log.Log_write(h, bp)
			fs.bc.Brelse(h, bp)
			return fs.iget(h, fs.dev, inum), 0
		}
		fs.bc.Brelse(h, bp)
	}
	return nil, -defs.ENOSPC
}
