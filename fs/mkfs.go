package fs

import (
	"rv6/defs"
	"rv6/limits"
	"rv6/spinlock"
	"rv6/ustr"
)

// Mkfs formats disk as a fresh filesystem of the given total size (in
// blocks) with room for ninodes inodes and an nlog-block write-ahead
// log, then mounts it and returns the ready Fs_t. Grounded on the
// meta-block layout biscuit/src/mkfs/mkfs.go's missing ufs.MkDisk would
// have driven (that call has no definition anywhere in the retrieved
// ufs package, so the block arithmetic below follows fs.c's mkfs.c
// instead: one boot block, one superblock, the log, the inode table,
// then the free-block bitmap, with everything after that the data
// region).
func Mkfs(h *spinlock.HartState, disk Disk_i, dev int, size, ninodes, nlog int) (*Fs_t, defs.Err_t) {
	bc := MkBcache(disk)

	ninodeblocks := (ninodes + limits.IPB - 1) / limits.IPB
	nbitmapblocks := (size + BSIZE*8 - 1) / (BSIZE * 8)
	nmeta := 2 + nlog + ninodeblocks + nbitmapblocks
	if nmeta >= size {
		return nil, -defs.EINVAL
	}
	// balloc scans bits [0, Nblocks()) and hands the bit index straight
	// back as an absolute block number, so the meta region is reserved
	// by setting bits [0, nmeta) straight in the bitmap below, before the
	// log is mounted, rather than by offsetting every later balloc
	// result; the last nmeta blocks of the image are addressable
	// by neither the bitmap nor balloc and are left unused.
	nblocks := size - nmeta

	sbbuf, err := bc.Bread(h, dev, 1)
	if err != 0 {
		return nil, err
	}
	sb := &Superblock_t{Data: &sbbuf.Data}
	sb.SetMagic(FSMAGIC)
	sb.SetSize(size)
	sb.SetNblocks(nblocks)
	sb.SetNinodes(ninodes)
	sb.SetNlog(nlog)
	sb.SetLogstart(2)
	sb.SetInodestart(2 + nlog)
	sb.SetBmapstart(2 + nlog + ninodeblocks)
	sb.SetIorphanblock(0)
	sb.SetIorphanlen(0)
	bc.Bwrite(h, sbbuf)
	bc.Brelse(h, sbbuf)

	for bn := 2; bn < size; bn++ {
		bp, err := bc.Bread(h, dev, bn)
		if err != 0 {
			return nil, err
		}
		for i := range bp.Data {
			bp.Data[i] = 0
		}
		bc.Bwrite(h, bp)
		bc.Brelse(h, bp)
	}
	for b := 0; b < nmeta; b++ {
		bp, err := bc.Bread(h, dev, 2+nlog+ninodeblocks+b/(BSIZE*8))
		if err != 0 {
			return nil, err
		}
		bp.Data[b%(BSIZE*8)/8] |= 1 << (b % 8)
		bc.Bwrite(h, bp)
		bc.Brelse(h, bp)
	}

	fsys, err := StartFS(h, disk, dev)
	if err != 0 {
		return nil, err
	}

	fsys.log.Begin_op(h)
	root, err := fsys.ialloc(h, defs.T_DIR)
	if err != 0 {
		fsys.log.End_op(h)
		return nil, err
	}
	if root.inum != ROOTINO {
		panic("fs: Mkfs: first ialloc did not return ROOTINO")
	}
	fsys.Ilock(h, root)
	root.nlink = 1
	fsys.Iupdate(h, root)
	if derr := fsys.Dirlink(h, root, ustr.MkUstrDot(), root.inum); derr != 0 {
		fsys.Iunlockput(h, root)
		fsys.log.End_op(h)
		return nil, derr
	}
	if derr := fsys.Dirlink(h, root, ustr.DotDot, root.inum); derr != 0 {
		fsys.Iunlockput(h, root)
		fsys.log.End_op(h)
		return nil, derr
	}
	fsys.Iunlockput(h, root)
	fsys.log.End_op(h)

	return fsys, 0
}
