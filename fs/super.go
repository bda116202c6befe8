package fs

import (
	"encoding/binary"

	"rv6/limits"
)

// FSMAGIC identifies a valid on-disk superblock (spec §6).
const FSMAGIC = 0x10203040

// fieldr/fieldw read/write the n'th uint32 field of an on-disk metadata
// block, matching the Superblock_t/dinode_t field-accessor idiom
// biscuit/src/fs/super.go builds on top of its own Data *mem.Bytepg_t.
// Here Data is a plain block-sized array, since the non-COW frame
// allocator (rv6/mem) has no Bytepg_t equivalent to borrow.
func fieldr(data *[BSIZE]byte, n int) int {
	return int(binary.LittleEndian.Uint32(data[n*4:]))
}

func fieldw(data *[BSIZE]byte, n int, v int) {
	binary.LittleEndian.PutUint32(data[n*4:], uint32(v))
}

// Superblock_t is the in-memory view of the on-disk superblock (spec §6):
// magic, disk geometry, and the starting blocks of the log, inode table,
// and free-block bitmap, plus the orphan-inode map appended to the
// layout (SPEC_FULL §12) so unlink-while-open survives a crash without
// leaking the inode.
type Superblock_t struct {
	Data *[BSIZE]byte
}

/// Magic returns the on-disk magic number; fsinit rejects anything but
/// FSMAGIC.
func (sb *Superblock_t) Magic() int { return fieldr(sb.Data, 0) }

/// Size returns the total number of blocks on the device.
func (sb *Superblock_t) Size() int { return fieldr(sb.Data, 1) }

/// Nblocks returns the number of data blocks.
func (sb *Superblock_t) Nblocks() int { return fieldr(sb.Data, 2) }

/// Ninodes returns the number of inodes the inode table holds.
func (sb *Superblock_t) Ninodes() int { return fieldr(sb.Data, 3) }

/// Nlog returns the length of the on-disk log in blocks.
func (sb *Superblock_t) Nlog() int { return fieldr(sb.Data, 4) }

/// Logstart returns the starting block of the log region.
func (sb *Superblock_t) Logstart() int { return fieldr(sb.Data, 5) }

/// Inodestart returns the starting block of the inode table.
func (sb *Superblock_t) Inodestart() int { return fieldr(sb.Data, 6) }

/// Bmapstart returns the starting block of the free block bitmap.
func (sb *Superblock_t) Bmapstart() int { return fieldr(sb.Data, 7) }

/// Iorphanblock returns the starting block of the orphan inode map.
func (sb *Superblock_t) Iorphanblock() int { return fieldr(sb.Data, 8) }

/// Iorphanlen returns the length of the orphan inode map in blocks.
func (sb *Superblock_t) Iorphanlen() int { return fieldr(sb.Data, 9) }

/// SetMagic writes the magic field.
func (sb *Superblock_t) SetMagic(v int) { fieldw(sb.Data, 0, v) }

/// SetSize writes the total block count.
func (sb *Superblock_t) SetSize(v int) { fieldw(sb.Data, 1, v) }

/// SetNblocks writes the data block count.
func (sb *Superblock_t) SetNblocks(v int) { fieldw(sb.Data, 2, v) }

/// SetNinodes writes the inode count.
func (sb *Superblock_t) SetNinodes(v int) { fieldw(sb.Data, 3, v) }

/// SetNlog writes the log length.
func (sb *Superblock_t) SetNlog(v int) { fieldw(sb.Data, 4, v) }

/// SetLogstart writes the log's starting block.
func (sb *Superblock_t) SetLogstart(v int) { fieldw(sb.Data, 5, v) }

/// SetInodestart writes the inode table's starting block.
func (sb *Superblock_t) SetInodestart(v int) { fieldw(sb.Data, 6, v) }

/// SetBmapstart writes the free block bitmap's starting block.
func (sb *Superblock_t) SetBmapstart(v int) { fieldw(sb.Data, 7, v) }

/// SetIorphanblock records the starting block of the orphan map.
func (sb *Superblock_t) SetIorphanblock(v int) { fieldw(sb.Data, 8, v) }

/// SetIorphanlen writes the length of the orphan map.
func (sb *Superblock_t) SetIorphanlen(v int) { fieldw(sb.Data, 9, v) }

/// IBLOCK returns the block holding inode inum's dinode.
func (sb *Superblock_t) IBLOCK(inum int) int {
	return sb.Inodestart() + inum/limits.IPB
}

/// BBLOCK returns the free-block bitmap block covering data block b.
func (sb *Superblock_t) BBLOCK(b int) int {
	return sb.Bmapstart() + b/(BSIZE*8)
}
