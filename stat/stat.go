// Package stat mirrors the on-the-wire stat structure returned by fstat().
package stat

import "unsafe"

// Stat_t mirrors a file's stat information as handed to user space.
type Stat_t struct {
	_dev  uint
	_ino  uint
	_type uint /// T_DIR / T_FILE / T_DEVICE
	_nlink uint
	_size  uint
	_rdev  uint
}

/// Wdev stores the device ID.
func (st *Stat_t) Wdev(v uint) { st._dev = v }

/// Wino stores the inode number.
func (st *Stat_t) Wino(v uint) { st._ino = v }

/// Wtype records the file type (T_DIR/T_FILE/T_DEVICE).
func (st *Stat_t) Wtype(v uint) { st._type = v }

/// Wnlink records the link count.
func (st *Stat_t) Wnlink(v uint) { st._nlink = v }

/// Wsize records the file size.
func (st *Stat_t) Wsize(v uint) { st._size = v }

/// Wrdev stores the rdev field (major/minor for device files).
func (st *Stat_t) Wrdev(v uint) { st._rdev = v }

/// Dev returns the stored device ID.
func (st *Stat_t) Dev() uint { return st._dev }

/// Ino returns the stored inode number.
func (st *Stat_t) Ino() uint { return st._ino }

/// Type returns the stored file type.
func (st *Stat_t) Type() uint { return st._type }

/// Nlink returns the stored link count.
func (st *Stat_t) Nlink() uint { return st._nlink }

/// Size returns the stored size.
func (st *Stat_t) Size() uint { return st._size }

/// Rdev returns the stored rdev.
func (st *Stat_t) Rdev() uint { return st._rdev }

/// Bytes exposes the raw bytes of the structure, ready to copy to user space.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(st))
	return sl[:]
}
