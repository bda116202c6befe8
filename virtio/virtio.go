// Package virtio is the block device backing fs.Bcache_t. The real
// virtio-mmio queue protocol (descriptor rings, used/avail indices, the
// notify doorbell) is external hardware (spec §1, §6) this module talks
// to only through a synchronous read/write contract; this package is
// the file-backed stand-in used by cmd/mkfs and every fs test, adapted
// from biscuit/src/ufs/driver.go's ahci_disk_t down to the plain
// Disk_i shape fs.Bcache_t actually calls.
package virtio

import (
	"os"
	"sync"

	"rv6/defs"
	"rv6/fs"
)

/// Disk_t simulates the virtio block device with a backing file,
/// serializing seek+read/write pairs the way one in-flight descriptor
/// chain would be serviced by the real queue.
type Disk_t struct {
	mu sync.Mutex
	f  *os.File
}

var _ fs.Disk_i = (*Disk_t)(nil)

/// Open opens (or creates) path as the backing store for a Disk_t.
func Open(path string) (*Disk_t, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	return &Disk_t{f: f}, nil
}

/// Read copies block bn's contents into dst, which must be fs.BSIZE bytes.
func (d *Disk_t) Read(bn int, dst []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.f.Seek(int64(bn)*int64(fs.BSIZE), 0); err != nil {
		return -defs.EIO
	}
	n, err := d.f.Read(dst)
	if err != nil || n != len(dst) {
		return -defs.EIO
	}
	return 0
}

/// Write stores src (fs.BSIZE bytes) as block bn.
func (d *Disk_t) Write(bn int, src []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.f.Seek(int64(bn)*int64(fs.BSIZE), 0); err != nil {
		return -defs.EIO
	}
	n, err := d.f.Write(src)
	if err != nil || n != len(src) {
		return -defs.EIO
	}
	return 0
}

/// Grow extends the backing file to hold nblocks blocks, zero-filling
/// any new space, so a freshly created image can be read and written
/// block-by-block before anything has been written to it (cmd/mkfs's
/// use of fs.Mkfs, which formats the whole image up front).
func (d *Disk_t) Grow(nblocks int) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Truncate(int64(nblocks) * int64(fs.BSIZE)); err != nil {
		return -defs.EIO
	}
	return 0
}

/// Flush forces any OS-buffered writes to stable storage.
func (d *Disk_t) Flush() defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.f.Sync(); err != nil {
		return -defs.EIO
	}
	return 0
}

/// Close releases the backing file.
func (d *Disk_t) Close() error {
	return d.f.Close()
}
