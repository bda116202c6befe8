// Package fs implements the buffered block layer, write-ahead log, and
// inode-based file system (spec §4.4-§4.7).
package fs

import (
	"container/list"

	"rv6/defs"
	"rv6/limits"
	"rv6/spinlock"
	"rv6/stats"
)

/// BSIZE is the on-disk block size in bytes (spec §6).
const BSIZE = limits.BSIZE

// Disk_i is the synchronous block device contract the buffer cache talks
// to. The real virtio-mmio queue protocol is external (spec §1); this
// interface is satisfied by the virtio package's file-backed stand-in and
// by anything a future real driver exposes.
type Disk_i interface {
	Read(bn int, dst []byte) defs.Err_t
	Write(bn int, src []byte) defs.Err_t
}

/// Buf_t is one cached disk block: the in-memory copy plus the metadata
/// bget/bread/brelse need to find, pin, and release it (spec §3 "Buffer").
type Buf_t struct {
	Dev     int
	Blockno int
	Valid   bool
	Data    [BSIZE]byte
	refcnt  int
	lock    spinlock.Sleeplock_t
	elem    *list.Element // this buffer's node in the cache's LRU list
}

// Bcache_t is the fixed NBUF-entry buffer cache: an LRU list ordered
// most-recently-released-first, protected by a single spinlock that
// covers cached-set membership and refcounts only (block contents are
// protected by each buffer's own sleep lock) — spec §4.4, §5.
//
// Every method takes the calling hart's *spinlock.HartState explicitly,
// the same way every other lock in this tree is driven (spinlock.Lock,
// Sleeplock_t.Acquire) — there is no per-cache or per-lock HartState,
// since the interrupt-nesting count is a property of the hart, not of
// whatever lock it happens to be taking.
type Bcache_t struct {
	mu   spinlock.Spinlock_t
	l    *list.List // elements are *Buf_t, most-recently-released at Front
	disk Disk_i
}

/// MkBcache allocates and initializes the NBUF-entry buffer cache backed
/// by disk.
func MkBcache(disk Disk_i) *Bcache_t {
	bc := &Bcache_t{l: list.New(), disk: disk}
	for i := 0; i < limits.NBUF; i++ {
		b := &Buf_t{}
		b.elem = bc.l.PushBack(b)
	}
	return bc
}

// bget finds or creates a cached, locked buffer for (dev, bn), per spec
// §4.4's two-pass bget algorithm: scan head-to-tail for a cached match
// (refcount++), else scan tail-to-head for any refcount==0 slot to
// repurpose. Panics if neither scan succeeds — NBUF is sized so that never
// happens for a legal transaction (spec §4.4, §7).
func (bc *Bcache_t) bget(h *spinlock.HartState, dev, bn int) *Buf_t {
	bc.mu.Lock(h)
	for e := bc.l.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Buf_t)
		if b.refcnt > 0 && b.Dev == dev && b.Blockno == bn {
			b.refcnt++
			bc.mu.Unlock(h)
			b.lock.Acquire(h)
			stats.Global.BufCacheHits.Inc()
			return b
		}
	}
	for e := bc.l.Back(); e != nil; e = e.Prev() {
		b := e.Value.(*Buf_t)
		if b.refcnt == 0 {
			b.Dev = dev
			b.Blockno = bn
			b.Valid = false
			b.refcnt = 1
			bc.mu.Unlock(h)
			b.lock.Acquire(h)
			stats.Global.BufCacheMiss.Inc()
			return b
		}
	}
	panic("bget: no buffers")
}

/// Bread returns a locked buffer whose contents equal block bn of dev,
/// reading from disk if it was not already cached valid.
func (bc *Bcache_t) Bread(h *spinlock.HartState, dev, bn int) (*Buf_t, defs.Err_t) {
	b := bc.bget(h, dev, bn)
	if !b.Valid {
		if err := bc.disk.Read(bn, b.Data[:]); err != 0 {
			bc.Brelse(h, b)
			return nil, err
		}
		b.Valid = true
	}
	return b, 0
}

/// Bwrite writes a locked buffer's contents to disk synchronously.
func (bc *Bcache_t) Bwrite(h *spinlock.HartState, b *Buf_t) defs.Err_t {
	if !b.lock.Holding(h) {
		panic("bwrite: buffer not locked")
	}
	return bc.disk.Write(b.Blockno, b.Data[:])
}

// Brelse releases a locked buffer: drops the sleep lock, then under the
// cache spinlock decrements refcount; at zero, splices the buffer to the
// list head (most-recently-released).
func (bc *Bcache_t) Brelse(h *spinlock.HartState, b *Buf_t) {
	b.lock.Release(h)

	bc.mu.Lock(h)
	b.refcnt--
	if b.refcnt == 0 {
		bc.l.MoveToFront(b.elem)
	}
	bc.mu.Unlock(h)
}

/// Bpin raises a buffer's reference count under the cache spinlock,
/// without releasing its sleep lock, so the log can hold a block across
/// begin_op/end_op without an explicit lock/unlock pair.
func (bc *Bcache_t) Bpin(h *spinlock.HartState, b *Buf_t) {
	bc.mu.Lock(h)
	b.refcnt++
	bc.mu.Unlock(h)
}

/// Bunpin lowers a buffer's reference count under the cache spinlock.
func (bc *Bcache_t) Bunpin(h *spinlock.HartState, b *Buf_t) {
	bc.mu.Lock(h)
	b.refcnt--
	if b.refcnt == 0 {
		bc.l.MoveToFront(b.elem)
	}
	bc.mu.Unlock(h)
}
