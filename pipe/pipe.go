// Package pipe implements the bounded ring-buffer FIFO backing pipe()
// (spec §4.10), grounded on original_source/kernel/pipe.c: one spinlock
// guards nread/nwrite and the readopen/writeopen flags, and readers/
// writers block on the two sleep channels &pi.readTok / &pi.writeTok
// rather than a condition variable, as xv6 does with &pi->nread /
// &pi->nwrite.
package pipe

import (
	"sync/atomic"

	"rv6/defs"
	"rv6/fdops"
	"rv6/limits"
	"rv6/spinlock"
	"rv6/stat"
)

// PIPESIZE is the ring buffer's capacity in bytes.
const PIPESIZE = 512

// killedHook reports whether the calling process has been marked for
// death, so a blocked pipewrite/piperead can unwind instead of hanging
// forever on a process the scheduler is trying to reap. Installed by the
// proc package at boot, mirroring spinlock.SetCurHartHook's idiom for an
// otherwise-external collaborator.
var killedHook func() bool

/// SetKilledHook installs the current-process-killed query.
func SetKilledHook(f func() bool) {
	killedHook = f
}

func killed() bool {
	if killedHook == nil {
		return false
	}
	return killedHook()
}

// Pipe_t is the shared ring buffer two endpoints (End_t) read and write
// through. nread/nwrite are monotonically increasing counts, not
// positions — data[n % PIPESIZE] is where byte n lives.
type Pipe_t struct {
	lock      spinlock.Spinlock_t
	data      [PIPESIZE]byte
	nread     uint
	nwrite    uint
	readopen  bool
	writeopen bool
	readTok   byte
	writeTok  byte
}

// End_t is one open file descriptor's view of a Pipe_t: readable xor
// writable, implementing fdops.Fdops_i the same as fs.File_t does.
type End_t struct {
	pi       *Pipe_t
	readable bool
	dups     atomic.Int32 // Reopen calls not yet matched by a Close
}

var _ fdops.Fdops_i = (*End_t)(nil)

// Pipealloc creates a pipe and returns its read end and write end. Fails
// with EAGAIN if the system-wide pipe quota (limits.Syslimit.Pipes) is
// exhausted.
func Pipealloc() (*End_t, *End_t, defs.Err_t) {
	if !limits.Syslimit.Pipes.Take() {
		return nil, nil, -defs.EAGAIN
	}
	pi := &Pipe_t{readopen: true, writeopen: true}
	rd := &End_t{pi: pi, readable: true}
	wr := &End_t{pi: pi, readable: false}
	return rd, wr, 0
}

func (e *End_t) hart() *spinlock.HartState { return spinlock.CurHart() }

/// Close drops one descriptor's reference to this end; the last one marks
/// this end's direction closed, waking the other end, and frees the
/// pipe's quota slot once both ends are closed.
func (e *End_t) Close() defs.Err_t {
	if e.dups.Add(-1) >= 0 {
		return 0
	}
	h := e.hart()
	pi := e.pi
	pi.lock.Lock(h)
	if e.readable {
		pi.readopen = false
		spinlock.Wakeup(&pi.writeTok)
	} else {
		pi.writeopen = false
		spinlock.Wakeup(&pi.readTok)
	}
	both := !pi.readopen && !pi.writeopen
	pi.lock.Unlock(h)
	if both {
		limits.Syslimit.Pipes.Give()
	}
	return 0
}

/// Reopen records one more descriptor sharing this end (a dup() or a
/// fork's copy), so the end stays open until every copy is closed.
func (e *End_t) Reopen() defs.Err_t {
	e.dups.Add(1)
	return 0
}

/// Fstat is not meaningful for a pipe; pipes have no inode.
func (e *End_t) Fstat(st *stat.Stat_t) defs.Err_t {
	return -defs.EINVAL
}

/// Lseek is not supported on a pipe.
func (e *End_t) Lseek(off int, whence int) (int, defs.Err_t) {
	return 0, -defs.EINVAL
}

/// Write copies src into the pipe, blocking while it is full, returning
/// early if the reader has gone away or this process was killed.
func (e *End_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	if e.readable {
		return 0, -defs.EINVAL
	}
	h := e.hart()
	pi := e.pi
	pi.lock.Lock(h)
	defer pi.lock.Unlock(h)

	n := src.Remain()
	i := 0
	for i < n {
		if !pi.readopen || killed() {
			return i, -defs.EINVAL
		}
		if pi.nwrite == pi.nread+PIPESIZE {
			spinlock.Wakeup(&pi.readTok)
			spinlock.Sleep(&pi.writeTok, &pi.lock, h)
			continue
		}
		var ch [1]byte
		if _, err := src.Uio_write(ch[:]); err != 0 {
			break
		}
		pi.data[pi.nwrite%PIPESIZE] = ch[0]
		pi.nwrite++
		i++
	}
	spinlock.Wakeup(&pi.readTok)
	return i, 0
}

/// Read copies up to dst's capacity out of the pipe, blocking while it is
/// empty and the writer is still open.
func (e *End_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	if !e.readable {
		return 0, -defs.EINVAL
	}
	h := e.hart()
	pi := e.pi
	pi.lock.Lock(h)
	defer pi.lock.Unlock(h)

	for pi.nread == pi.nwrite && pi.writeopen {
		if killed() {
			return 0, -defs.EKILLED
		}
		spinlock.Sleep(&pi.readTok, &pi.lock, h)
	}

	n := dst.Remain()
	i := 0
	for i < n {
		if pi.nread == pi.nwrite {
			break
		}
		ch := pi.data[pi.nread%PIPESIZE]
		if _, err := dst.Uio_read([]byte{ch}); err != 0 {
			break
		}
		pi.nread++
		i++
	}
	spinlock.Wakeup(&pi.writeTok)
	return i, 0
}
