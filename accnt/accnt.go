// Package accnt accumulates per-process CPU time accounting.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"rv6/util"
)

// Accnt_t accumulates per-process accounting information. Userns and Sysns
// store runtime in nanoseconds. The embedded mutex lets callers take a
// consistent snapshot when exporting usage statistics.
type Accnt_t struct {
	Userns int64 /// nanoseconds of user time consumed
	Sysns  int64 /// nanoseconds of system time consumed
	sync.Mutex
}

/// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

/// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

/// Now returns the current time in nanoseconds since the epoch.
func (a *Accnt_t) Now() int {
	return int(time.Now().UnixNano())
}

/// Finish adds the elapsed time since inttime to the system-time counter.
func (a *Accnt_t) Finish(inttime int) {
	a.Systadd(a.Now() - inttime)
}

/// Add merges another accounting record into this one.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

/// Fetch returns a serialized rusage-style snapshot of user/sys time.
func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	ru := a.toRusage()
	a.Unlock()
	return ru
}

func (a *Accnt_t) toRusage() []uint8 {
	ret := make([]uint8, 4*8)
	totv := func(nano int64) (int, int) {
		return int(nano / 1e9), int((nano % 1e9) / 1000)
	}
	off := 0
	s, us := totv(a.Userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(a.Sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}
