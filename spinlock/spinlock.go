// Package spinlock implements the two lock kinds spec §4.3 requires: a
// Spinlock_t that disables interrupts on the acquiring hart with a nesting
// counter, and a Sleeplock_t built atop sleep/wakeup whose holder may
// block.
//
// The actual interrupt-disable instruction is a hart-local CSR write, an
// external collaborator per spec §1; it is installed once at boot via
// SetIntrHooks, mirroring the external-hook setter idiom already visible
// in biscuit/src/vm/as.go's Cpumap(f).
package spinlock

import "sync/atomic"

var (
	intrOn  func() bool
	intrSet func(bool)
	curHart func() *HartState
)

// SetIntrHooks installs the hart-local interrupt query/set primitives.
// Called once by the boot glue before any spinlock is used.
func SetIntrHooks(get func() bool, set func(bool)) {
	intrOn, intrSet = get, set
}

// SetCurHartHook installs the "which hart is running this goroutine"
// lookup (mirroring xv6's mycpu()), so packages whose exported methods
// are pinned to a fixed interface shape (e.g. fdops.Fdops_i, which has
// no room for an explicit *HartState parameter) can still drive a
// Spinlock_t/Sleeplock_t correctly. Call sites that DO control their own
// signature keep taking *HartState explicitly instead of calling this.
func SetCurHartHook(f func() *HartState) {
	curHart = f
}

/// CurHart returns the calling goroutine's hart state via the installed
/// hook.
func CurHart() *HartState {
	return curHart()
}

// HartState is the per-hart interrupt-nesting bookkeeping xv6 keeps in
// struct cpu (noff, intena). The scheduler owns one instance per hart and
// passes it to every PushOff/PopOff/Lock/Unlock call made on that hart.
type HartState struct {
	Noff        int32
	IntrEnaOrig bool
}

// PushOff disables interrupts, saving the prior enabled-state on the first
// (outermost) call so the matching PopOff can restore it.
func PushOff(h *HartState) {
	old := intrOn()
	intrSet(false)
	if h.Noff == 0 {
		h.IntrEnaOrig = old
	}
	h.Noff++
}

// PopOff re-enables interrupts once the outermost PushOff unwinds.
func PopOff(h *HartState) {
	if h.Noff == 0 {
		panic("popoff: not held")
	}
	h.Noff--
	if h.Noff == 0 && h.IntrEnaOrig {
		intrSet(true)
	}
}

// Spinlock_t busy-waits on an atomic flag with interrupts disabled on the
// acquiring hart for the duration it is held. Holding any spinlock
// forbids sleeping.
type Spinlock_t struct {
	locked int32
	Name   string
}

/// Lock acquires the spinlock, disabling interrupts on this hart.
func (l *Spinlock_t) Lock(h *HartState) {
	PushOff(h)
	if l.Holding() {
		panic("spinlock: recursive acquire")
	}
	for !atomic.CompareAndSwapInt32(&l.locked, 0, 1) {
	}
}

/// Unlock releases the spinlock and re-enables interrupts if this was the
/// outermost hold.
func (l *Spinlock_t) Unlock(h *HartState) {
	if !l.Holding() {
		panic("spinlock: release of unheld lock")
	}
	atomic.StoreInt32(&l.locked, 0)
	PopOff(h)
}

/// Holding reports whether the lock is currently held (by anyone).
func (l *Spinlock_t) Holding() bool {
	return atomic.LoadInt32(&l.locked) == 1
}
