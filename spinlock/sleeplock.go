package spinlock

// Sleep and wakeup are implemented by the proc package (the process table
// they scan lives there); this package only calls them through the hooks
// below to avoid a package import cycle, mirroring how xv6's sleeplock.c
// calls the proc.c-resident sleep()/wakeup() directly.
var (
	sleepHook  func(chan_ interface{}, lk *Spinlock_t, h *HartState)
	wakeupHook func(chan_ interface{})
)

// SetSleepHooks installs the sleep/wakeup primitive (spec §4.9). Called
// once by the proc package's init wiring.
func SetSleepHooks(sleep func(interface{}, *Spinlock_t, *HartState), wakeup func(interface{})) {
	sleepHook, wakeupHook = sleep, wakeup
}

// Sleep atomically releases lk and blocks the calling process on chan_,
// reacquiring lk before returning (spec §4.9). Any code holding a
// Spinlock_t while it waits for another hart's progress — not just
// Sleeplock_t itself — calls this directly, mirroring xv6's sleep()/
// wakeup() being called straight from log.c and pipe.c, not just
// sleeplock.c.
func Sleep(chan_ interface{}, lk *Spinlock_t, h *HartState) {
	sleepHook(chan_, lk, h)
}

/// Wakeup wakes every process sleeping on chan_. Before SetSleepHooks has
/// run nothing can be sleeping, so it does nothing then.
func Wakeup(chan_ interface{}) {
	if wakeupHook != nil {
		wakeupHook(chan_)
	}
}

// Sleeplock_t is a mutex built atop sleep/wakeup: its holder may be
// preempted and may itself sleep while holding it (spec §4.3). Per the
// one-spinlock-during-acquire rule, the inner Spinlock_t is only ever held
// across the body of Acquire/Release, never across the time the sleep
// lock itself is held.
type Sleeplock_t struct {
	lk     Spinlock_t
	locked bool
	chanTok byte // address-of used as the sleep channel token
	Name   string
}

/// Acquire blocks until the sleep lock is free, then takes it.
func (s *Sleeplock_t) Acquire(h *HartState) {
	s.lk.Lock(h)
	for s.locked {
		sleepHook(&s.chanTok, &s.lk, h)
	}
	s.locked = true
	s.lk.Unlock(h)
}

/// Release frees the sleep lock and wakes any waiters.
func (s *Sleeplock_t) Release(h *HartState) {
	s.lk.Lock(h)
	s.locked = false
	Wakeup(&s.chanTok)
	s.lk.Unlock(h)
}

/// Holding reports whether the sleep lock is currently held.
func (s *Sleeplock_t) Holding(h *HartState) bool {
	s.lk.Lock(h)
	r := s.locked
	s.lk.Unlock(h)
	return r
}
