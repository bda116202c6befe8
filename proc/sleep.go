package proc

import (
	"sync"

	"rv6/spinlock"
)

// sleep/wakeup (spec §4.9) is the two-lock handoff xv6 builds atop a
// linear scan of the process table: sleep records the channel a process
// is waiting on, wakeup scans every process and marks the matching ones
// runnable. A goroutine-per-process kernel doesn't need the scan — the
// channel registry below is a direct condition-variable substitute, with
// wakeup's broadcast-to-every-waiter semantics preserved exactly (every
// goroutine parked on chan_ is released, not just one).
var (
	waitersMu sync.Mutex
	waiters   = map[interface{}][]chan struct{}{}
)

func sleep(chan_ interface{}, lk *spinlock.Spinlock_t, h *spinlock.HartState) {
	ch := make(chan struct{})
	waitersMu.Lock()
	waiters[chan_] = append(waiters[chan_], ch)
	waitersMu.Unlock()

	lk.Unlock(h)
	<-ch
	lk.Lock(h)
}

func wakeup(chan_ interface{}) {
	waitersMu.Lock()
	chs := waiters[chan_]
	delete(waiters, chan_)
	waitersMu.Unlock()

	for _, ch := range chs {
		close(ch)
	}
}

func init() {
	spinlock.SetSleepHooks(sleep, wakeup)
}
