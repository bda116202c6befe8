package proc

import (
	"testing"
	"time"

	"rv6/spinlock"
)

func TestSleepWakeupBroadcastsToEveryWaiter(t *testing.T) {
	token := "broadcast-token"
	const n = 5

	released := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			var lk spinlock.Spinlock_t
			var h spinlock.HartState
			lk.Lock(&h)
			sleep(token, &lk, &h)
			lk.Unlock(&h)
			released <- struct{}{}
		}()
	}

	// give every goroutine a chance to register before waking them.
	deadline := time.Now().Add(time.Second)
	for {
		waitersMu.Lock()
		count := len(waiters[token])
		waitersMu.Unlock()
		if count == n || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	wakeup(token)

	for i := 0; i < n; i++ {
		select {
		case <-released:
		case <-time.After(time.Second):
			t.Fatalf("waiter %d was never released", i)
		}
	}
}

func TestWakeupWithNoWaitersIsNoop(t *testing.T) {
	wakeup("nobody is waiting on this")
}
