package proc

import (
	"testing"

	"rv6/spinlock"
)

func TestSchedulerRunsRunnableProcess(t *testing.T) {
	var h spinlock.HartState
	p := mkTestProc(t, &h)

	ran := false
	SetResumeHook(func(rp *Proc_t) {
		if rp != p {
			t.Errorf("resumeHook called with %p, want %p", rp, p)
		}
		ran = true
	})
	defer SetResumeHook(nil)

	c := MkCpu()
	c.Scheduler(&h)

	if !ran {
		t.Fatalf("scheduler never ran the runnable process")
	}
}

func TestYieldMarksRunnable(t *testing.T) {
	var h spinlock.HartState
	p := mkTestProc(t, &h)

	p.mu.Lock(&h)
	p.state = RUNNING
	p.mu.Unlock(&h)

	Yield(&h, p)

	p.mu.Lock(&h)
	st := p.state
	p.mu.Unlock(&h)
	if st != RUNNABLE {
		t.Fatalf("state after yield = %v, want RUNNABLE", st)
	}
}
