package proc

import (
	"rv6/spinlock"
	"rv6/stats"
)

// resumeHook is the trap-entry/trampoline handoff into user mode (spec
// §1's trap vectors, explicitly external): given a RUNNING process, it
// runs that process until the next trap back into the kernel, at which
// point whatever it called (a syscall's Sleep/Yield, or Exit) has already
// updated p's state and this call returns. Installed once by the kernel
// package's boot glue; left nil in anything exercising proc directly
// (fork/exit/wait unit tests never need a user image to actually run).
var resumeHook func(p *Proc_t)

/// SetResumeHook installs the user-mode resume primitive.
func SetResumeHook(f func(p *Proc_t)) {
	resumeHook = f
}

// Cpu_t is one hart's scheduler loop state: its own interrupt-nesting
// bookkeeping and the process it is currently running, mirroring struct
// cpu (spec §4.8).
type Cpu_t struct {
	Hart spinlock.HartState
	proc *Proc_t
}

/// MkCpu returns a freshly initialized per-hart scheduler state.
func MkCpu() *Cpu_t {
	return &Cpu_t{}
}

// Scheduler runs one round-robin pass over the process table, running
// each RUNNABLE process it finds to completion of its current kernel
// visit (spec §4.8's scheduler loop, collapsed from an infinite swtch
// loop into one testable pass since this kernel has no separate hardware
// thread of control per hart to loop forever on).
func (c *Cpu_t) Scheduler(h *spinlock.HartState) {
	for i := range table.procs {
		p := &table.procs[i]
		p.mu.Lock(h)
		if p.state != RUNNABLE {
			p.mu.Unlock(h)
			continue
		}
		p.state = RUNNING
		c.proc = p
		p.mu.Unlock(h)

		if resumeHook != nil {
			BindCaller(h, p)
			resumeHook(p)
			UnbindCaller()
			stats.Global.CtxSwitches.Inc()
		}

		p.mu.Lock(h)
		if p.state == RUNNING {
			p.state = RUNNABLE
		}
		p.mu.Unlock(h)
		c.proc = nil
	}
}

/// Yield gives up the CPU for one scheduling round (spec §4.8 yield).
func Yield(h *spinlock.HartState, p *Proc_t) {
	p.mu.Lock(h)
	p.state = RUNNABLE
	p.mu.Unlock(h)
}
