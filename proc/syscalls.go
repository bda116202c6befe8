package proc

import (
	"rv6/defs"
	"rv6/fd"
	"rv6/spinlock"
	"rv6/vm"
)

// Sleep blocks p on chan_, releasing lk first and reacquiring it once
// woken (spec §4.9's two-lock handoff). The caller holds lk; unless lk is
// p.mu itself, Sleep takes p.mu before releasing lk.
func Sleep(h *spinlock.HartState, p *Proc_t, chan_ interface{}, lk *spinlock.Spinlock_t) {
	if lk != &p.mu {
		p.mu.Lock(h)
		lk.Unlock(h)
	}
	p.sleepOn = chan_
	p.state = SLEEPING
	spinlock.Sleep(chan_, &p.mu, h)
	// Whoever gets here is, by construction, running kernel code again;
	// the scheduler would have made this transition itself before
	// resuming a real swtch-based process.
	p.state = RUNNING
	p.sleepOn = nil
	if lk != &p.mu {
		p.mu.Unlock(h)
		lk.Lock(h)
	}
}

/// Wakeup wakes every process sleeping on chan_ (spec §4.9).
func Wakeup(chan_ interface{}) {
	spinlock.Wakeup(chan_)
}

// Fork creates a child of p: a fresh process table slot with its own
// copy of p's address space, duplicated file descriptors, and the same
// cwd, runnable the instant Fork returns (spec §4.8 fork). Returns the
// child's pid in the parent.
func Fork(h *spinlock.HartState, p *Proc_t) (int, defs.Err_t) {
	np, err := allocproc(h)
	if err != 0 {
		return -1, err
	}

	pt, verr := vm.ProcPagetable(procTrampolinePa, np.trapframePa)
	if verr != 0 {
		freeproc(h, np)
		np.mu.Unlock(h)
		return -1, verr
	}
	if verr := vm.UvmCopy(p.pagetable, pt, p.sz); verr != 0 {
		vm.FreeProcSpace(pt, 0)
		freeproc(h, np)
		np.mu.Unlock(h)
		return -1, verr
	}
	np.pagetable = pt
	np.sz = p.sz
	np.name = p.name

	// Copy the parent's trapframe into the child, then zero the child's
	// return-value register: fork() reports 0 to the child and the
	// child's pid to the parent (spec §4.8).
	*np.Trapframe() = *p.Trapframe()
	np.Trapframe().A0 = 0

	for i, ofd := range p.ofile {
		if ofd == nil {
			continue
		}
		dup, derr := fd.Copyfd(ofd)
		if derr != 0 {
			// np.pagetable is already set to pt above, so freeproc's own
			// cleanup frees it; an explicit FreeProcSpace here would free
			// it twice.
			freeproc(h, np)
			np.mu.Unlock(h)
			return -1, derr
		}
		np.ofile[i] = dup
	}
	np.cwd = p.cwd

	pid := np.pid
	np.mu.Unlock(h)

	waitLock.Lock(h)
	np.parent = p
	waitLock.Unlock(h)

	np.mu.Lock(h)
	np.state = RUNNABLE
	np.mu.Unlock(h)

	return pid, 0
}

// reparent hands p's children to initproc so a zombie always has someone
// to reap it (spec §4.8 exit). Caller holds waitLock.
func reparent(h *spinlock.HartState, p *Proc_t) {
	for i := range table.procs {
		pp := &table.procs[i]
		pp.mu.Lock(h)
		isChild := pp.parent == p
		pp.mu.Unlock(h)
		if isChild {
			pp.parent = initproc
			Wakeup(initproc)
		}
	}
}

// Exit tears down p's open files and cwd, reparents its children, wakes
// its parent, and becomes a ZOMBIE for the parent's Wait to reap (spec
// §4.8 exit). Never returns to the caller in spirit (xv6 jumps into the
// scheduler and never comes back); here it simply leaves p in ZOMBIE and
// the caller (the syscall dispatcher) is expected to stop running this
// process's code immediately afterward.
func Exit(h *spinlock.HartState, p *Proc_t, status int) {
	if p == initproc {
		panic("proc: exit: init exiting")
	}

	BindCaller(h, p)
	for i, ofd := range p.ofile {
		if ofd != nil {
			fd.Close_panic(ofd)
			p.ofile[i] = nil
		}
	}
	if p.cwd != nil && p.cwd.Fd != nil {
		fd.Close_panic(p.cwd.Fd)
	}
	UnbindCaller()
	p.cwd = nil

	waitLock.Lock(h)
	reparent(h, p)
	Wakeup(p.parent)

	p.mu.Lock(h)
	p.xstate = status
	p.state = ZOMBIE
	p.mu.Unlock(h)
	waitLock.Unlock(h)
}

// Wait blocks p until one of its children exits, frees that child's
// table slot, and returns its pid and exit status (spec §4.8 wait).
// Returns ECHILD immediately if p has no children at all.
func Wait(h *spinlock.HartState, p *Proc_t) (int, int, defs.Err_t) {
	waitLock.Lock(h)
	for {
		havekids := false
		for i := range table.procs {
			pp := &table.procs[i]
			if pp.parent != p {
				continue
			}
			pp.mu.Lock(h)
			havekids = true
			if pp.state == ZOMBIE {
				pid := pp.pid
				xstate := pp.xstate
				freeproc(h, pp)
				pp.mu.Unlock(h)
				waitLock.Unlock(h)
				return pid, xstate, 0
			}
			pp.mu.Unlock(h)
		}
		if !havekids || p.Killed(h) {
			waitLock.Unlock(h)
			return -1, 0, -defs.ECHILD
		}
		Sleep(h, p, p, &waitLock)
	}
}
