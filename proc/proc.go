// Package proc implements the process table, per-CPU scheduler, fork/
// exec/wait/exit/kill lifecycle, and sleep/wakeup (spec §4.8, §4.9),
// grounded on original_source/kernel/proc.c. Every operation that already
// runs inside a goroutine acting on behalf of a specific process takes
// that process's *Proc_t and *spinlock.HartState explicitly, continuing
// the parameter-passing idiom the fs/vm packages already use instead of a
// hidden myproc()/mycpu() global; BindCaller/spinlock.CurHart() exist only
// for the narrow exception where a fixed interface shape (fdops.Fdops_i)
// leaves no room for an explicit parameter.
package proc

import (
	"sync"
	"unsafe"

	"rv6/accnt"
	"rv6/defs"
	"rv6/fd"
	"rv6/fs"
	"rv6/limits"
	"rv6/mem"
	"rv6/riscv"
	"rv6/spinlock"
	"rv6/vm"
)

/// Pstate_t is a process's scheduling state.
type Pstate_t int

const (
	UNUSED Pstate_t = iota
	USED
	SLEEPING
	RUNNABLE
	RUNNING
	ZOMBIE
)

func (s Pstate_t) String() string {
	switch s {
	case UNUSED:
		return "unused"
	case USED:
		return "used"
	case SLEEPING:
		return "sleep "
	case RUNNABLE:
		return "runble"
	case RUNNING:
		return "run   "
	case ZOMBIE:
		return "zombie"
	}
	return "???"
}

// Proc_t is one process table slot. mu guards every field below this
// comment except during USED/UNUSED transitions at alloc/free time, which
// the table's own lock serializes (spec §4.8's proc-table bookkeeping).
type Proc_t struct {
	mu spinlock.Spinlock_t

	pid     int
	state   Pstate_t
	killed  bool
	xstate  int
	sleepOn interface{} // diagnostic mirror of xv6's p->chan; the real wait is the sleep registry
	parent  *Proc_t
	name    string

	sz        int
	pagetable vm.Pagetable_t
	cwd       *fd.Cwd_t
	ofile     [limits.NOFILE]*fd.Fd_t

	// trapframePa is the physical frame backing this process's pinned
	// trapframe, allocated once at allocproc time and mapped into every
	// pagetable this process ever owns at the fixed VA riscv.TRAPFRAME
	// (spec §3's per-process data model, §4.2).
	trapframePa mem.Pa_t

	// entry/sp are the values Exec computes for the initial program
	// counter and stack pointer (spec §4.8 exec); the kernel package's
	// resume hook reads them through Entry/Sp and records them when the
	// scheduler picks the process.
	entry uintptr
	sp    uintptr

	Acc accnt.Accnt_t
}

/// Trapframe returns a pointer to p's pinned trapframe page, addressed
/// directly by its backing physical frame the same way mem.Dmap reaches
/// any other simulated frame.
func (p *Proc_t) Trapframe() *Trapframe_t {
	return (*Trapframe_t)(unsafe.Pointer(uintptr(p.trapframePa)))
}

/// Pid returns p's process ID.
func (p *Proc_t) Pid() int { return p.pid }

/// Name returns p's debug name (the program's basename).
func (p *Proc_t) Name() string { return p.name }

/// Entry returns the program counter Exec computed for this process.
func (p *Proc_t) Entry() uintptr { return p.entry }

/// Sp returns the stack pointer Exec computed for this process.
func (p *Proc_t) Sp() uintptr { return p.sp }

/// Pagetable returns p's user page table root, for callers (kernel's
/// argument decoding) that need to copy to/from p's address space.
func (p *Proc_t) Pagetable() vm.Pagetable_t { return p.pagetable }

/// Sz returns p's current address space size in bytes.
func (p *Proc_t) Sz() int { return p.sz }

// table is the fixed-size process table (spec §4.8). Slot allocation
// itself never blocks or sleeps, so a plain mutex serializes the scan for
// a free slot; each Proc_t's own spinlock.Spinlock_t continues to guard
// its state transitions afterward, exactly as p->lock does in the
// teacher's source.
var table struct {
	sync.Mutex
	procs [limits.NPROC]Proc_t
}

var (
	nextPidMu sync.Mutex
	nextPid   = 1

	// waitLock must be acquired before any Proc_t.mu, mirroring
	// original_source/kernel/proc.c's wait_lock: it keeps a reparenting
	// exit() and a scanning wait() from missing each other's update.
	waitLock spinlock.Spinlock_t

	initproc *Proc_t

	// procTrampolinePa is the one physical frame holding the trampoline
	// code, shared read+exec by every process's pagetable at the fixed VA
	// riscv.TRAMPOLINE; the boot sequence allocates it once, maps it into
	// the kernel pagetable, and records it here via SetTrampoline before
	// process 0 exists.
	procTrampolinePa mem.Pa_t
)

/// SetTrampoline records the physical frame every process's pagetable
/// maps its trampoline page from (spec §4.2). Called once at boot,
/// before Userinit.
func SetTrampoline(pa mem.Pa_t) { procTrampolinePa = pa }

func allocPid() int {
	nextPidMu.Lock()
	defer nextPidMu.Unlock()
	pid := nextPid
	nextPid++
	return pid
}

// allocproc finds an UNUSED slot, gives it a pid, and returns it in the
// USED state with its Proc_t.mu held for h — the caller finishes setting
// it up and must release it (spec §4.8 alloc_proc).
func allocproc(h *spinlock.HartState) (*Proc_t, defs.Err_t) {
	table.Lock()
	defer table.Unlock()

	for i := range table.procs {
		p := &table.procs[i]
		p.mu.Lock(h)
		if p.state == UNUSED {
			tfpa, ok := mem.Physmem.Alloc()
			if !ok {
				p.mu.Unlock(h)
				return nil, -defs.ENOMEM
			}
			p.pid = allocPid()
			p.state = USED
			p.trapframePa = tfpa
			return p, 0
		}
		p.mu.Unlock(h)
	}
	return nil, -defs.EAGAIN
}

// freeproc resets p to UNUSED. Caller holds p.mu.
func freeproc(h *spinlock.HartState, p *Proc_t) {
	if p.pagetable != nil {
		vm.FreeProcSpace(p.pagetable, p.sz)
	}
	if p.trapframePa != 0 {
		mem.Physmem.Free(p.trapframePa)
	}
	p.pagetable = nil
	p.trapframePa = 0
	p.sz = 0
	p.pid = 0
	p.parent = nil
	p.name = ""
	p.sleepOn = nil
	p.killed = false
	p.xstate = 0
	p.state = UNUSED
}

// Userinit builds process 0: a single-page image containing init, whose
// entry point is responsible for exec()ing the real /init (spec §4.8
// userinit). h is the calling (boot) hart's state.
func Userinit(h *spinlock.HartState, fsys *fs.Fs_t, init []byte) *Proc_t {
	p, err := allocproc(h)
	if err != 0 {
		panic("proc: userinit: process table full at boot")
	}
	pt, verr := vm.ProcPagetable(procTrampolinePa, p.trapframePa)
	if verr != 0 {
		panic("proc: userinit: out of memory at boot")
	}
	if verr := vm.UvmFirst(pt, init); verr != 0 {
		panic("proc: userinit: out of memory at boot")
	}
	p.pagetable = pt
	p.sz = int(riscv.Pgroundup(uintptr(len(init))))
	p.name = "initcode"
	p.cwd = fsys.MkRootCwd(h)
	p.state = RUNNABLE
	p.mu.Unlock(h)

	initproc = p
	return p
}

// Growproc grows or shrinks p's address space by n bytes (spec §4.8
// growproc, the kernel half of sbrk()).
func Growproc(h *spinlock.HartState, p *Proc_t, n int) defs.Err_t {
	sz := p.sz
	if n > 0 {
		newsz, err := vm.UvmAlloc(p.pagetable, sz, sz+n, riscv.PTE_W)
		if err != 0 {
			return err
		}
		sz = newsz
	} else if n < 0 {
		sz = vm.UvmDealloc(p.pagetable, sz, sz+n)
	}
	p.sz = sz
	return 0
}

/// Killed reports whether p has been marked for death.
func (p *Proc_t) Killed(h *spinlock.HartState) bool {
	p.mu.Lock(h)
	k := p.killed
	p.mu.Unlock(h)
	return k
}

/// Setkilled marks p for death; it exits next time it checks Killed.
func Setkilled(h *spinlock.HartState, p *Proc_t) {
	p.mu.Lock(h)
	p.killed = true
	p.mu.Unlock(h)
}

/// Kill marks the process with the given pid for death, waking it if it
/// is sleeping so it notices promptly (spec §4.8 kill).
func Kill(h *spinlock.HartState, pid int) defs.Err_t {
	for i := range table.procs {
		p := &table.procs[i]
		p.mu.Lock(h)
		if p.pid == pid {
			p.killed = true
			if p.state == SLEEPING {
				p.state = RUNNABLE
				wakeup(p.sleepOn)
			}
			p.mu.Unlock(h)
			return 0
		}
		p.mu.Unlock(h)
	}
	return -defs.ENOENT
}

/// Procdump prints a one-line-per-process listing, the handler Ctrl-P
/// triggers through console.SetProcdumpHook.
func Procdump(h *spinlock.HartState) {
	println()
	for i := range table.procs {
		p := &table.procs[i]
		p.mu.Lock(h)
		st, pid, name := p.state, p.pid, p.name
		p.mu.Unlock(h)
		if st == UNUSED {
			continue
		}
		println(pid, st.String(), name)
	}
}
