package kernel

import (
	"fmt"
	"os"
	"unsafe"

	"rv6/caller"
	"rv6/console"
	"rv6/defs"
	"rv6/fs"
	"rv6/mem"
	"rv6/proc"
	"rv6/spinlock"
	"rv6/stats"
	"rv6/vm"
)

// distinctPanics de-duplicates repeated invariant-violation panics the
// way a stress test tripping the same bug thousands of times would
// otherwise flood the console (caller.Distinct_caller_t's purpose).
var distinctPanics = caller.Distinct_caller_t{Enabled: true}

// Panicf reports a kernel-invariant violation with its call stack and
// terminates the process, mirroring original_source/kernel/printf.c's
// panic(): these indicate a bug, and spec §7 says recovery is neither
// safe nor required. Only the first occurrence of a given call chain is
// printed with its message and trace; a repeat prints just
// caller.Callerdump's stack listing before panicking the same way.
func Panicf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if distinct, trace := distinctPanics.Distinct(); distinct {
		fmt.Fprintf(os.Stderr, "kernel panic: %s\n%s", msg, trace)
	} else {
		caller.Callerdump(2)
	}
	panic("kernel: " + msg)
}

// ticks and ticksLock are the condition and its guarding lock behind
// sleep(ticks) (spec §6, grounded on original_source/kernel/trap.c's
// clockintr/ticklock pair). The real timer device and interrupt are
// external; Tick is the kernel side of that boundary, called by whatever
// drives the simulated clock. The predicate and the sleep/wakeup handoff
// share this one lock, as spec property 5 requires: a wakeup that races
// a sleep under two different locks can be lost.
var (
	ticksLock spinlock.Spinlock_t
	ticks     int
)

/// Tick advances the kernel's tick counter and wakes anyone sleeping on it.
func Tick(h *spinlock.HartState) {
	ticksLock.Lock(h)
	ticks++
	ticksLock.Unlock(h)
	proc.Wakeup(&ticks)
}

// SleepTicks blocks p until at least n further ticks have elapsed,
// mirroring original_source/kernel/sysproc.c's sys_sleep busy-resleep
// loop (sleep() can wake early for other reasons, so it rechecks).
func SleepTicks(h *spinlock.HartState, p *proc.Proc_t, n int) {
	ticksLock.Lock(h)
	target := ticks + n
	for ticks < target {
		proc.Sleep(h, p, &ticks, &ticksLock)
	}
	ticksLock.Unlock(h)
}

// Kinit brings up the kernel's in-process state: the physical frame
// allocator, the kernel page table, the console and /dev/prof devices,
// the mounted file system, and process 0 (spec §4.1-§4.2, §4.8
// userinit). ramBytes sizes a Go-allocated slab standing in for
// physical RAM (spec Non-goals exclude real memory detection); disk is
// an already-formatted image (cmd/mkfs's job, not this one's).
func Kinit(h *spinlock.HartState, ramBytes int, disk fs.Disk_i, dev int, initBinary []byte) (*State_t, *proc.Proc_t, defs.Err_t) {
	ram := make([]byte, ramBytes)
	start := mem.Pa_t(uintptr(unsafe.Pointer(&ram[0])))
	end := start + mem.Pa_t(len(ram))
	mem.Physmem.Init(start, end)

	console.MkConsole()
	console.SetUartPutcHook(func(c byte) { os.Stdout.Write([]byte{c}) })
	stats.MkDev()

	fsys, err := fs.StartFS(h, disk, dev)
	if err != 0 {
		return nil, nil, err
	}

	trampolinePa, ok := mem.Physmem.Alloc()
	if !ok {
		return nil, nil, -defs.ENOMEM
	}
	if _, verr := vm.MkKernelPagetable(start, end, trampolinePa, nil); verr != 0 {
		return nil, nil, verr
	}
	proc.SetTrampoline(trampolinePa)

	initp := proc.Userinit(h, fsys, initBinary)
	state := &State_t{Fs: fsys}
	proc.SetResumeHook(state.resume)

	return state, initp, 0
}

// resume stands in for the trampoline/trap-return assembly's job of
// actually switching to user mode (external per spec §1): it can only
// observe that the scheduler picked p to run next, via the entry PC and
// SP Exec/Userinit computed. Kept here, rather than left as a no-op,
// because it is the one seam that documents what a real kernel would do
// at this point: program p's trapframe and sret.
func (k *State_t) resume(p *proc.Proc_t) {
	k.resumeMu.Lock()
	defer k.resumeMu.Unlock()
	k.LastResume = Trapframe_t{Epc: p.Entry(), Sp: p.Sp()}
	k.ResumeCount++
}
