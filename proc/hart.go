package proc

import (
	"runtime"
	"strconv"
	"sync"

	"rv6/spinlock"
)

// goid extracts the calling goroutine's numeric ID by parsing the header
// line of its own stack trace. A patched runtime exposing a real
// goroutine-local slot (the way biscuit's tinfo package uses
// runtime.Gptr/Setgptr) isn't available to an unmodified go toolchain, so
// this is the stock-runtime substitute: the stack trace's "goroutine N
// [running]:" header is the only goroutine identity a hosted Go program
// can read without cooperation from the caller.
func goid() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := string(buf[:n])
	const prefix = "goroutine "
	s = s[len(prefix):]
	i := 0
	for i < len(s) && s[i] != ' ' {
		i++
	}
	id, _ := strconv.ParseUint(s[:i], 10, 64)
	return id
}

// binding is what a goroutine running kernel code on behalf of some
// process or scheduler loop is bound to: the hart-local interrupt-nesting
// state every spinlock needs, and (when it's a process rather than a bare
// scheduler loop) the Proc_t it is running as.
type binding struct {
	hart *spinlock.HartState
	proc *Proc_t
}

var (
	hartsMu sync.Mutex
	harts   = map[uint64]binding{}
)

// BindCaller associates the calling goroutine with h and the process it is
// about to act on behalf of, for the duration of a call into a
// fixed-interface-shape collaborator (fdops.Fdops_i) that has no room for
// an explicit *HartState/*Proc_t parameter. Every other kernel entry point
// in this package takes h and p explicitly instead; BindCaller exists
// solely so spinlock.CurHart() and the pipe/console killed-process hooks
// can recover them from inside fs.File_t/pipe.End_t/console.Console_t's
// Read/Write/Close methods. Callers (the syscall dispatcher) must pair
// every BindCaller with an UnbindCaller, typically via defer.
func BindCaller(h *spinlock.HartState, p *Proc_t) {
	hartsMu.Lock()
	harts[goid()] = binding{hart: h, proc: p}
	hartsMu.Unlock()
}

/// UnbindCaller releases the binding BindCaller installed.
func UnbindCaller() {
	hartsMu.Lock()
	delete(harts, goid())
	hartsMu.Unlock()
}

func curBinding() binding {
	hartsMu.Lock()
	b, ok := harts[goid()]
	hartsMu.Unlock()
	if !ok {
		panic("proc: curBinding: goroutine has no bound hart")
	}
	return b
}

func curHart() *spinlock.HartState {
	return curBinding().hart
}

func init() {
	spinlock.SetCurHartHook(curHart)
}
