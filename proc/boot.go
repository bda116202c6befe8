package proc

import (
	"rv6/console"
	"rv6/pipe"
	"rv6/spinlock"
)

// dumpHart backs Ctrl-P's procdump hook, which console's UART interrupt
// handler calls with no process bound and no *spinlock.HartState of its
// own to hand us. Procdump only ever takes Proc_t.mu for the instant it
// takes to read three fields, so one dedicated HartState shared by every
// such dump is sufficient; it is never used by anything that sleeps.
var dumpHart spinlock.HartState

// killedHook answers pipe/console's "has the calling process been killed"
// query, the one place those packages need to reach back into a process
// without an explicit parameter (the fdops.Fdops_i exception BindCaller
// exists for). A goroutine with no bound process — the boot hart, or a
// scheduler loop between processes — is never "killed".
func killedHook() bool {
	hartsMu.Lock()
	b, ok := harts[goid()]
	hartsMu.Unlock()
	if !ok || b.proc == nil {
		return false
	}
	return b.proc.Killed(b.hart)
}

func init() {
	pipe.SetKilledHook(killedHook)
	console.SetKilledHook(killedHook)
	console.SetProcdumpHook(func() {
		Procdump(&dumpHart)
	})
}
