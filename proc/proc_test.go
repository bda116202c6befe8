package proc

import (
	"testing"
	"time"
	"unsafe"

	"rv6/mem"
	"rv6/riscv"
	"rv6/spinlock"
	"rv6/vm"
)

// testRAM stands in for physical memory: allocproc and the vm package take
// every frame from mem.Physmem, which kernel.Kinit seeds at boot.
var testRAM = make([]byte, 4<<20)

// TestMain installs stub interrupt hooks so Spinlock_t's PushOff/PopOff
// (driven by a real CSR write outside this package) has something to call;
// boot glue installs the real ones, a test just needs any well-behaved
// pair. It also seeds mem.Physmem with testRAM.
func TestMain(m *testing.M) {
	on := true
	spinlock.SetIntrHooks(func() bool { return on }, func(v bool) { on = v })
	start := mem.Pa_t(uintptr(unsafe.Pointer(&testRAM[0])))
	mem.Physmem.Init(start, start+mem.Pa_t(len(testRAM)))
	m.Run()
}

func mkTestProc(t *testing.T, h *spinlock.HartState) *Proc_t {
	t.Helper()
	p, err := allocproc(h)
	if err != 0 {
		t.Fatalf("allocproc: %v", err)
	}
	pt, verr := vm.ProcPagetable(procTrampolinePa, p.trapframePa)
	if verr != 0 {
		t.Fatalf("procpagetable: %v", verr)
	}
	if verr := vm.UvmFirst(pt, []byte{0x13, 0x00, 0x00, 0x00}); verr != 0 {
		t.Fatalf("uvmfirst: %v", verr)
	}
	p.pagetable = pt
	p.sz = riscv.PGSIZE
	p.name = "test"
	p.state = RUNNABLE
	p.mu.Unlock(h)

	t.Cleanup(func() {
		var ch spinlock.HartState
		p.mu.Lock(&ch)
		if p.state != UNUSED {
			freeproc(&ch, p)
		}
		p.mu.Unlock(&ch)
	})
	return p
}

func TestForkWaitExit(t *testing.T) {
	var h spinlock.HartState
	parent := mkTestProc(t, &h)
	initproc = parent

	child, err := Fork(&h, parent)
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}

	done := make(chan struct{})
	go func() {
		var ch spinlock.HartState
		var cp *Proc_t
		for i := range table.procs {
			if table.procs[i].pid == child {
				cp = &table.procs[i]
			}
		}
		if cp == nil {
			t.Errorf("child proc %d not found", child)
			close(done)
			return
		}
		Exit(&ch, cp, 7)
		close(done)
	}()
	<-done

	pid, status, werr := Wait(&h, parent)
	if werr != 0 {
		t.Fatalf("wait: %v", werr)
	}
	if pid != child {
		t.Fatalf("wait returned pid %d, want %d", pid, child)
	}
	if status != 7 {
		t.Fatalf("wait returned status %d, want 7", status)
	}
}

func TestWaitNoChildren(t *testing.T) {
	var h spinlock.HartState
	p := mkTestProc(t, &h)
	initproc = p

	_, _, err := Wait(&h, p)
	if err == 0 {
		t.Fatalf("wait on childless process should fail")
	}
}

func TestGrowproc(t *testing.T) {
	var h spinlock.HartState
	p := mkTestProc(t, &h)

	start := p.sz
	if err := Growproc(&h, p, riscv.PGSIZE); err != 0 {
		t.Fatalf("growproc up: %v", err)
	}
	if p.sz != start+riscv.PGSIZE {
		t.Fatalf("sz after grow = %d, want %d", p.sz, start+riscv.PGSIZE)
	}

	if err := Growproc(&h, p, -riscv.PGSIZE); err != 0 {
		t.Fatalf("growproc down: %v", err)
	}
	if p.sz != start {
		t.Fatalf("sz after shrink = %d, want %d", p.sz, start)
	}
}

func TestKillWakesSleeper(t *testing.T) {
	var h spinlock.HartState
	p := mkTestProc(t, &h)

	woke := make(chan struct{})
	go func() {
		var ch spinlock.HartState
		p.mu.Lock(&ch)
		Sleep(&ch, p, p, &p.mu)
		p.mu.Unlock(&ch)
		close(woke)
	}()

	for i := 0; i < 10000; i++ {
		p.mu.Lock(&h)
		st := p.state
		p.mu.Unlock(&h)
		if st == SLEEPING {
			break
		}
		time.Sleep(time.Microsecond)
	}

	if err := Kill(&h, p.pid); err != 0 {
		t.Fatalf("kill: %v", err)
	}
	<-woke

	if !p.Killed(&h) {
		t.Fatalf("process should be marked killed")
	}
}

func TestPstateString(t *testing.T) {
	cases := map[Pstate_t]string{
		UNUSED:   "unused",
		RUNNABLE: "runble",
		ZOMBIE:   "zombie",
	}
	for st, want := range cases {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", st, got, want)
		}
	}
}
