package proc

import (
	"testing"

	"rv6/spinlock"
)

func TestGoidIsStablePerGoroutine(t *testing.T) {
	id := goid()
	if goid() != id {
		t.Fatalf("goid() changed within the same goroutine")
	}

	other := make(chan uint64, 1)
	go func() { other <- goid() }()
	if <-other == id {
		t.Fatalf("two different goroutines produced the same id")
	}
}

func TestBindCallerRoundTrip(t *testing.T) {
	var h spinlock.HartState
	p := &Proc_t{name: "bound"}

	BindCaller(&h, p)
	defer UnbindCaller()

	b := curBinding()
	if b.hart != &h || b.proc != p {
		t.Fatalf("curBinding() = %+v, want hart=%p proc=%p", b, &h, p)
	}
	if got := curHart(); got != &h {
		t.Fatalf("curHart() = %p, want %p", got, &h)
	}
}

func TestCurBindingPanicsWhenUnbound(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer func() {
			if recover() == nil {
				t.Errorf("curBinding() on an unbound goroutine should panic")
			}
			close(done)
		}()
		curBinding()
	}()
	<-done
}
