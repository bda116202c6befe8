package pipe_test

import (
	"testing"

	"rv6/fdops"
	"rv6/pipe"
	"rv6/spinlock"
)

func TestMain(m *testing.M) {
	on := true
	spinlock.SetIntrHooks(func() bool { return on }, func(v bool) { on = v })
	h := &spinlock.HartState{}
	spinlock.SetCurHartHook(func() *spinlock.HartState { return h })
	m.Run()
}

func TestPipeWriteThenRead(t *testing.T) {
	rd, wr, err := pipe.Pipealloc()
	if err != 0 {
		t.Fatalf("pipealloc: %v", err)
	}

	payload := []byte("ring buffer contents")
	var wub fdops.Fakeubuf_t
	wub.Fake_init(payload)
	n, werr := wr.Write(&wub)
	if werr != 0 || n != len(payload) {
		t.Fatalf("write: n=%d err=%v", n, werr)
	}

	got := make([]byte, len(payload))
	var rub fdops.Fakeubuf_t
	rub.Fake_init(got)
	n, rerr := rd.Read(&rub)
	if rerr != 0 || n != len(payload) {
		t.Fatalf("read: n=%d err=%v", n, rerr)
	}
	if string(got) != string(payload) {
		t.Fatalf("read back %q, want %q", got, payload)
	}

	if err := wr.Close(); err != 0 {
		t.Fatalf("close write end: %v", err)
	}
	if err := rd.Close(); err != 0 {
		t.Fatalf("close read end: %v", err)
	}
}

func TestPipeReadAfterWriterClose(t *testing.T) {
	rd, wr, err := pipe.Pipealloc()
	if err != 0 {
		t.Fatalf("pipealloc: %v", err)
	}
	if err := wr.Close(); err != 0 {
		t.Fatalf("close write end: %v", err)
	}

	buf := make([]byte, 8)
	var rub fdops.Fakeubuf_t
	rub.Fake_init(buf)
	n, rerr := rd.Read(&rub)
	if rerr != 0 || n != 0 {
		t.Fatalf("read from pipe with closed writer and no data: n=%d err=%v, want n=0 err=0", n, rerr)
	}
	rd.Close()
}

func TestPipeWriteAfterReaderCloseFails(t *testing.T) {
	rd, wr, err := pipe.Pipealloc()
	if err != 0 {
		t.Fatalf("pipealloc: %v", err)
	}
	if err := rd.Close(); err != 0 {
		t.Fatalf("close read end: %v", err)
	}

	var wub fdops.Fakeubuf_t
	wub.Fake_init([]byte("x"))
	_, werr := wr.Write(&wub)
	if werr == 0 {
		t.Fatalf("write to a pipe with no readers should fail")
	}
	wr.Close()
}
