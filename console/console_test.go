package console_test

import (
	"testing"

	"rv6/console"
	"rv6/fdops"
	"rv6/spinlock"
)

// dev.Register panics on a second registration at the same major, so
// every test in this file shares the one Console_t TestMain creates.
var (
	h       spinlock.HartState
	uartOut []byte
	con     *console.Console_t
)

func TestMain(m *testing.M) {
	on := true
	spinlock.SetIntrHooks(func() bool { return on }, func(v bool) { on = v })
	spinlock.SetCurHartHook(func() *spinlock.HartState { return &h })
	console.SetUartPutcHook(func(c byte) { uartOut = append(uartOut, c) })
	con = console.MkConsole()
	m.Run()
}

func feed(s string) {
	for i := 0; i < len(s); i++ {
		con.Intr(&h, s[i])
	}
}

func TestConsoleReadLine(t *testing.T) {
	feed("hello\n")

	buf := make([]byte, 16)
	var ub fdops.Fakeubuf_t
	ub.Fake_init(buf)
	n, err := con.Read(&ub)
	if err != 0 {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello\n" {
		t.Fatalf("read = %q, want %q", buf[:n], "hello\n")
	}
}

func TestConsoleWriteBypassesBuffer(t *testing.T) {
	uartOut = nil
	payload := []byte("direct to uart")
	var ub fdops.Fakeubuf_t
	ub.Fake_init(payload)
	n, err := con.Write(&ub)
	if err != 0 || n != len(payload) {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if string(uartOut) != string(payload) {
		t.Fatalf("uart got %q, want %q", uartOut, payload)
	}
}

func TestConsoleBackspaceErasesLine(t *testing.T) {
	feed("ab")
	feed(string(rune(8))) // backspace erases 'b'
	feed("c\n")

	buf := make([]byte, 16)
	var ub fdops.Fakeubuf_t
	ub.Fake_init(buf)
	n, err := con.Read(&ub)
	if err != 0 {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "ac\n" {
		t.Fatalf("read = %q, want %q", buf[:n], "ac\n")
	}
}
