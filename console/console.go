// Package console implements the line discipline sitting between the
// UART and the device-switch table (spec §4.11), grounded on
// original_source/kernel/console.c: a 128-byte ring buffer with three
// indices (r ≤ w ≤ e, all mod INPUT_BUF), Ctrl-U/Ctrl-H/DEL editing,
// CR-to-LF translation, and Ctrl-D end-of-file handling.
package console

import (
	"rv6/defs"
	"rv6/dev"
	"rv6/fdops"
	"rv6/spinlock"
)

// INPUT_BUF is the input ring buffer's capacity in bytes.
const INPUT_BUF = 128

const (
	ctrlP = 'P' - '@'
	ctrlU = 'U' - '@'
	ctrlH = 'H' - '@'
	ctrlD = 'D' - '@'
	del   = 0x7f
)

// uartPutcHook sends one byte out the serial line; the physical UART
// registers are external hardware (spec §1), installed once at boot.
var uartPutcHook func(byte)

/// SetUartPutcHook installs the raw UART transmit primitive.
func SetUartPutcHook(f func(byte)) {
	uartPutcHook = f
}

// killedHook and procdumpHook mirror pipe's killed-process escape valve
// and xv6's Ctrl-P procdump(), both owned by the proc package.
var killedHook func() bool
var procdumpHook func()

/// SetKilledHook installs the current-process-killed query.
func SetKilledHook(f func() bool) { killedHook = f }

/// SetProcdumpHook installs the Ctrl-P process-list dump.
func SetProcdumpHook(f func()) { procdumpHook = f }

func killed() bool {
	if killedHook == nil {
		return false
	}
	return killedHook()
}

/// Console_t is the line-discipline state: a fixed input ring buffer and
/// the three indices bounding what has been consumed (r), made visible
/// to a waiting reader (w), and typed-but-not-yet-terminated (e).
type Console_t struct {
	mu      spinlock.Spinlock_t
	buf     [INPUT_BUF]byte
	r, w, e uint
	tok     byte
}

var _ dev.Dev_i = (*Console_t)(nil)

/// MkConsole constructs a Console_t and registers it at defs.D_CONSOLE.
func MkConsole() *Console_t {
	c := &Console_t{}
	dev.Register(defs.D_CONSOLE, c)
	return c
}

func putc(c byte) {
	if uartPutcHook == nil {
		return
	}
	if c == 0x08 { // backspace: overwrite with a space then backspace again
		uartPutcHook('\b')
		uartPutcHook(' ')
		uartPutcHook('\b')
		return
	}
	uartPutcHook(c)
}

// Intr processes one byte arriving from the UART's receive interrupt:
// Ctrl-P dumps the process list, Ctrl-U kills the current edit line,
// Ctrl-H/DEL erases one character, and anything else is echoed and
// appended, unblocking a waiting Read once a full line (or Ctrl-D)
// arrives.
func (c *Console_t) Intr(h *spinlock.HartState, ch byte) {
	c.mu.Lock(h)
	defer c.mu.Unlock(h)

	switch ch {
	case ctrlP:
		if procdumpHook != nil {
			procdumpHook()
		}
	case ctrlU:
		for c.e != c.w && c.buf[(c.e-1)%INPUT_BUF] != '\n' {
			c.e--
			putc(0x08)
		}
	case ctrlH, del:
		if c.e != c.w {
			c.e--
			putc(0x08)
		}
	default:
		if ch != 0 && c.e-c.r < INPUT_BUF {
			if ch == '\r' {
				ch = '\n'
			}
			putc(ch)
			c.buf[c.e%INPUT_BUF] = ch
			c.e++
			if ch == '\n' || ch == ctrlD || c.e-c.r == INPUT_BUF {
				c.w = c.e
				spinlock.Wakeup(&c.tok)
			}
		}
	}
}

/// Write sends src's bytes straight to the UART, bypassing the input
/// ring buffer entirely (spec §4.11's console write path).
func (c *Console_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	n := src.Remain()
	i := 0
	for i < n {
		var b [1]byte
		if _, err := src.Uio_write(b[:]); err != 0 {
			break
		}
		putc(b[0])
		i++
	}
	return i, 0
}

/// Read copies up to one line (or an end-of-file marker) into dst,
/// blocking until the interrupt handler has delivered one.
func (c *Console_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	h := spinlock.CurHart()
	c.mu.Lock(h)
	defer c.mu.Unlock(h)

	target := dst.Remain()
	n := target
	for n > 0 {
		for c.r == c.w {
			if killed() {
				return 0, -defs.EKILLED
			}
			spinlock.Sleep(&c.tok, &c.mu, h)
		}
		ch := c.buf[c.r%INPUT_BUF]
		c.r++

		if ch == ctrlD {
			if n < target {
				c.r--
			}
			break
		}
		if _, err := dst.Uio_read([]byte{ch}); err != 0 {
			break
		}
		n--
		if ch == '\n' {
			break
		}
	}
	return target - n, 0
}
