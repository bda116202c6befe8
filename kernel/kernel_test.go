package kernel_test

import (
	"fmt"
	"sync"
	"testing"

	"rv6/defs"
	"rv6/fs"
	"rv6/kernel"
	"rv6/proc"
	"rv6/spinlock"
	"rv6/vm"
)

// shared is the one booted kernel every test in this file drives
// syscalls against. Kinit registers the console and /dev/prof devices
// by major number, and dev.Register panics on a second registration at
// the same major, so it can only run once per test binary; TestMain
// boots it exactly once and every Test* function reuses the same
// process, carving out its own disjoint paths and address range.
var shared *booted

func TestMain(m *testing.M) {
	on := true
	spinlock.SetIntrHooks(func() bool { return on }, func(v bool) { on = v })
	shared = bootOnce()
	m.Run()
}

// memDisk_t is a purely in-memory fs.Disk_i, standing in for virtio.Disk_t
// so these tests never touch the host filesystem.
type memDisk_t struct {
	mu  sync.Mutex
	blk map[int][]byte
}

func newMemDisk() *memDisk_t { return &memDisk_t{blk: map[int][]byte{}} }

func (d *memDisk_t) Read(bn int, dst []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.blk[bn]; ok {
		copy(dst, b)
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	return 0
}

func (d *memDisk_t) Write(bn int, src []byte) defs.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(src))
	copy(cp, src)
	d.blk[bn] = cp
	return 0
}

var _ fs.Disk_i = (*memDisk_t)(nil)

const (
	testSize    = 2000
	testNinodes = 200
	testNlog    = 50
	testRAM     = 8 << 20
	testPGSIZE  = 4096
)

// booted bundles what a test needs to drive syscalls: the kernel state,
// the hart the boot ran on, and the process to act as.
type booted struct {
	state *kernel.State_t
	h     *spinlock.HartState
	p     *proc.Proc_t
}

func bootOnce() *booted {
	disk := newMemDisk()
	var h spinlock.HartState

	fsys0, err := fs.Mkfs(&h, disk, 0, testSize, testNinodes, testNlog)
	if err != 0 {
		panic(fmt.Sprintf("mkfs: %v", err))
	}
	fsys0.StopFS()

	state, initp, kerr := kernel.Kinit(&h, testRAM, disk, 0, []byte{0x13, 0x00, 0x00, 0x00})
	if kerr != 0 {
		panic(fmt.Sprintf("kinit: %v", kerr))
	}
	return &booted{state: state, h: &h, p: initp}
}

// grow extends b.p's address space by n bytes and returns the virtual
// address the new region starts at.
func grow(t *testing.T, b *booted, n int) uintptr {
	t.Helper()
	base := uintptr(b.p.Sz())
	if err := proc.Growproc(b.h, b.p, n); err != 0 {
		t.Fatalf("growproc: %v", err)
	}
	return base
}

func putPath(t *testing.T, b *booted, va uintptr, path string) {
	t.Helper()
	buf := append([]byte(path), 0)
	if err := vm.Copyout(b.p.Pagetable(), va, buf, len(buf)); err != 0 {
		t.Fatalf("copyout path: %v", err)
	}
}

func (b *booted) syscall(tf *kernel.Trapframe_t) {
	b.state.Syscall(b.h, b.p, tf)
}

func TestSyscallOpenWriteReadClose(t *testing.T) {
	b := shared

	// Grow the process's address space so there is user memory to stash
	// the path string and I/O buffer in.
	base := grow(t, b, 3*testPGSIZE)

	pathVA := base
	putPath(t, b, pathVA, "/hello")

	tf := kernel.Trapframe_t{A7: kernel.SYS_open, A0: pathVA, A1: uintptr(defs.O_CREAT | defs.O_WRONLY)}
	b.syscall(&tf)
	if int64(tf.A0) < 0 {
		t.Fatalf("open for write failed: A0=%d", int64(tf.A0))
	}
	wfd := int(tf.A0)

	payload := []byte("hello, kernel")
	bufVA := base + testPGSIZE
	if err := vm.Copyout(b.p.Pagetable(), bufVA, payload, len(payload)); err != 0 {
		t.Fatalf("copyout payload: %v", err)
	}

	tf = kernel.Trapframe_t{A7: kernel.SYS_write, A0: uintptr(wfd), A1: bufVA, A2: uintptr(len(payload))}
	b.syscall(&tf)
	if int(int64(tf.A0)) != len(payload) {
		t.Fatalf("write returned %d, want %d", int64(tf.A0), len(payload))
	}

	tf = kernel.Trapframe_t{A7: kernel.SYS_close, A0: uintptr(wfd)}
	b.syscall(&tf)
	if int64(tf.A0) != 0 {
		t.Fatalf("close failed: %v", int64(tf.A0))
	}

	tf = kernel.Trapframe_t{A7: kernel.SYS_open, A0: pathVA, A1: uintptr(defs.O_RDONLY)}
	b.syscall(&tf)
	if int64(tf.A0) < 0 {
		t.Fatalf("open for read failed")
	}
	rfd := int(tf.A0)

	readVA := base + 2*testPGSIZE
	tf = kernel.Trapframe_t{A7: kernel.SYS_read, A0: uintptr(rfd), A1: readVA, A2: uintptr(len(payload))}
	b.syscall(&tf)
	if int(int64(tf.A0)) != len(payload) {
		t.Fatalf("read returned %d, want %d", int64(tf.A0), len(payload))
	}

	got := make([]byte, len(payload))
	if err := vm.Copyin(b.p.Pagetable(), got, readVA, len(got)); err != 0 {
		t.Fatalf("copyin readback: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("readback = %q, want %q", got, payload)
	}
}

func TestSyscallGetpid(t *testing.T) {
	b := shared
	tf := kernel.Trapframe_t{A7: kernel.SYS_getpid}
	b.syscall(&tf)
	if int64(tf.A0) <= 0 {
		t.Fatalf("getpid returned %d", int64(tf.A0))
	}
	if int(tf.A0) != b.p.Pid() {
		t.Fatalf("getpid = %d, want %d", int64(tf.A0), b.p.Pid())
	}
}

func TestSyscallSbrk(t *testing.T) {
	b := shared
	before := b.p.Sz()
	tf := kernel.Trapframe_t{A7: kernel.SYS_sbrk, A0: uintptr(2 * testPGSIZE)}
	b.syscall(&tf)
	if int(int64(tf.A0)) != before {
		t.Fatalf("sbrk returned %d, want old break %d", int64(tf.A0), before)
	}
	if b.p.Sz() != before+2*testPGSIZE {
		t.Fatalf("Sz() after sbrk = %d, want %d", b.p.Sz(), before+2*testPGSIZE)
	}
}

func TestSyscallMkdirAndUnlink(t *testing.T) {
	b := shared
	base := grow(t, b, testPGSIZE)
	putPath(t, b, base, "/sub")

	tf := kernel.Trapframe_t{A7: kernel.SYS_mkdir, A0: base}
	b.syscall(&tf)
	if int64(tf.A0) != 0 {
		t.Fatalf("mkdir failed: %v", int64(tf.A0))
	}

	// Recreating the same directory must fail.
	tf = kernel.Trapframe_t{A7: kernel.SYS_mkdir, A0: base}
	b.syscall(&tf)
	if int64(tf.A0) != -1 {
		t.Fatalf("recreating existing dir should fail with -1, got %d", int64(tf.A0))
	}

	tf = kernel.Trapframe_t{A7: kernel.SYS_unlink, A0: base}
	b.syscall(&tf)
	if int64(tf.A0) != 0 {
		t.Fatalf("unlink failed: %v", int64(tf.A0))
	}
}

func TestSyscallPipe(t *testing.T) {
	b := shared
	base := grow(t, b, testPGSIZE)

	tf := kernel.Trapframe_t{A7: kernel.SYS_pipe, A0: base}
	b.syscall(&tf)
	if int64(tf.A0) != 0 {
		t.Fatalf("pipe failed: %v", int64(tf.A0))
	}

	var raw [8]byte
	if err := vm.Copyin(b.p.Pagetable(), raw[:], base, 8); err != 0 {
		t.Fatalf("copyin fds: %v", err)
	}
	rfd := int(int32(raw[0]) | int32(raw[1])<<8 | int32(raw[2])<<16 | int32(raw[3])<<24)
	wfd := int(int32(raw[4]) | int32(raw[5])<<8 | int32(raw[6])<<16 | int32(raw[7])<<24)
	if rfd == wfd || rfd < 0 || wfd < 0 {
		t.Fatalf("bad pipe fds: rfd=%d wfd=%d", rfd, wfd)
	}
}

func TestArgDecoding(t *testing.T) {
	b := shared
	base := grow(t, b, testPGSIZE)
	putPath(t, b, base, "/argtest")

	tf := kernel.Trapframe_t{A0: 7, A1: base}
	if got := kernel.Argint(&tf, 0); got != 7 {
		t.Fatalf("Argint = %d, want 7", got)
	}
	if got := kernel.Argaddr(&tf, 1); got != base {
		t.Fatalf("Argaddr = %v, want %v", got, base)
	}
	s, err := kernel.Argstr(b.p, &tf, 1)
	if err != 0 {
		t.Fatalf("Argstr: %v", err)
	}
	if s.String() != "/argtest" {
		t.Fatalf("Argstr = %q, want /argtest", s.String())
	}
}

func TestSyscallUnknown(t *testing.T) {
	b := shared
	tf := kernel.Trapframe_t{A7: 9999}
	b.syscall(&tf)
	if int64(tf.A0) != -1 {
		t.Fatalf("unknown syscall should return -1, got %d", int64(tf.A0))
	}
}
