package fs_test

import (
	"sync"
	"testing"

	"rv6/defs"
	"rv6/fdops"
	"rv6/fs"
	"rv6/spinlock"
	"rv6/stat"
	"rv6/ustr"
)

func TestMain(m *testing.M) {
	on := true
	spinlock.SetIntrHooks(func() bool { return on }, func(v bool) { on = v })
	// File_t's Fdops_i methods look their hart up through this hook.
	spinlock.SetCurHartHook(func() *spinlock.HartState { return new(spinlock.HartState) })
	m.Run()
}

// memDisk_t is a purely in-memory fs.Disk_i so these tests never touch
// the host filesystem.
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
)

func mkfs(t *testing.T) (*fs.Fs_t, *spinlock.HartState) {
	t.Helper()
	disk := newMemDisk()
	var h spinlock.HartState
	fsys, err := fs.Mkfs(&h, disk, 0, testSize, testNinodes, testNlog)
	if err != 0 {
		t.Fatalf("mkfs: %v", err)
	}
	return fsys, &h
}

func path(s string) ustr.Ustr { return ustr.Ustr(s) }

func TestOpenCreateWriteRead(t *testing.T) {
	fsys, h := mkfs(t)
	cwd := fsys.MkRootCwd(h)

	of, err := fsys.Fs_open(h, path("/foo"), defs.O_CREAT|defs.O_WRONLY, 0644, cwd, 0, 0)
	if err != 0 {
		t.Fatalf("open creat: %v", err)
	}
	payload := []byte("some file content")
	var wub fdops.Fakeubuf_t
	wub.Fake_init(payload)
	n, werr := of.Fops.Write(&wub)
	if werr != 0 || n != len(payload) {
		t.Fatalf("write: n=%d err=%v", n, werr)
	}
	if cerr := of.Fops.Close(); cerr != 0 {
		t.Fatalf("close: %v", cerr)
	}

	rf, rerr := fsys.Fs_open(h, path("/foo"), defs.O_RDONLY, 0, cwd, 0, 0)
	if rerr != 0 {
		t.Fatalf("open rdonly: %v", rerr)
	}
	got := make([]byte, len(payload))
	var rub fdops.Fakeubuf_t
	rub.Fake_init(got)
	rn, rerr2 := rf.Fops.Read(&rub)
	if rerr2 != 0 || rn != len(payload) {
		t.Fatalf("read: n=%d err=%v", rn, rerr2)
	}
	if string(got) != string(payload) {
		t.Fatalf("readback = %q, want %q", got, payload)
	}
	rf.Fops.Close()
}

func TestFstatReportsSize(t *testing.T) {
	fsys, h := mkfs(t)
	cwd := fsys.MkRootCwd(h)

	of, err := fsys.Fs_open(h, path("/sized"), defs.O_CREAT|defs.O_WRONLY, 0644, cwd, 0, 0)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}
	payload := []byte("1234567")
	var wub fdops.Fakeubuf_t
	wub.Fake_init(payload)
	of.Fops.Write(&wub)
	of.Fops.Close()

	var st stat.Stat_t
	if serr := fsys.Fs_stat(h, path("/sized"), &st, cwd); serr != 0 {
		t.Fatalf("fs_stat: %v", serr)
	}
	if int(st.Size()) != len(payload) {
		t.Fatalf("stat size = %d, want %d", st.Size(), len(payload))
	}
}

func TestMkdirThenOpenInside(t *testing.T) {
	fsys, h := mkfs(t)
	cwd := fsys.MkRootCwd(h)

	if err := fsys.Fs_mkdir(h, path("/sub"), 0755, cwd); err != 0 {
		t.Fatalf("mkdir: %v", err)
	}
	if err := fsys.Fs_mkdir(h, path("/sub"), 0755, cwd); err == 0 {
		t.Fatalf("recreating existing dir should fail")
	}

	of, err := fsys.Fs_open(h, path("/sub/leaf"), defs.O_CREAT|defs.O_WRONLY, 0644, cwd, 0, 0)
	if err != 0 {
		t.Fatalf("open inside subdir: %v", err)
	}
	of.Fops.Close()

	var st stat.Stat_t
	if serr := fsys.Fs_stat(h, path("/sub/leaf"), &st, cwd); serr != 0 {
		t.Fatalf("stat nested file: %v", serr)
	}
}

func TestLinkAndUnlink(t *testing.T) {
	fsys, h := mkfs(t)
	cwd := fsys.MkRootCwd(h)

	of, err := fsys.Fs_open(h, path("/orig"), defs.O_CREAT|defs.O_WRONLY, 0644, cwd, 0, 0)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}
	of.Fops.Close()

	if err := fsys.Fs_link(h, path("/orig"), path("/alias"), cwd); err != 0 {
		t.Fatalf("link: %v", err)
	}

	var st stat.Stat_t
	if serr := fsys.Fs_stat(h, path("/alias"), &st, cwd); serr != 0 {
		t.Fatalf("stat via alias: %v", serr)
	}

	if err := fsys.Fs_unlink(h, path("/orig"), cwd, false); err != 0 {
		t.Fatalf("unlink orig: %v", err)
	}
	if serr := fsys.Fs_stat(h, path("/alias"), &st, cwd); serr != 0 {
		t.Fatalf("alias should still resolve after unlinking orig: %v", serr)
	}
	if serr := fsys.Fs_stat(h, path("/orig"), &st, cwd); serr == 0 {
		t.Fatalf("orig should no longer resolve")
	}
}

func TestRename(t *testing.T) {
	fsys, h := mkfs(t)
	cwd := fsys.MkRootCwd(h)

	of, err := fsys.Fs_open(h, path("/before"), defs.O_CREAT|defs.O_WRONLY, 0644, cwd, 0, 0)
	if err != 0 {
		t.Fatalf("open: %v", err)
	}
	of.Fops.Close()

	if err := fsys.Fs_rename(h, path("/before"), path("/after"), cwd); err != 0 {
		t.Fatalf("rename: %v", err)
	}

	var st stat.Stat_t
	if serr := fsys.Fs_stat(h, path("/after"), &st, cwd); serr != 0 {
		t.Fatalf("stat renamed path: %v", serr)
	}
	if serr := fsys.Fs_stat(h, path("/before"), &st, cwd); serr == 0 {
		t.Fatalf("old path should no longer resolve")
	}
}

func TestOpenMissingWithoutCreatFails(t *testing.T) {
	fsys, h := mkfs(t)
	cwd := fsys.MkRootCwd(h)

	if _, err := fsys.Fs_open(h, path("/nope"), defs.O_RDONLY, 0, cwd, 0, 0); err == 0 {
		t.Fatalf("opening a missing path without O_CREAT should fail")
	}
}
