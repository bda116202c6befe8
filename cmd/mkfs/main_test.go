package main

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"rv6/fs"
	"rv6/spinlock"
	"rv6/stat"
	"rv6/ustr"
	"rv6/virtio"
)

func TestAddfilesReplicatesTree(t *testing.T) {
	// The same hooks main installs before calling fs.Mkfs and addfiles.
	var intrOn atomic.Bool
	intrOn.Store(true)
	spinlock.SetIntrHooks(intrOn.Load, intrOn.Store)
	spinlock.SetCurHartHook(func() *spinlock.HartState { return new(spinlock.HartState) })

	skel := t.TempDir()
	if err := os.MkdirAll(filepath.Join(skel, "bin"), 0755); err != nil {
		t.Fatalf("mkdir skel/bin: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skel, "bin", "hello"), []byte("hi there"), 0644); err != nil {
		t.Fatalf("write skel file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skel, "top"), []byte("top level"), 0644); err != nil {
		t.Fatalf("write skel file: %v", err)
	}

	imgPath := filepath.Join(t.TempDir(), "disk.img")
	disk, err := virtio.Open(imgPath)
	if err != nil {
		t.Fatalf("open disk: %v", err)
	}
	defer disk.Close()
	if gerr := disk.Grow(512); gerr != 0 {
		t.Fatalf("grow: %v", gerr)
	}

	var h spinlock.HartState
	fsys, ferr := fs.Mkfs(&h, disk, 0, 512, 100, 32)
	if ferr != 0 {
		t.Fatalf("mkfs: %v", ferr)
	}
	cwd := fsys.MkRootCwd(&h)

	addfiles(fsys, cwd, skel)

	var st stat.Stat_t
	if serr := fsys.Fs_stat(&h, ustr.Ustr("/top"), &st, cwd); serr != 0 {
		t.Fatalf("stat /top: %v", serr)
	}
	if int(st.Size()) != len("top level") {
		t.Fatalf("/top size = %d, want %d", st.Size(), len("top level"))
	}

	if serr := fsys.Fs_stat(&h, ustr.Ustr("/bin/hello"), &st, cwd); serr != 0 {
		t.Fatalf("stat /bin/hello: %v", serr)
	}
	if int(st.Size()) != len("hi there") {
		t.Fatalf("/bin/hello size = %d, want %d", st.Size(), len("hi there"))
	}
}
