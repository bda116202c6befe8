package virtio_test

import (
	"path/filepath"
	"testing"

	"rv6/fs"
	"rv6/virtio"
)

func TestDiskGrowReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := virtio.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := d.Grow(4); err != 0 {
		t.Fatalf("grow: %v", err)
	}

	block := make([]byte, fs.BSIZE)
	for i := range block {
		block[i] = byte(i)
	}
	if err := d.Write(2, block); err != 0 {
		t.Fatalf("write: %v", err)
	}
	if err := d.Flush(); err != 0 {
		t.Fatalf("flush: %v", err)
	}

	got := make([]byte, fs.BSIZE)
	if err := d.Read(2, got); err != 0 {
		t.Fatalf("read: %v", err)
	}
	for i := range got {
		if got[i] != block[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], block[i])
		}
	}
}

func TestDiskUnwrittenBlockIsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := virtio.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if err := d.Grow(2); err != 0 {
		t.Fatalf("grow: %v", err)
	}
	got := make([]byte, fs.BSIZE)
	if err := d.Read(1, got); err != 0 {
		t.Fatalf("read: %v", err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}
