// Command mkfs builds a bootable filesystem image: a fresh superblock,
// log, inode table, and free-block bitmap (fs.Mkfs), populated with the
// contents of a host directory tree. Grounded on biscuit/src/mkfs/mkfs.go's
// addfiles/copydata walk, adjusted to call fs.Fs_t's own Fs_open/Fs_mkdir
// facade directly rather than the ufs.Ufs_t wrapper and the undefined
// ufs.MkDisk that original called.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"rv6/defs"
	"rv6/fd"
	"rv6/fdops"
	"rv6/fs"
	"rv6/spinlock"
	"rv6/ustr"
	"rv6/virtio"
)

const (
	defaultSize    = 65536 // total image blocks
	defaultNinodes = 2000
	defaultNlog    = 1024
)

func main() {
	size := flag.Int("size", defaultSize, "image size in blocks")
	ninodes := flag.Int("ninodes", defaultNinodes, "number of inodes")
	nlog := flag.Int("nlog", defaultNlog, "log size in blocks")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: mkfs [flags] <image> <skel dir>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}
	image, skeldir := flag.Arg(0), flag.Arg(1)

	var intrOn atomic.Bool
	intrOn.Store(true)
	spinlock.SetIntrHooks(intrOn.Load, intrOn.Store)
	// fs.File_t fetches its hart through this hook once per call; a fresh
	// HartState per call keeps concurrent copies from sharing one.
	spinlock.SetCurHartHook(func() *spinlock.HartState { return new(spinlock.HartState) })

	disk, err := virtio.Open(image)
	if err != nil {
		log.Fatalf("open %s: %v", image, err)
	}
	defer disk.Close()
	if err := disk.Grow(*size); err != 0 {
		log.Fatalf("grow %s to %d blocks: %v", image, *size, err)
	}

	var h spinlock.HartState
	fsys, ferr := fs.Mkfs(&h, disk, 0, *size, *ninodes, *nlog)
	if ferr != 0 {
		log.Fatalf("mkfs: %v", ferr)
	}

	cwd := fsys.MkRootCwd(&h)
	addfiles(fsys, cwd, skeldir)

	if err := disk.Flush(); err != 0 {
		log.Fatalf("flush %s: %v", image, err)
	}
}

// addfiles walks skeldir on the host and replicates its contents into fsys
// rooted at cwd. Directory creation happens synchronously in walk order (a
// child is never visited before its parent), but file content is copied by
// a bounded pool of goroutines via errgroup.Group, since the independent
// copies only ever contend on fs.Fs_t's own internal locks (the log, the
// buffer cache, the inode table) rather than on any state this command
// owns. Each goroutine gets its own *spinlock.HartState, the same one-
// HartState-per-goroutine idiom proc's own tests use for concurrent callers.
func addfiles(fsys *fs.Fs_t, cwd *fd.Cwd_t, skeldir string) {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	walkErr := filepath.WalkDir(skeldir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, skeldir)
		if rel == "" {
			return nil
		}
		target := ustr.Ustr("/" + strings.TrimPrefix(rel, "/"))

		if d.IsDir() {
			var dh spinlock.HartState
			if e := fsys.Fs_mkdir(&dh, target, 0755, cwd); e != 0 {
				fmt.Fprintf(os.Stderr, "mkdir %s: %v\n", rel, e)
			}
			return nil
		}
		g.Go(func() error {
			var fh spinlock.HartState
			if e := copyfile(&fh, fsys, cwd, path, target); e != 0 {
				fmt.Fprintf(os.Stderr, "copy %s: %v\n", rel, e)
			}
			return nil
		})
		return nil
	})
	if walkErr != nil {
		log.Fatalf("walk %s: %v", skeldir, walkErr)
	}
	g.Wait()
}

// copyfile creates target inside fsys and streams src's contents into it
// fs.BSIZE bytes at a time through a Fakeubuf_t, the kernel-memory stand-in
// for a user buffer mkfs has no real user address space to offer.
func copyfile(h *spinlock.HartState, fsys *fs.Fs_t, cwd *fd.Cwd_t, src string, target ustr.Ustr) defs.Err_t {
	in, oerr := os.Open(src)
	if oerr != nil {
		return -defs.EIO
	}
	defer in.Close()

	ofd, err := fsys.Fs_open(h, target, defs.O_CREAT|defs.O_WRONLY|defs.O_TRUNC, 0644, cwd, 0, 0)
	if err != 0 {
		return err
	}
	defer fd.Close_panic(ofd)

	buf := make([]byte, fs.BSIZE)
	for {
		n, rerr := in.Read(buf)
		if n > 0 {
			var ub fdops.Fakeubuf_t
			ub.Fake_init(buf[:n])
			if _, werr := ofd.Fops.Write(&ub); werr != 0 {
				return werr
			}
		}
		if rerr == io.EOF {
			return 0
		}
		if rerr != nil {
			return -defs.EIO
		}
	}
}
