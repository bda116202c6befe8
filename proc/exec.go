package proc

import (
	"bytes"
	"debug/elf"

	"rv6/defs"
	"rv6/fd"
	"rv6/fdops"
	"rv6/fs"
	"rv6/limits"
	"rv6/riscv"
	"rv6/spinlock"
	"rv6/stat"
	"rv6/ustr"
	"rv6/vm"
)

// Exec replaces p's address space with the ELF binary named by path,
// pushing argv onto a fresh user stack above a one-page guard (spec §4.8
// exec, grounded on original_source/kernel/exec.c). Like the teacher's own
// ELF-patching tool (biscuit/src/kernel/chentry.go), parsing uses the
// standard library's debug/elf rather than a hand-rolled header reader.
func Exec(h *spinlock.HartState, fsys *fs.Fs_t, p *Proc_t, path ustr.Ustr, argv []ustr.Ustr) defs.Err_t {
	ofd, err := fsys.Fs_open(h, path, defs.O_RDONLY, 0, p.cwd, 0, 0)
	if err != 0 {
		return err
	}
	BindCaller(h, p)
	var st stat.Stat_t
	staterr := ofd.Fops.Fstat(&st)
	var raw []uint8
	var readerr defs.Err_t
	var n int
	if staterr == 0 {
		raw = make([]uint8, st.Size())
		var buf fdops.Fakeubuf_t
		buf.Fake_init(raw)
		n, readerr = ofd.Fops.Read(&buf)
	}
	UnbindCaller()
	fd.Close_panic(ofd)
	if staterr != 0 {
		return staterr
	}
	if readerr != 0 {
		return readerr
	}
	if n != len(raw) {
		return -defs.EIO
	}

	f, everr := elf.NewFile(bytes.NewReader(raw))
	if everr != nil {
		return -defs.EINVAL
	}
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return -defs.EINVAL
	}

	pt, verr := vm.ProcPagetable(procTrampolinePa, p.trapframePa)
	if verr != 0 {
		return verr
	}

	sz := 0
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		if ph.Memsz < ph.Filesz {
			vm.FreeProcSpace(pt, sz)
			return -defs.EINVAL
		}
		if ph.Vaddr%riscv.PGSIZE != 0 {
			vm.FreeProcSpace(pt, sz)
			return -defs.EINVAL
		}
		newsz, aerr := vm.UvmAlloc(pt, sz, int(ph.Vaddr+ph.Memsz), flags2perm(ph.Flags))
		if aerr != 0 {
			vm.FreeProcSpace(pt, sz)
			return aerr
		}
		sz = newsz

		seg := make([]uint8, ph.Filesz)
		if _, rerr := ph.ReaderAt.ReadAt(seg, 0); rerr != nil {
			vm.FreeProcSpace(pt, sz)
			return -defs.EIO
		}
		if cerr := vm.Copyout(pt, uintptr(ph.Vaddr), seg, len(seg)); cerr != 0 {
			vm.FreeProcSpace(pt, sz)
			return cerr
		}
	}

	oldsz := sz
	sz = int(riscv.Pgroundup(uintptr(sz)))
	newsz, aerr := vm.UvmAlloc(pt, sz, sz+2*riscv.PGSIZE, riscv.PTE_W)
	if aerr != 0 {
		vm.FreeProcSpace(pt, oldsz)
		return aerr
	}
	sz = newsz
	vm.UvmClearU(pt, uintptr(sz-2*riscv.PGSIZE))
	sp := uintptr(sz)
	stackbase := sp - riscv.PGSIZE

	var ustack [limits.MAXARG]uintptr
	if len(argv) >= limits.MAXARG {
		vm.FreeProcSpace(pt, sz)
		return -defs.EINVAL
	}
	for i, a := range argv {
		n := len(a) + 1
		sp -= uintptr(n)
		sp -= sp % 16
		if sp < stackbase {
			vm.FreeProcSpace(pt, sz)
			return -defs.EINVAL
		}
		nulterm := append(append([]uint8{}, a...), 0)
		if cerr := vm.Copyout(pt, sp, nulterm, len(nulterm)); cerr != 0 {
			vm.FreeProcSpace(pt, sz)
			return cerr
		}
		ustack[i] = sp
	}
	ustack[len(argv)] = 0

	argsz := (len(argv) + 1) * 8
	sp -= uintptr(argsz)
	sp -= sp % 16
	if sp < stackbase {
		vm.FreeProcSpace(pt, sz)
		return -defs.EINVAL
	}
	argbuf := make([]uint8, argsz)
	for i := 0; i <= len(argv); i++ {
		v := uint64(ustack[i])
		for b := 0; b < 8; b++ {
			argbuf[i*8+b] = uint8(v >> (8 * uint(b)))
		}
	}
	if cerr := vm.Copyout(pt, sp, argbuf, len(argbuf)); cerr != 0 {
		vm.FreeProcSpace(pt, sz)
		return cerr
	}

	oldpt := p.pagetable
	oldProcSz := p.sz
	p.pagetable = pt
	p.sz = sz
	p.entry = uintptr(f.Entry)
	p.sp = sp
	p.name = basename(path)
	vm.FreeProcSpace(oldpt, oldProcSz)
	return 0
}

func flags2perm(flags elf.ProgFlag) uint64 {
	var perm uint64
	if flags&elf.PF_X != 0 {
		perm |= riscv.PTE_X
	}
	if flags&elf.PF_W != 0 {
		perm |= riscv.PTE_W
	}
	return perm
}

func basename(path ustr.Ustr) string {
	s := string(path)
	last := 0
	for i, c := range s {
		if c == '/' {
			last = i + 1
		}
	}
	return s[last:]
}
