package kernel

import (
	"encoding/binary"
	"sync"

	"rv6/defs"
	"rv6/fs"
	"rv6/limits"
	"rv6/proc"
	"rv6/spinlock"
	"rv6/stat"
	"rv6/ustr"
	"rv6/vm"
)

// State_t bundles the per-boot singletons every syscall needs beyond the
// calling process: the mounted file system. (The physical allocator and
// kernel page table are touched only at boot and proc/vm's own internal
// calls, never directly by a syscall.) LastResume/ResumeCount record what
// the most recent scheduler handoff (resume, in boot.go) would have
// programmed into the real trapframe, since there is no hardware here to
// observe that directly.
type State_t struct {
	Fs *fs.Fs_t

	resumeMu    sync.Mutex
	LastResume  Trapframe_t
	ResumeCount int
}

// argvStrings decodes the NUL-pointer-terminated array of user string
// pointers at argv's address (spec §4.8 exec's argv), capped at
// limits.MAXARG entries, grounded on original_source/kernel/exec.c's
// argv-fetch loop.
func argvStrings(p *proc.Proc_t, argv uintptr) ([]ustr.Ustr, defs.Err_t) {
	var out []ustr.Ustr
	for i := 0; i < limits.MAXARG; i++ {
		var raw [8]uint8
		if err := vm.Copyin(p.Pagetable(), raw[:], argv+uintptr(i*8), 8); err != 0 {
			return nil, err
		}
		uva := uintptr(binary.LittleEndian.Uint64(raw[:]))
		if uva == 0 {
			return out, 0
		}
		s, err := vm.CopyinUstr(p.Pagetable(), uva, limits.MAXPATH)
		if err != 0 {
			return nil, err
		}
		out = append(out, s)
	}
	return nil, -defs.EINVAL
}

func putInt32(p *proc.Proc_t, va uintptr, v int32) defs.Err_t {
	var raw [4]uint8
	binary.LittleEndian.PutUint32(raw[:], uint32(v))
	return vm.Copyout(p.Pagetable(), va, raw[:], 4)
}

// Syscall dispatches the number in tf.A7 against the calling process p,
// writing the result (or -1 on any error) back into tf.A0 (original_source/kernel/
// syscall.c's syscall()). The trap entry assembly that lands here with a
// filled-in Trapframe_t, and the a7-indexed dispatch table itself, are
// external per spec §1/§6; this is the part of that dispatch this module
// owns: decoding arguments and calling the right subsystem operation.
func (k *State_t) Syscall(h *spinlock.HartState, p *proc.Proc_t, tf *Trapframe_t) {
	var ret int
	var err defs.Err_t

	switch tf.A7 {
	case SYS_fork:
		ret, err = proc.Fork(h, p)
	case SYS_exit:
		proc.Exit(h, p, Argint(tf, 0))
		ret = 0
	case SYS_wait:
		var pid, xstate int
		pid, xstate, err = proc.Wait(h, p)
		if err == 0 {
			addr := Argaddr(tf, 0)
			if addr != 0 {
				err = putInt32(p, addr, int32(xstate))
			}
		}
		ret = pid
	case SYS_exec:
		path, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		argv, aerr := argvStrings(p, Argaddr(tf, 1))
		if aerr != 0 {
			err = aerr
			break
		}
		err = proc.Exec(h, k.Fs, p, path, argv)
		ret = len(argv)
	case SYS_kill:
		err = proc.Kill(h, Argint(tf, 0))
	case SYS_getpid:
		ret = proc.Getpid(p)
	case SYS_sbrk:
		ret, err = proc.Sbrk(h, p, Argint(tf, 0))
	case SYS_sleep:
		SleepTicks(h, p, Argint(tf, 0))
	case SYS_open:
		path, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		ret, err = proc.Open(h, k.Fs, p, path, defs.Err_t(Argint(tf, 1)), 0644)
	case SYS_close:
		err = proc.Close(p, Argint(tf, 0))
	case SYS_read:
		ub := Argbuf(p, tf, 1, 2)
		ret, err = proc.Read(h, p, Argint(tf, 0), &ub)
	case SYS_write:
		ub := Argbuf(p, tf, 1, 2)
		ret, err = proc.Write(h, p, Argint(tf, 0), &ub)
	case SYS_dup:
		ret, err = proc.Dup(p, Argint(tf, 0))
	case SYS_pipe:
		addr := Argaddr(tf, 0)
		var rfd, wfd int
		rfd, wfd, err = proc.Pipe(p)
		if err == 0 {
			if perr := putInt32(p, addr, int32(rfd)); perr != 0 {
				err = perr
			} else if perr := putInt32(p, addr+4, int32(wfd)); perr != 0 {
				err = perr
			}
		}
	case SYS_link:
		oldp, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		newp, serr2 := Argstr(p, tf, 1)
		if serr2 != 0 {
			err = serr2
			break
		}
		err = proc.Link(h, k.Fs, p, oldp, newp)
	case SYS_unlink:
		path, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		err = proc.Unlink(h, k.Fs, p, path)
	case SYS_mkdir:
		path, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		err = proc.Mkdir(h, k.Fs, p, path, 0755)
	case SYS_mknod:
		path, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		err = proc.Mknod(h, k.Fs, p, path, Argint(tf, 1), Argint(tf, 2))
	case SYS_fstat:
		var st stat.Stat_t
		err = proc.Fstat(p, Argint(tf, 0), &st)
		if err == 0 {
			err = vm.Copyout(p.Pagetable(), Argaddr(tf, 1), st.Bytes(), len(st.Bytes()))
		}
	case SYS_chdir:
		path, serr := Argstr(p, tf, 0)
		if serr != 0 {
			err = serr
			break
		}
		err = proc.Chdir(h, k.Fs, p, path)
	default:
		err = -defs.EINVAL
	}

	// Spec §7: "syscalls return -1 on any error and leave the process
	// otherwise intact" -- no errno propagation to user space, matching
	// original_source/kernel/syscall.c's plain -1 convention.
	if err != 0 {
		tf.A0 = ^uintptr(0)
		return
	}
	tf.A0 = uintptr(int64(ret))
}
