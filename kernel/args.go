package kernel

import (
	"rv6/defs"
	"rv6/fdops"
	"rv6/limits"
	"rv6/proc"
	"rv6/ustr"
	"rv6/vm"
)

// argraw returns tf's n'th integer argument register (a0..a5), the same
// six-slot convention original_source/kernel/syscall.c's argraw uses.
func argraw(tf *Trapframe_t, n int) uintptr {
	switch n {
	case 0:
		return tf.A0
	case 1:
		return tf.A1
	case 2:
		return tf.A2
	case 3:
		return tf.A3
	case 4:
		return tf.A4
	case 5:
		return tf.A5
	}
	panic("kernel: argraw: bad argument index")
}

/// Argint decodes the n'th argument as a plain integer.
func Argint(tf *Trapframe_t, n int) int {
	return int(int64(argraw(tf, n)))
}

/// Argaddr decodes the n'th argument as a user virtual address, performing
/// no validation beyond what Copyin/Copyout do on first use.
func Argaddr(tf *Trapframe_t, n int) uintptr {
	return argraw(tf, n)
}

// Argstr decodes the n'th argument as a NUL-terminated user string,
// copying at most MAXPATH bytes (spec's MAXPATH=128), grounded on
// argstr/fetchstr's combination in original_source/kernel/syscall.c.
func Argstr(p *proc.Proc_t, tf *Trapframe_t, n int) (ustr.Ustr, defs.Err_t) {
	va := argraw(tf, n)
	return vm.CopyinUstr(p.Pagetable(), va, limits.MAXPATH)
}

// Argbuf wraps the n'th/n+1'th argument pair (user address, length) as a
// Userbuf_t ready for Read/Write, the pattern sys_read/sys_write use to
// hand a variant buffer down into Readi/Writei/pipe.
func Argbuf(p *proc.Proc_t, tf *Trapframe_t, addrArg, lenArg int) fdops.Userbuf_t {
	var ub fdops.Userbuf_t
	ub.Ub_init(p, int(argraw(tf, addrArg)), Argint(tf, lenArg))
	return ub
}
