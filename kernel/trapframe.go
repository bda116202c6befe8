// Package kernel is the boot glue and syscall layer sitting above proc,
// fs, and vm: it wires the physical allocator, kernel page table, block
// device, and file system together at startup (spec §4.1-§4.2), and
// turns a decoded trapframe into the corresponding proc/fs call. The
// trap entry/exit assembly and the raw syscall dispatch table indexing
// off a7 are external (spec §1, §6's trap vectors/swtch and syscall
// dispatch table collaborators); this package owns everything on the
// kernel side of that boundary, grounded on
// original_source/kernel/{trap,syscall,sysproc,sysfile}.c's split with
// biscuit/src/kernel/chentry.go's trap-entry glue shape for the parts
// that do have a teacher analogue.
package kernel

import "rv6/proc"

// Trapframe_t is proc.Trapframe_t, the per-process saved-register page a
// user/kernel mode switch hands back and forth (spec §6). It is defined
// in package proc — not here — because Proc_t itself owns a pinned
// trapframe frame (spec §3) that proc's allocproc/Fork/Exec manage
// directly; kernel only ever decodes one as a syscall argument, so an
// alias is all this layer needs.
type Trapframe_t = proc.Trapframe_t

// Syscall numbers, matching spec §6's system call list in listed order.
const (
	SYS_fork = iota + 1
	SYS_exit
	SYS_wait
	SYS_exec
	SYS_kill
	SYS_getpid
	SYS_sbrk
	SYS_sleep
	SYS_open
	SYS_close
	SYS_read
	SYS_write
	SYS_dup
	SYS_pipe
	SYS_link
	SYS_unlink
	SYS_mkdir
	SYS_mknod
	SYS_fstat
	SYS_chdir
)
