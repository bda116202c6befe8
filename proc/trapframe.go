package proc

// Trapframe_t is the per-process saved-register page handed back and
// forth across a user/kernel mode switch (spec §6: "kernel SP, kernel
// PC, saved user integer registers, saved PC, satp-to-restore,
// hart-id"), pinned at a fixed high VA (riscv.TRAPFRAME) in every
// pagetable ProcPagetable builds so the trampoline can reach it
// regardless of which user address space is active (spec §3, §4.2). The
// real trap entry/exit assembly is external; this struct only needs to
// agree with that assembly's field order, which is why every field here
// is exported and laid out in xv6's trapframe order: kernel satp, kernel
// sp, trap handler, user pc, hart id, then the user registers.
type Trapframe_t struct {
	// Saved by trampoline on kernel entry, restored on return to user.
	KernelSatp   uintptr // kernel page table, to restore on trap exit
	KernelSp     uintptr // top of this process's kernel stack
	KernelTrap   uintptr // address of usertrap, to jump to from trampoline
	Epc          uintptr // saved user program counter
	KernelHartid uintptr

	// Saved user integer registers (RISC-V calling convention names).
	Ra, Sp, Gp, Tp                           uintptr
	T0, T1, T2                               uintptr
	S0, S1                                   uintptr
	A0, A1, A2, A3, A4, A5, A6, A7           uintptr
	S2, S3, S4, S5, S6, S7, S8, S9, S10, S11 uintptr
	T3, T4, T5, T6                           uintptr
}
