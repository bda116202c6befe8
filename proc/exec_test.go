package proc

import (
	"debug/elf"
	"testing"

	"rv6/riscv"
	"rv6/ustr"
)

func TestFlags2Perm(t *testing.T) {
	cases := []struct {
		flags elf.ProgFlag
		want  uint64
	}{
		{0, 0},
		{elf.PF_X, riscv.PTE_X},
		{elf.PF_W, riscv.PTE_W},
		{elf.PF_R, 0},
		{elf.PF_X | elf.PF_W, riscv.PTE_X | riscv.PTE_W},
	}
	for _, c := range cases {
		if got := flags2perm(c.flags); got != c.want {
			t.Errorf("flags2perm(%v) = %#x, want %#x", c.flags, got, c.want)
		}
	}
}

func TestBasename(t *testing.T) {
	cases := map[string]string{
		"/bin/ls":  "ls",
		"ls":       "ls",
		"/a/b/c":   "c",
		"/":        "",
	}
	for in, want := range cases {
		if got := basename(ustr.Ustr(in)); got != want {
			t.Errorf("basename(%q) = %q, want %q", in, got, want)
		}
	}
}
