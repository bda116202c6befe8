// Package dev implements the device-switch table (spec §6): a small
// array indexed by major number exposing a read/write hook pair, the
// way the console (major D_CONSOLE) and /dev/prof (major D_PROF) attach
// themselves to the file system at boot.
package dev

import (
	"rv6/defs"
	"rv6/fdops"
)

// Dev_i is what a device major registers: read from / write to the
// device using the same variant buffer every file descriptor uses.
type Dev_i interface {
	Read(dst fdops.Userio_i) (int, defs.Err_t)
	Write(src fdops.Userio_i) (int, defs.Err_t)
}

var devsw [defs.D_LAST + 1]Dev_i

/// Register installs d at major, panicking on a double registration —
/// the device table is wired once at boot.
func Register(major int, d Dev_i) {
	if devsw[major] != nil {
		panic("dev: Register: major already registered")
	}
	devsw[major] = d
}

/// Lookup returns the device registered at major, or ok=false.
func Lookup(major int) (Dev_i, bool) {
	if major < 0 || major >= len(devsw) {
		return nil, false
	}
	d := devsw[major]
	return d, d != nil
}
