// Package ustr provides the immutable path/string type threaded through
// the file system and process packages.
package ustr

// Ustr represents an immutable path or string used by the kernel.
type Ustr []uint8

/// Isdot reports whether the string equals '.'.
func (us Ustr) Isdot() bool {
	return len(us) == 1 && us[0] == '.'
}

/// Isdotdot reports whether the string equals '..'.
func (us Ustr) Isdotdot() bool {
	return len(us) == 2 && us[0] == '.' && us[1] == '.'
}

/// Eq compares two Ustr values for equality.
func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

/// MkUstr creates an empty Ustr value.
func MkUstr() Ustr {
	return Ustr{}
}

/// MkUstrDot returns a Ustr representing '.'.
func MkUstrDot() Ustr {
	return Ustr(".")
}

/// MkUstrRoot returns a Ustr for the root directory '/'.
func MkUstrRoot() Ustr {
	return Ustr("/")
}

/// DotDot is a reusable Ustr containing "..".
var DotDot = Ustr{'.', '.'}

/// MkUstrSlice converts a NUL-terminated byte slice to a Ustr.
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == 0 {
			return buf[:i]
		}
	}
	return buf
}

/// Extend appends '/' and p to the current Ustr and returns the result.
func (us Ustr) Extend(p Ustr) Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	r := append(tmp, '/')
	return append(r, p...)
}

/// ExtendStr appends '/' and the string p to the current Ustr.
func (us Ustr) ExtendStr(p string) Ustr {
	return us.Extend(Ustr(p))
}

/// IsAbsolute reports whether the path begins with '/'.
func (us Ustr) IsAbsolute() bool {
	return len(us) != 0 && us[0] == '/'
}

/// IndexByte returns the index of b in the string or -1 if not present.
func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

/// String converts the Ustr to a Go string.
func (us Ustr) String() string {
	return string(us)
}

// Skipelem extracts the next path element from p, skipping repeated and
// leading slashes. It returns the remainder of the path (positioned at the
// next element or empty) and the extracted element, or ok=false if p names
// no further element. Mirrors xv6-riscv's fs.c:skipelem.
func Skipelem(p Ustr) (rest Ustr, elem Ustr, ok bool) {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if len(p) == 0 {
		return nil, nil, false
	}
	i := 0
	for i < len(p) && p[i] != '/' {
		i++
	}
	elem = p[:i]
	for i < len(p) && p[i] == '/' {
		i++
	}
	return p[i:], elem, true
}
