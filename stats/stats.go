// Package stats collects kernel counters and serializes them as a
// gzip-compressed protobuf pprof profile behind the /dev/prof device (major defs.D_PROF),
// adapted from biscuit/src/stats/stats.go's Counter_t/Cycles_t/reflection
// idiom; where the teacher printed counters as plain text, this kernel
// hands the same counters to github.com/google/pprof/profile so offline
// tooling (go tool pprof) can inspect them directly.
package stats

import (
	"bytes"
	"reflect"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/google/pprof/profile"

	"rv6/defs"
	"rv6/dev"
	"rv6/fdops"
)

/// Counter_t is a simple atomic statistics counter, matching the
/// teacher's unsafe-pointer-atomics idiom.
type Counter_t int64

/// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
}

/// Add increments the counter by n.
func (c *Counter_t) Add(n int64) {
	atomic.AddInt64((*int64)(unsafe.Pointer(c)), n)
}

/// Get reads the counter's current value.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(unsafe.Pointer(c)))
}

// Kernel_t names every counter the stats device exposes: log absorption
// (SPEC_FULL §12), buffer-cache traffic, and scheduler context switches.
// Reflected over by Profile() the same way Stats2String walked a struct
// of Counter_t fields in the teacher.
type Kernel_t struct {
	LogWrites    Counter_t
	LogAbsorbed  Counter_t
	LogCommits   Counter_t
	BufCacheHits Counter_t
	BufCacheMiss Counter_t
	CtxSwitches  Counter_t
}

/// Global holds the process-wide kernel counters the stats device reads.
var Global Kernel_t

// Profile reflects over st's Counter_t fields and builds a pprof profile
// with one "count" sample per non-zero counter, labeled by field name.
func Profile(st interface{}) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "count", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "events", Unit: "count"},
		Period:     1,
	}
	fn := &profile.Function{ID: 1, Name: "kernel_counters"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn}}}
	p.Function = []*profile.Function{fn}
	p.Location = []*profile.Location{loc}

	v := reflect.ValueOf(st)
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		if !strings.HasSuffix(f.Type().String(), "Counter_t") {
			continue
		}
		n := f.Int()
		if n == 0 {
			continue
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{n},
			Label:    map[string][]string{"counter": {v.Type().Field(i).Name}},
		})
	}
	return p
}

// Dev_t implements dev.Dev_i for the /dev/prof device: Read serializes
// the current Global counters as a gzip-encoded pprof profile; writes
// are rejected since the counters are read-only from user space.
type Dev_t struct{}

var _ dev.Dev_i = Dev_t{}

/// MkDev registers the /dev/prof device at defs.D_PROF.
func MkDev() Dev_t {
	d := Dev_t{}
	dev.Register(defs.D_PROF, d)
	return d
}

func (Dev_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	var buf bytes.Buffer
	if err := Profile(Global).Write(&buf); err != nil {
		return 0, -defs.EIO
	}
	n, uerr := dst.Uio_read(buf.Bytes())
	if uerr != 0 {
		return n, uerr
	}
	return n, 0
}

func (Dev_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	return 0, -defs.EINVAL
}
