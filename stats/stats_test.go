package stats_test

import (
	"testing"

	"rv6/stats"
)

func TestCounterIncAndAdd(t *testing.T) {
	var c stats.Counter_t
	c.Inc()
	c.Inc()
	c.Add(3)
	if got := c.Get(); got != 5 {
		t.Fatalf("Get() = %d, want 5", got)
	}
}

func TestProfileSkipsZeroCounters(t *testing.T) {
	var k stats.Kernel_t
	k.LogWrites.Add(4)
	k.BufCacheHits.Add(10)

	p := stats.Profile(k)
	if len(p.Sample) != 2 {
		t.Fatalf("got %d samples, want 2 (zero counters should be skipped)", len(p.Sample))
	}

	seen := map[string]int64{}
	for _, s := range p.Sample {
		name := s.Label["counter"][0]
		seen[name] = s.Value[0]
	}
	if seen["LogWrites"] != 4 {
		t.Fatalf("LogWrites sample = %d, want 4", seen["LogWrites"])
	}
	if seen["BufCacheHits"] != 10 {
		t.Fatalf("BufCacheHits sample = %d, want 10", seen["BufCacheHits"])
	}
}

func TestProfileAllZeroYieldsNoSamples(t *testing.T) {
	var k stats.Kernel_t
	p := stats.Profile(k)
	if len(p.Sample) != 0 {
		t.Fatalf("got %d samples, want 0", len(p.Sample))
	}
}
