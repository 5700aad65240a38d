package sysinfo

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCPUStat(t *testing.T) {
	t.Parallel()

	content := "cpu  100 0 50 800 50 0 0 0 0 0\ncpu0 50 0 25 400 25 0 0 0 0 0\n"
	idle, total, ok := parseCPUStat(content)
	if !ok {
		t.Fatal("parseCPUStat() failed")
	}
	if idle != 850 {
		t.Fatalf("idle = %d, want 850", idle)
	}
	if total != 1000 {
		t.Fatalf("total = %d, want 1000", total)
	}

	if _, _, ok := parseCPUStat("intr 12345\n"); ok {
		t.Fatal("expected failure without a cpu line")
	}
}

func TestParseMeminfo(t *testing.T) {
	t.Parallel()

	content := "MemTotal:       8000000 kB\nMemFree:        1000000 kB\nMemAvailable:   2000000 kB\n"
	got := parseMeminfo(content)
	if math.Abs(got-75.0) > 0.01 {
		t.Fatalf("parseMeminfo() = %f, want 75", got)
	}

	if got := parseMeminfo("garbage"); got != 0 {
		t.Fatalf("parseMeminfo(garbage) = %f, want 0", got)
	}
}

func TestCollectorCPUDelta(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	statPath := filepath.Join(dir, "stat")
	c := &Collector{statPath: statPath, meminfoPath: filepath.Join(dir, "meminfo")}

	write := func(content string) {
		t.Helper()
		if err := os.WriteFile(statPath, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write("cpu  100 0 50 800 50 0 0 0 0 0\n")
	if got := c.cpuUsagePct(); got != 0 {
		t.Fatalf("first sample = %f, want 0", got)
	}

	// +150 busy, +50 idle over the interval: 75% usage.
	write("cpu  200 0 100 840 60 0 0 0 0 0\n")
	got := c.cpuUsagePct()
	if math.Abs(got-75.0) > 0.01 {
		t.Fatalf("second sample = %f, want 75", got)
	}
}

func TestSnapshotDegradesGracefully(t *testing.T) {
	t.Parallel()

	c := &Collector{statPath: "/nonexistent/stat", meminfoPath: "/nonexistent/meminfo"}
	info := c.Snapshot()
	if info.CPUCore <= 0 {
		t.Fatalf("cpu cores = %d", info.CPUCore)
	}
	if info.JudgerVersion != JudgerVersion {
		t.Fatalf("version = %s", info.JudgerVersion)
	}
	if info.CPUUsagePct != 0 || info.MemoryUsagePct != 0 {
		t.Fatal("unreadable counters must report zero")
	}
}
